package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

type accountServiceStub struct {
	openFn     func(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error)
	getFn      func(ctx context.Context, id string) (*domain.Account, error)
	byNumberFn func(ctx context.Context, number string) (*domain.Account, error)
	decideFn   func(ctx context.Context, id string, decision domain.Decision) (*domain.Account, error)
	listFn     func(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
}

func (s *accountServiceStub) OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error) {
	return s.openFn(ctx, input)
}

func (s *accountServiceStub) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return s.getFn(ctx, id)
}

func (s *accountServiceStub) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return s.byNumberFn(ctx, number)
}

func (s *accountServiceStub) DecideAccount(ctx context.Context, id string, decision domain.Decision) (*domain.Account, error) {
	return s.decideFn(ctx, id, decision)
}

func (s *accountServiceStub) ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error) {
	return s.listFn(ctx, input)
}

func withCustomer(r *http.Request, userID string) *http.Request {
	return r.WithContext(domain.ContextWithIdentity(r.Context(), domain.Identity{UserID: userID, Role: domain.RoleCustomer}))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestAccountHandler_Open_Success(t *testing.T) {
	var captured usecase.OpenAccountInput
	stub := &accountServiceStub{
		openFn: func(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error) {
			captured = input
			return &domain.Account{ID: "acc-1", OwnerID: input.OwnerID, BankID: input.BankID, Status: domain.AccountStatusPending}, nil
		},
	}
	handler := NewAccountHandler(stub, stub)

	body, _ := json.Marshal(dto.OpenAccountRequest{BankID: "bank-1", HolderName: "Ada Lovelace"})
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()

	handler.Open(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OwnerID != "user-1" || captured.BankID != "bank-1" || captured.HolderName != "Ada Lovelace" {
		t.Fatalf("expected input to match request, got %+v", captured)
	}

	var resp dto.AccountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "acc-1" || resp.Status != "pending" || resp.AccountNumber != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestAccountHandler_Open_RequiresIdentity(t *testing.T) {
	handler := NewAccountHandler(&accountServiceStub{}, &accountServiceStub{})

	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	handler.Open(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAccountHandler_Open_InvalidJSON(t *testing.T) {
	handler := NewAccountHandler(&accountServiceStub{}, &accountServiceStub{})

	req := withCustomer(httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewBufferString("{invalid")), "user-1")
	rec := httptest.NewRecorder()

	handler.Open(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != codeInvalidRequest {
		t.Fatalf("expected %s, got %s", codeInvalidRequest, resp.Error)
	}
}

func TestAccountHandler_Open_ValidationDetails(t *testing.T) {
	handler := NewAccountHandler(&accountServiceStub{}, &accountServiceStub{})

	req := withCustomer(httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewBufferString(`{"bank_id":"bank-1"}`)), "user-1")
	rec := httptest.NewRecorder()

	handler.Open(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error != codeValidation || resp.Details == nil {
		t.Fatalf("expected validation details, got %+v", resp)
	}
}

func TestAccountHandler_Open_UnknownBank(t *testing.T) {
	stub := &accountServiceStub{
		openFn: func(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error) {
			return nil, domain.ErrBankNotFound
		},
	}
	handler := NewAccountHandler(stub, stub)

	body, _ := json.Marshal(dto.OpenAccountRequest{BankID: "bank-9", HolderName: "Ada"})
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()

	handler.Open(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAccountHandler_Get(t *testing.T) {
	stub := &accountServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.Account, error) {
			return &domain.Account{ID: id}, nil
		},
	}
	handler := NewAccountHandler(stub, stub)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/accounts/acc-1", nil), "id", "acc-1")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAccountHandler_Get_Forbidden(t *testing.T) {
	stub := &accountServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.Account, error) {
			return nil, domain.ErrForbidden
		},
	}
	handler := NewAccountHandler(stub, stub)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/accounts/acc-1", nil), "id", "acc-1")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAccountHandler_GetByNumber(t *testing.T) {
	var gotNumber string
	stub := &accountServiceStub{
		byNumberFn: func(ctx context.Context, number string) (*domain.Account, error) {
			gotNumber = number
			return &domain.Account{ID: "acc-1", AccountNumber: &number}, nil
		},
	}
	handler := NewAccountHandler(stub, stub)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/accounts/number/000000000001", nil), "number", "000000000001")
	rec := httptest.NewRecorder()

	handler.GetByNumber(rec, req)

	if rec.Code != http.StatusOK || gotNumber != "000000000001" {
		t.Fatalf("expected 200 for number lookup, got %d (%q)", rec.Code, gotNumber)
	}
}

func TestAccountHandler_List(t *testing.T) {
	var captured usecase.ListAccountsInput
	stub := &accountServiceStub{
		listFn: func(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error) {
			captured = input
			return []*domain.Account{{ID: "acc-1"}, {ID: "acc-2"}}, nil
		},
	}
	handler := NewAccountHandler(stub, stub)

	req := httptest.NewRequest(http.MethodGet, "/accounts?status=pending&limit=5&offset=10", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.Status != domain.AccountStatusPending || captured.Limit != 5 || captured.Offset != 10 {
		t.Fatalf("unexpected list input %+v", captured)
	}

	var resp dto.ListResponse[*dto.AccountResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 2 || resp.Limit != 5 || resp.Offset != 10 {
		t.Fatalf("unexpected list response %+v", resp)
	}
}

func TestAccountHandler_Decide(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "approve", body: `{"decision":"approve"}`, wantStatus: http.StatusOK},
		{name: "bad decision", body: `{"decision":"later"}`, wantStatus: http.StatusBadRequest},
		{name: "already decided", body: `{"decision":"reject"}`, err: domain.ErrAccountAlreadyDecided, wantStatus: http.StatusConflict},
		{name: "customer caller", body: `{"decision":"approve"}`, err: domain.ErrInsufficientRole, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &accountServiceStub{
				decideFn: func(ctx context.Context, id string, decision domain.Decision) (*domain.Account, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					number := "000000000001"
					return &domain.Account{ID: id, Status: domain.AccountStatusApproved, AccountNumber: &number}, nil
				},
			}
			handler := NewAccountHandler(stub, stub)

			req := withURLParam(httptest.NewRequest(http.MethodPost, "/accounts/acc-1/decision", bytes.NewBufferString(tt.body)), "id", "acc-1")
			rec := httptest.NewRecorder()

			handler.Decide(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}
