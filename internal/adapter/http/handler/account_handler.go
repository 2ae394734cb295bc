package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	DecideAccount(ctx context.Context, id string, decision domain.Decision) (*domain.Account, error)
}

// AccountLister lists the accounts a caller may see.
type AccountLister interface {
	ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC AccountService
	queryUC   AccountLister
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService, queryUC AccountLister) *AccountHandler {
	return &AccountHandler{accountUC: accountUC, queryUC: queryUC}
}

// Open opens a pending account owned by the caller.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, ok := domain.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, r, domain.ErrUnauthorized)
		return
	}

	var req dto.OpenAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accountUC.OpenAccount(r.Context(), req.ToUseCaseInput(id.UserID))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountUC.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// GetByNumber retrieves an approved account by its number.
func (h *AccountHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountUC.GetAccountByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// List lists accounts visible to the caller.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 0)
	offset := parseIntQuery(r, "offset", 0)

	accounts, err := h.queryUC.ListAccounts(r.Context(), usecase.ListAccountsInput{
		Status: domain.AccountStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	limit, offset = domain.ValidatePagination(limit, offset)
	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.AccountResponse]{
		Items:  dto.AccountsFromDomain(accounts),
		Limit:  limit,
		Offset: offset,
	})
}

// Decide approves or rejects a pending account.
func (h *AccountHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req dto.DecisionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	decision, err := req.ToDomain()
	if err != nil {
		respondError(w, r, err)
		return
	}

	account, err := h.accountUC.DecideAccount(r.Context(), chi.URLParam(r, "id"), decision)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}
