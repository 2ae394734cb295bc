package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// IntakeService records new deposit, withdrawal and transfer requests.
type IntakeService interface {
	Submit(ctx context.Context, input usecase.SubmitInput) (*domain.Transaction, error)
	SubmitTransfer(ctx context.Context, input usecase.SubmitTransferInput) (*domain.TransferPair, error)
}

// DecisionService decides pending transactions and handles faulted transfers.
type DecisionService interface {
	Decide(ctx context.Context, transactionID string, decision domain.Decision) (*usecase.DecisionResult, error)
	ClearFault(ctx context.Context, transferID string) (*domain.TransferPair, error)
	ListFaulted(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)
}

// TransactionQueries reads transactions and transfers.
type TransactionQueries interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	GetTransfer(ctx context.Context, transferID string) (*domain.TransferPair, error)
	ListTransactions(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.Transaction, error)
}

// TransactionHandler handles transaction-related HTTP requests.
type TransactionHandler struct {
	intakeUC   IntakeService
	approvalUC DecisionService
	queryUC    TransactionQueries
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(intakeUC IntakeService, approvalUC DecisionService, queryUC TransactionQueries) *TransactionHandler {
	return &TransactionHandler{intakeUC: intakeUC, approvalUC: approvalUC, queryUC: queryUC}
}

// Submit records a pending deposit or withdrawal.
func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitTransactionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	input, err := req.ToUseCaseInput()
	if err != nil {
		respondError(w, r, err)
		return
	}

	txn, err := h.intakeUC.Submit(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(txn))
}

// Get retrieves a transaction by ID.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	txn, err := h.queryUC.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}

// List lists transactions visible to the caller.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		respondError(w, r, err)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		respondError(w, r, err)
		return
	}

	limit := parseIntQuery(r, "limit", 0)
	offset := parseIntQuery(r, "offset", 0)

	txns, err := h.queryUC.ListTransactions(r.Context(), usecase.ListTransactionsInput{
		AccountID: q.Get("account_id"),
		From:      from,
		To:        to,
		Type:      domain.TransactionType(q.Get("type")),
		Status:    domain.TransactionStatus(q.Get("status")),
		Kind:      domain.FilterKind(q.Get("kind")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	limit, offset = domain.ValidatePagination(limit, offset)
	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.TransactionResponse]{
		Items:  dto.TransactionsFromDomain(txns),
		Limit:  limit,
		Offset: offset,
	})
}

// Decide approves or rejects a pending transaction. Deciding either leg of
// a transfer decides both.
func (h *TransactionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req dto.DecisionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	decision, err := req.ToDomain()
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.approvalUC.Decide(r.Context(), chi.URLParam(r, "id"), decision)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DecisionFromResult(result))
}
