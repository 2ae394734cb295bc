package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
)

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	intakeUC   IntakeService
	approvalUC DecisionService
	queryUC    TransactionQueries
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(intakeUC IntakeService, approvalUC DecisionService, queryUC TransactionQueries) *TransferHandler {
	return &TransferHandler{intakeUC: intakeUC, approvalUC: approvalUC, queryUC: queryUC}
}

// Submit records a pending transfer to an account number.
func (h *TransferHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitTransferRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	input, err := req.ToUseCaseInput()
	if err != nil {
		respondError(w, r, err)
		return
	}

	pair, err := h.intakeUC.SubmitTransfer(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromDomain(pair))
}

// Get retrieves both legs of a transfer.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	pair, err := h.queryUC.GetTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(pair))
}

// ListFaulted lists the pending legs of transfers held for an operator.
func (h *TransferHandler) ListFaulted(w http.ResponseWriter, r *http.Request) {
	limit, offset := domain.ValidatePagination(parseIntQuery(r, "limit", 0), parseIntQuery(r, "offset", 0))

	legs, err := h.approvalUC.ListFaulted(r.Context(), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.TransactionResponse]{
		Items:  dto.TransactionsFromDomain(legs),
		Limit:  limit,
		Offset: offset,
	})
}

// ClearFault releases a faulted transfer so it can be decided again.
func (h *TransferHandler) ClearFault(w http.ResponseWriter, r *http.Request) {
	pair, err := h.approvalUC.ClearFault(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(pair))
}
