package handler

import (
	"context"
	"net/http"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// DirectoryService serves the read-only views.
type DirectoryService interface {
	ListBanks(ctx context.Context) ([]*domain.Bank, error)
	Dashboard(ctx context.Context, limit int) (*usecase.Dashboard, error)
}

// DashboardHandler serves the bank directory and the dashboards.
type DashboardHandler struct {
	queryUC DirectoryService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(queryUC DirectoryService) *DashboardHandler {
	return &DashboardHandler{queryUC: queryUC}
}

// Banks lists the bank directory.
func (h *DashboardHandler) Banks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.queryUC.ListBanks(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BanksFromDomain(banks))
}

// Dashboard returns the accounts and transactions the caller oversees.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.queryUC.Dashboard(r.Context(), parseIntQuery(r, "limit", 0))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DashboardFromUseCase(dash))
}
