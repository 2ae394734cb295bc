package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.AmountScale)
}

// BankResponse represents a bank of the directory.
type BankResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BanksFromDomain converts domain banks to responses.
func BanksFromDomain(banks []*domain.Bank) []*BankResponse {
	result := make([]*BankResponse, len(banks))
	for i, b := range banks {
		result[i] = &BankResponse{ID: b.ID, Name: b.Name}
	}
	return result
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	BankID        string     `json:"bank_id"`
	HolderName    string     `json:"holder_name"`
	AccountNumber *string    `json:"account_number"`
	Balance       string     `json:"balance"`
	Status        string     `json:"status"`
	Version       int64      `json:"version"`
	DecidedBy     string     `json:"decided_by,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:            a.ID,
		OwnerID:       a.OwnerID,
		BankID:        a.BankID,
		HolderName:    a.HolderName,
		AccountNumber: a.AccountNumber,
		Balance:       money(a.Balance),
		Status:        string(a.Status),
		Version:       a.Version,
		DecidedBy:     a.DecidedBy,
		DecidedAt:     a.DecidedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// TransactionResponse represents a transaction in API responses. Transfer
// legs carry their transfer id and direction.
type TransactionResponse struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"account_id"`
	Type         string     `json:"type"`
	Amount       string     `json:"amount"`
	Status       string     `json:"status"`
	Kind         string     `json:"kind"`
	TransferID   *string    `json:"transfer_id,omitempty"`
	Direction    string     `json:"direction,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
	Fault        bool       `json:"fault,omitempty"`
	FaultReason  string     `json:"fault_reason,omitempty"`
	DecidedBy    string     `json:"decided_by,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TransactionFromDomain converts domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Type:         string(t.Type),
		Amount:       money(t.Amount),
		Status:       string(t.Status),
		Kind:         string(t.Kind()),
		TransferID:   t.TransferID,
		RejectReason: string(t.RejectReason),
		Fault:        t.Fault,
		FaultReason:  t.FaultReason,
		DecidedBy:    t.DecidedBy,
		DecidedAt:    t.DecidedAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if leg, ok := t.Leg(); ok {
		resp.Direction = string(leg.Direction)
	}
	return resp
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txns []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// TransferResponse represents both legs of a transfer.
type TransferResponse struct {
	ID      string               `json:"id"`
	Amount  string               `json:"amount"`
	Status  string               `json:"status"`
	Faulted bool                 `json:"faulted"`
	Debit   *TransactionResponse `json:"debit"`
	Credit  *TransactionResponse `json:"credit"`
}

// TransferFromDomain converts a transfer pair to response. A pair whose
// legs disagree reports the debit status.
func TransferFromDomain(p *domain.TransferPair) *TransferResponse {
	return &TransferResponse{
		ID:      p.ID,
		Amount:  money(p.Amount()),
		Status:  string(p.Debit.Status),
		Faulted: p.Faulted(),
		Debit:   TransactionFromDomain(p.Debit),
		Credit:  TransactionFromDomain(p.Credit),
	}
}

// DecisionResponse is the result of deciding a transaction.
type DecisionResponse struct {
	Outcome      string                 `json:"outcome"`
	TransferID   string                 `json:"transfer_id,omitempty"`
	Transactions []*TransactionResponse `json:"transactions"`
}

// DecisionFromResult converts a usecase decision result to response.
func DecisionFromResult(r *usecase.DecisionResult) *DecisionResponse {
	return &DecisionResponse{
		Outcome:      string(r.Outcome),
		TransferID:   r.TransferID,
		Transactions: TransactionsFromDomain(r.Transactions),
	}
}

// DashboardResponse is the combined accounts and transactions view.
type DashboardResponse struct {
	Accounts     []*AccountResponse     `json:"accounts"`
	Transactions []*TransactionResponse `json:"transactions"`
}

// DashboardFromUseCase converts a dashboard projection to response.
func DashboardFromUseCase(d *usecase.Dashboard) *DashboardResponse {
	return &DashboardResponse{
		Accounts:     AccountsFromDomain(d.Accounts),
		Transactions: TransactionsFromDomain(d.Transactions),
	}
}

// ListResponse wraps a page of results.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}
