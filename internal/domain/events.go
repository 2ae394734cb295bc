package domain

import "time"

// Event types
const (
	EventTypeAccountOpened        = "account.opened"
	EventTypeAccountApproved      = "account.approved"
	EventTypeAccountRejected      = "account.rejected"
	EventTypeTransactionSubmitted = "transaction.submitted"
	EventTypeTransactionApproved  = "transaction.approved"
	EventTypeTransactionRejected  = "transaction.rejected"
	EventTypeTransferSubmitted    = "transfer.submitted"
	EventTypeTransferApproved     = "transfer.approved"
	EventTypeTransferRejected     = "transfer.rejected"
	EventTypeTransferFaulted      = "transfer.faulted"
)

// Aggregate types
const (
	AggregateTypeAccount     = "account"
	AggregateTypeTransaction = "transaction"
	AggregateTypeTransfer    = "transfer"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// AccountEvent payload
type AccountEvent struct {
	AccountID     string `json:"account_id"`
	OwnerID       string `json:"owner_id"`
	BankID        string `json:"bank_id"`
	HolderName    string `json:"holder_name"`
	Status        string `json:"status"`
	AccountNumber string `json:"account_number,omitempty"`
	DecidedBy     string `json:"decided_by,omitempty"`
}

// TransactionEvent payload
type TransactionEvent struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	Outcome       string `json:"outcome,omitempty"`
	DecidedBy     string `json:"decided_by,omitempty"`
}

// TransferEvent payload
type TransferEvent struct {
	TransferID    string `json:"transfer_id"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	Outcome       string `json:"outcome,omitempty"`
	FaultReason   string `json:"fault_reason,omitempty"`
	DecidedBy     string `json:"decided_by,omitempty"`
}

// NewAccountEvent builds the payload for an account lifecycle event.
func NewAccountEvent(a *Account) AccountEvent {
	return AccountEvent{
		AccountID:     a.ID,
		OwnerID:       a.OwnerID,
		BankID:        a.BankID,
		HolderName:    a.HolderName,
		Status:        string(a.Status),
		AccountNumber: a.Number(),
		DecidedBy:     a.DecidedBy,
	}
}

// NewTransactionEvent builds the payload for a plain transaction event.
func NewTransactionEvent(t *Transaction, outcome Outcome) TransactionEvent {
	return TransactionEvent{
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Type:          string(t.Type),
		Amount:        t.Amount.StringFixed(AmountScale),
		Status:        string(t.Status),
		Outcome:       string(outcome),
		DecidedBy:     t.DecidedBy,
	}
}

// NewTransferEvent builds the payload for a transfer pair event.
func NewTransferEvent(p *TransferPair, outcome Outcome) TransferEvent {
	return TransferEvent{
		TransferID:    p.ID,
		FromAccountID: p.Debit.AccountID,
		ToAccountID:   p.Credit.AccountID,
		Amount:        p.Amount().StringFixed(AmountScale),
		Status:        string(p.Debit.Status),
		Outcome:       string(outcome),
		FaultReason:   p.Debit.FaultReason,
		DecidedBy:     p.Debit.DecidedBy,
	}
}
