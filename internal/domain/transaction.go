package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a money movement on one account.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// IsValid checks if the type is deposit or withdrawal.
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal
}

// TransactionStatus is the approval state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusRejected TransactionStatus = "rejected"
)

// IsValid checks if the status is one of the known statuses.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusApproved, TransactionStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusApproved || s == TransactionStatusRejected
}

// RejectReason records why a transaction ended up rejected.
type RejectReason string

const (
	RejectReasonNone              RejectReason = ""
	RejectReasonManager           RejectReason = "manager"
	RejectReasonInsufficientFunds RejectReason = "insufficient_funds"
)

// TransactionKind tells a standalone request apart from one half of a transfer.
type TransactionKind string

const (
	KindPlain       TransactionKind = "plain"
	KindTransferLeg TransactionKind = "transfer_leg"
)

// LegDirection is the side of a transfer a leg represents.
type LegDirection string

const (
	LegDebit  LegDirection = "debit"
	LegCredit LegDirection = "credit"
)

// TransferLeg identifies the pair a transaction belongs to.
type TransferLeg struct {
	TransferID string
	Direction  LegDirection
}

// Transaction is a request to move money into or out of a single account.
// Two transactions sharing a TransferID form a transfer pair.
type Transaction struct {
	ID           string
	AccountID    string
	Type         TransactionType
	Amount       decimal.Decimal
	Status       TransactionStatus
	TransferID   *string
	RejectReason RejectReason
	Fault        bool
	FaultReason  string
	DecidedBy    string
	DecidedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTransaction returns a pending plain transaction.
func NewTransaction(id, accountID string, txType TransactionType, amount decimal.Decimal, now time.Time) (*Transaction, error) {
	if !txType.IsValid() {
		return nil, ErrInvalidTransactionType
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	return &Transaction{
		ID:        id,
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Status:    TransactionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Kind returns which variant the transaction is.
func (t *Transaction) Kind() TransactionKind {
	if t.TransferID != nil && *t.TransferID != "" {
		return KindTransferLeg
	}
	return KindPlain
}

// Leg returns the transfer leg details when the transaction is part of a pair.
func (t *Transaction) Leg() (TransferLeg, bool) {
	if t.Kind() != KindTransferLeg {
		return TransferLeg{}, false
	}
	dir := LegCredit
	if t.Type == TransactionTypeWithdrawal {
		dir = LegDebit
	}
	return TransferLeg{TransferID: *t.TransferID, Direction: dir}, true
}

// SignedDelta is the balance change approving this transaction applies.
func (t *Transaction) SignedDelta() decimal.Decimal {
	if t.Type == TransactionTypeWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

// IsPending reports whether the transaction still awaits a decision.
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

func (t *Transaction) checkUndecided() error {
	if t.Status.IsTerminal() {
		return ErrAlreadyDecided
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, t.Status)
	}
	return nil
}

// MarkApproved moves a pending transaction to approved.
func (t *Transaction) MarkApproved(by string, at time.Time) error {
	if err := t.checkUndecided(); err != nil {
		return err
	}
	t.Status = TransactionStatusApproved
	t.RejectReason = RejectReasonNone
	t.DecidedBy = by
	t.DecidedAt = &at
	t.UpdatedAt = at
	return nil
}

// MarkRejected moves a pending transaction to rejected.
func (t *Transaction) MarkRejected(reason RejectReason, by string, at time.Time) error {
	if err := t.checkUndecided(); err != nil {
		return err
	}
	t.Status = TransactionStatusRejected
	t.RejectReason = reason
	t.DecidedBy = by
	t.DecidedAt = &at
	t.UpdatedAt = at
	return nil
}

// Decision is a manager's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a decision string.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", ErrInvalidDecision
}

// Outcome is the observable result of deciding a transaction.
type Outcome string

const (
	OutcomeApproved                     Outcome = "approved"
	OutcomeRejected                     Outcome = "rejected"
	OutcomeRejectedForInsufficientFunds Outcome = "rejected_insufficient_funds"
)

// TransactionFilter narrows transaction listings. Zero values mean no filter.
type TransactionFilter struct {
	AccountIDs []string
	BankID     string
	Type       TransactionType
	Status     TransactionStatus
	Kind       FilterKind
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// FilterKind selects plain requests or transfers, optionally by direction.
type FilterKind string

const (
	FilterKindAny              FilterKind = ""
	FilterKindPlain            FilterKind = "plain"
	FilterKindTransfer         FilterKind = "transfer"
	FilterKindTransferSent     FilterKind = "transfer_sent"
	FilterKindTransferReceived FilterKind = "transfer_received"
)

// IsValid checks if the kind filter is known.
func (k FilterKind) IsValid() bool {
	switch k {
	case FilterKindAny, FilterKindPlain, FilterKindTransfer, FilterKindTransferSent, FilterKindTransferReceived:
		return true
	}
	return false
}

// AccountFilter narrows account listings. Zero values mean no filter.
type AccountFilter struct {
	OwnerID string
	BankID  string
	Status  AccountStatus
	Limit   int
	Offset  int
}
