package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransferPair is the two legs of a transfer. Every state change goes
// through the pair so both legs always carry the same status.
type TransferPair struct {
	ID     string
	Debit  *Transaction
	Credit *Transaction
}

// NewTransfer builds a pending pair moving amount from one account to another.
func NewTransfer(transferID, debitID, creditID, fromAccountID, toAccountID string, amount decimal.Decimal, now time.Time) (*TransferPair, error) {
	if fromAccountID == toAccountID {
		return nil, ErrSelfTransferNotAllowed
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	debit, err := NewTransaction(debitID, fromAccountID, TransactionTypeWithdrawal, amount, now)
	if err != nil {
		return nil, err
	}
	credit, err := NewTransaction(creditID, toAccountID, TransactionTypeDeposit, amount, now)
	if err != nil {
		return nil, err
	}
	debit.TransferID = &transferID
	credit.TransferID = &transferID

	return &TransferPair{ID: transferID, Debit: debit, Credit: credit}, nil
}

// PairFromLegs assembles a pair from stored legs in any order.
func PairFromLegs(legs []*Transaction) (*TransferPair, error) {
	if len(legs) != 2 {
		return nil, fmt.Errorf("%w: expected 2 legs, found %d", ErrInconsistentTransferState, len(legs))
	}

	p := &TransferPair{}
	for _, leg := range legs {
		l, ok := leg.Leg()
		if !ok {
			return nil, fmt.Errorf("%w: transaction %s has no transfer id", ErrInconsistentTransferState, leg.ID)
		}
		if p.ID == "" {
			p.ID = l.TransferID
		} else if p.ID != l.TransferID {
			return nil, fmt.Errorf("%w: legs belong to different transfers", ErrInconsistentTransferState)
		}
		switch l.Direction {
		case LegDebit:
			if p.Debit != nil {
				return nil, fmt.Errorf("%w: two debit legs", ErrInconsistentTransferState)
			}
			p.Debit = leg
		case LegCredit:
			if p.Credit != nil {
				return nil, fmt.Errorf("%w: two credit legs", ErrInconsistentTransferState)
			}
			p.Credit = leg
		}
	}

	if !p.Debit.Amount.Equal(p.Credit.Amount) {
		return nil, fmt.Errorf("%w: leg amounts differ", ErrInconsistentTransferState)
	}
	if p.Debit.AccountID == p.Credit.AccountID {
		return nil, fmt.Errorf("%w: both legs on account %s", ErrInconsistentTransferState, p.Debit.AccountID)
	}
	return p, nil
}

// Legs returns debit then credit.
func (p *TransferPair) Legs() []*Transaction {
	return []*Transaction{p.Debit, p.Credit}
}

// Amount is the amount moved.
func (p *TransferPair) Amount() decimal.Decimal {
	return p.Debit.Amount
}

// Status returns the shared status of both legs.
func (p *TransferPair) Status() (TransactionStatus, error) {
	if p.Debit.Status != p.Credit.Status {
		return "", fmt.Errorf("%w: debit %s, credit %s", ErrInconsistentTransferState, p.Debit.Status, p.Credit.Status)
	}
	return p.Debit.Status, nil
}

// Faulted reports whether a previous approval left the pair flagged.
func (p *TransferPair) Faulted() bool {
	return p.Debit.Fault || p.Credit.Fault
}

// CheckDecidable returns nil only when both legs are pending and unflagged.
func (p *TransferPair) CheckDecidable() error {
	status, err := p.Status()
	if err != nil {
		return err
	}
	if status != TransactionStatusPending {
		return ErrAlreadyDecided
	}
	if p.Faulted() {
		return ErrTransferFaulted
	}
	return nil
}

// MarkApproved approves both legs.
func (p *TransferPair) MarkApproved(by string, at time.Time) error {
	if err := p.CheckDecidable(); err != nil {
		return err
	}
	_ = p.Debit.MarkApproved(by, at)
	_ = p.Credit.MarkApproved(by, at)
	return nil
}

// MarkRejected rejects both legs with the same reason.
func (p *TransferPair) MarkRejected(reason RejectReason, by string, at time.Time) error {
	if err := p.CheckDecidable(); err != nil {
		return err
	}
	_ = p.Debit.MarkRejected(reason, by, at)
	_ = p.Credit.MarkRejected(reason, by, at)
	return nil
}

// MarkFault flags both legs. Statuses stay pending.
func (p *TransferPair) MarkFault(reason string, at time.Time) {
	for _, leg := range p.Legs() {
		leg.Fault = true
		leg.FaultReason = reason
		leg.UpdatedAt = at
	}
}

// ClearFault removes the flag so the pair can be decided again.
func (p *TransferPair) ClearFault(at time.Time) error {
	status, err := p.Status()
	if err != nil {
		return err
	}
	if status != TransactionStatusPending {
		return ErrAlreadyDecided
	}
	if !p.Faulted() {
		return ErrTransferNotFaulted
	}
	for _, leg := range p.Legs() {
		leg.Fault = false
		leg.FaultReason = ""
		leg.UpdatedAt = at
	}
	return nil
}

// AccountIDs returns the source and destination account ids.
func (p *TransferPair) AccountIDs() []string {
	return []string{p.Debit.AccountID, p.Credit.AccountID}
}
