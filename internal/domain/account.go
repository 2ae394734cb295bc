package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusApproved AccountStatus = "approved"
	AccountStatusRejected AccountStatus = "rejected"
)

// IsValid checks if the status is one of the known statuses.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusPending, AccountStatusApproved, AccountStatusRejected:
		return true
	}
	return false
}

// AccountNumberLength is the number of digits in an assigned account number.
const AccountNumberLength = 12

// Account is a customer's bank account. Balance is only ever changed by an
// approved transaction.
type Account struct {
	ID            string
	OwnerID       string
	BankID        string
	HolderName    string
	AccountNumber *string
	Balance       decimal.Decimal
	Status        AccountStatus
	Version       int64
	DecidedBy     string
	DecidedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAccount returns an account awaiting a manager decision.
func NewAccount(id, ownerID, bankID, holderName string, now time.Time) (*Account, error) {
	name, err := NormalizeHolderName(holderName)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidIDFormat)
	}
	if bankID == "" {
		return nil, fmt.Errorf("%w: bank id is required", ErrInvalidIDFormat)
	}

	return &Account{
		ID:         id,
		OwnerID:    ownerID,
		BankID:     bankID,
		HolderName: name,
		Balance:    decimal.Zero,
		Status:     AccountStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsApproved reports whether the account can take part in transactions.
func (a *Account) IsApproved() bool {
	return a.Status == AccountStatusApproved
}

// Number returns the account number or an empty string when none is assigned.
func (a *Account) Number() string {
	if a.AccountNumber == nil {
		return ""
	}
	return *a.AccountNumber
}

// Approve moves a pending account to approved with the given number and a
// zero balance.
func (a *Account) Approve(number string, by string, at time.Time) error {
	if a.Status != AccountStatusPending {
		return ErrAccountAlreadyDecided
	}
	if err := ValidateAccountNumber(number); err != nil {
		return err
	}

	a.Status = AccountStatusApproved
	a.AccountNumber = &number
	a.Balance = decimal.Zero
	a.DecidedBy = by
	a.DecidedAt = &at
	a.UpdatedAt = at
	return nil
}

// Reject moves a pending account to rejected. No number is assigned.
func (a *Account) Reject(by string, at time.Time) error {
	if a.Status != AccountStatusPending {
		return ErrAccountAlreadyDecided
	}

	a.Status = AccountStatusRejected
	a.DecidedBy = by
	a.DecidedAt = &at
	a.UpdatedAt = at
	return nil
}

// CanApplyDelta checks that adding delta keeps the balance non-negative.
func (a *Account) CanApplyDelta(delta decimal.Decimal) error {
	if a.Balance.Add(delta).IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

// FormatAccountNumber renders a sequence value as a zero padded account number.
func FormatAccountNumber(seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("%w: sequence value %d", ErrInvalidAccountNumber, seq)
	}
	n := fmt.Sprintf("%0*d", AccountNumberLength, seq)
	if len(n) != AccountNumberLength {
		return "", fmt.Errorf("%w: sequence value %d overflows %d digits", ErrInvalidAccountNumber, seq, AccountNumberLength)
	}
	return n, nil
}
