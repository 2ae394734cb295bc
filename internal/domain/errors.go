package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountNotApproved    = errors.New("account is not approved")
	ErrAccountAlreadyDecided = &stateError{msg: "account already decided"}
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrBankNotFound          = errors.New("bank not found")

	// Transaction errors
	ErrTransactionNotFound       = errors.New("transaction not found")
	ErrInvalidTransactionType    = errors.New("transaction type must be deposit or withdrawal")
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrInvalidDecision           = errors.New("decision must be approve or reject")
	ErrAlreadyDecided            = &stateError{msg: "transaction already decided"}
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrInconsistentTransferState = errors.New("transfer legs are in inconsistent states")

	// Transfer errors
	ErrTransferNotFound       = errors.New("transfer not found")
	ErrDestinationNotFound    = errors.New("destination account not found or not approved")
	ErrSelfTransferNotAllowed = errors.New("cannot transfer to the same account")
	ErrTransferFaulted        = errors.New("transfer credit failed, pair held for operator intervention")
	ErrTransferNotFaulted     = errors.New("transfer is not faulted")

	// Concurrency errors
	ErrLockTimeout = errors.New("timed out waiting for account lock")

	// Access errors
	ErrForbidden = errors.New("operation not permitted for caller")
)

// stateError is a state machine violation. It matches ErrInvalidTransition
// so callers can treat every "re-read and retry" case the same way.
type stateError struct {
	msg string
}

func (e *stateError) Error() string { return e.msg }

func (e *stateError) Is(target error) bool {
	return target == ErrInvalidTransition
}

var validationErrors = []error{
	ErrInvalidAmount,
	ErrAmountTooLarge,
	ErrAmountPrecision,
	ErrInvalidTransactionType,
	ErrInvalidDecision,
	ErrInvalidAccountNumber,
	ErrInvalidHolderName,
	ErrInvalidIDFormat,
	ErrAccountNotApproved,
	ErrDestinationNotFound,
	ErrSelfTransferNotAllowed,
	ErrInvalidDateRange,
	ErrInvalidFilter,
}

// IsValidation reports whether err is caused by bad caller input.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err refers to a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrTransferNotFound) ||
		errors.Is(err, ErrBankNotFound)
}

// IsTransient reports whether the operation may succeed if retried as is.
func IsTransient(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
