package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidHolderName    = errors.New("invalid account holder name")
	ErrInvalidAccountNumber = errors.New("account number must be 12 digits")
	ErrAmountTooLarge       = errors.New("amount exceeds maximum allowed")
	ErrAmountPrecision      = errors.New("amount has more than 2 decimal places")
	ErrInvalidIDFormat      = errors.New("invalid ID format")
	ErrInvalidDateRange     = errors.New("from must not be after to")
	ErrInvalidFilter        = errors.New("invalid filter value")
)

// Validation constants
const (
	MaxHolderNameLength = 100
	MaxAmount           = "1000000000" // 1 billion
	AmountScale         = 2
)

var (
	accountNumberRegex = regexp.MustCompile(`^[0-9]{12}$`)
	maxAmount          = decimal.RequireFromString(MaxAmount)
)

// NormalizeHolderName trims and validates an account holder name.
func NormalizeHolderName(name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidHolderName)
	}

	if utf8.RuneCountInString(name) > MaxHolderNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidHolderName, MaxHolderNameLength)
	}

	return name, nil
}

// ValidateAccountNumber checks the 12-digit format.
func ValidateAccountNumber(number string) error {
	if !accountNumberRegex.MatchString(number) {
		return ErrInvalidAccountNumber
	}
	return nil
}

// ValidateAmount validates a transaction amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if !amount.Equal(amount.Truncate(AmountScale)) {
		return ErrAmountPrecision
	}

	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	return nil
}

// ParseAmount parses and validates a decimal string.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateDateRange checks that from is not after to when both are set.
func ValidateDateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return ErrInvalidDateRange
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 500
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
