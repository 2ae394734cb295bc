package dto

import (
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// OpenAccountRequest represents the request body for opening an account.
type OpenAccountRequest struct {
	BankID     string `json:"bank_id" validate:"required,max=64"`
	HolderName string `json:"holder_name" validate:"required,max=100"`
}

// ToUseCaseInput converts to usecase input for the calling owner.
func (r *OpenAccountRequest) ToUseCaseInput(ownerID string) usecase.OpenAccountInput {
	return usecase.OpenAccountInput{
		OwnerID:    ownerID,
		BankID:     r.BankID,
		HolderName: r.HolderName,
	}
}

// DecisionRequest represents a manager decision on an account or transaction.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// ToDomain converts to a domain decision.
func (r *DecisionRequest) ToDomain() (domain.Decision, error) {
	return domain.ParseDecision(r.Decision)
}

// SubmitTransactionRequest represents a deposit or withdrawal request.
type SubmitTransactionRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=deposit withdrawal"`
	Amount    string `json:"amount" validate:"required,positive_amount"`
}

// ToUseCaseInput converts to usecase input.
func (r *SubmitTransactionRequest) ToUseCaseInput() (usecase.SubmitInput, error) {
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return usecase.SubmitInput{}, err
	}
	return usecase.SubmitInput{
		AccountID: r.AccountID,
		Type:      domain.TransactionType(r.Type),
		Amount:    amount,
	}, nil
}

// SubmitTransferRequest represents a transfer to another account by number.
type SubmitTransferRequest struct {
	FromAccountID   string `json:"from_account_id" validate:"required"`
	ToAccountNumber string `json:"to_account_number" validate:"required,len=12,numeric"`
	Amount          string `json:"amount" validate:"required,positive_amount"`
}

// ToUseCaseInput converts to usecase input.
func (r *SubmitTransferRequest) ToUseCaseInput() (usecase.SubmitTransferInput, error) {
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return usecase.SubmitTransferInput{}, err
	}
	return usecase.SubmitTransferInput{
		FromAccountID:   r.FromAccountID,
		ToAccountNumber: r.ToAccountNumber,
		Amount:          amount,
	}, nil
}
