package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

func TestAccountFromDomain(t *testing.T) {
	now := time.Now()
	number := "000000000001"
	account := &domain.Account{
		ID:            "acc-1",
		OwnerID:       "user-1",
		BankID:        "bank-1",
		HolderName:    "Ada",
		AccountNumber: &number,
		Balance:       decimal.RequireFromString("40"),
		Status:        domain.AccountStatusApproved,
		Version:       2,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	resp := AccountFromDomain(account)
	if resp.ID != account.ID || resp.Balance != "40.00" || resp.Status != "approved" || *resp.AccountNumber != number {
		t.Fatalf("unexpected account response: %+v", resp)
	}

	list := AccountsFromDomain([]*domain.Account{account})
	if len(list) != 1 || list[0].ID != account.ID {
		t.Fatalf("AccountsFromDomain returned %+v", list)
	}
}

func TestAccountFromDomain_PendingHasNullNumber(t *testing.T) {
	resp := AccountFromDomain(&domain.Account{ID: "acc-1", Status: domain.AccountStatusPending})

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := decoded["account_number"]; !ok || v != nil {
		t.Fatalf("expected explicit null account_number, got %v", decoded["account_number"])
	}
}

func TestTransferFromDomain(t *testing.T) {
	pair, err := domain.NewTransfer("tr-1", "tx-d", "tx-c", "acc-1", "acc-2", decimal.RequireFromString("25.5"), time.Now())
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}

	resp := TransferFromDomain(pair)
	if resp.ID != "tr-1" || resp.Amount != "25.50" || resp.Status != "pending" || resp.Faulted {
		t.Fatalf("unexpected transfer response: %+v", resp)
	}
	if resp.Debit.Direction != "debit" || resp.Credit.Direction != "credit" {
		t.Fatalf("unexpected leg directions: %s/%s", resp.Debit.Direction, resp.Credit.Direction)
	}
	if resp.Debit.Kind != string(domain.KindTransferLeg) {
		t.Fatalf("expected transfer leg kind, got %s", resp.Debit.Kind)
	}
}

func TestTransactionFromDomain_Plain(t *testing.T) {
	txn, err := domain.NewTransaction("tx-1", "acc-1", domain.TransactionTypeWithdrawal, decimal.RequireFromString("3"), time.Now())
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	resp := TransactionFromDomain(txn)
	if resp.Kind != "plain" || resp.Direction != "" || resp.TransferID != nil || resp.Amount != "3.00" {
		t.Fatalf("unexpected transaction response: %+v", resp)
	}
}

func TestDecisionFromResult(t *testing.T) {
	txn := &domain.Transaction{ID: "tx-1", Amount: decimal.RequireFromString("9"), Status: domain.TransactionStatusRejected, RejectReason: domain.RejectReasonInsufficientFunds}
	resp := DecisionFromResult(&usecase.DecisionResult{
		Outcome:      domain.OutcomeRejectedForInsufficientFunds,
		Transactions: []*domain.Transaction{txn},
	})

	if resp.Outcome != "rejected_insufficient_funds" || len(resp.Transactions) != 1 {
		t.Fatalf("unexpected decision response: %+v", resp)
	}
	if resp.Transactions[0].RejectReason != "insufficient_funds" {
		t.Fatalf("expected reject reason, got %q", resp.Transactions[0].RejectReason)
	}
}

func TestDashboardFromUseCase(t *testing.T) {
	resp := DashboardFromUseCase(&usecase.Dashboard{
		Accounts:     []*domain.Account{{ID: "acc-1"}},
		Transactions: []*domain.Transaction{},
	})
	if len(resp.Accounts) != 1 || resp.Transactions == nil {
		t.Fatalf("unexpected dashboard response: %+v", resp)
	}
}
