package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

func seedActivity(t *testing.T, f *fixture) *domain.TransferPair {
	t.Helper()
	f.approvedAccount("acc-a", "user-a", "000000000001", 100)
	f.approvedAccount("acc-b", "user-b", "000000000002", 10)
	submit(t, f, "acc-a", domain.TransactionTypeDeposit, 5)
	submit(t, f, "acc-b", domain.TransactionTypeWithdrawal, 5)
	return submitTransfer(t, f, "acc-a", "000000000002", 40)
}

func TestQueryUseCase_ListAccountsScopedToCaller(t *testing.T) {
	f := newFixture(t)
	seedActivity(t, f)
	other := f.approvedAccount("acc-z", "user-z", "000000000003", 0)
	other.BankID = otherBankID
	f.accounts.Seed(other)

	tests := []struct {
		name  string
		ctx   context.Context
		input usecase.ListAccountsInput
		want  int
	}{
		{"customer sees own accounts only", customerCtx("user-a"), usecase.ListAccountsInput{OwnerID: "user-b"}, 1},
		{"manager sees own bank", managerCtx(), usecase.ListAccountsInput{}, 2},
		{"manager filters by owner", managerCtx(), usecase.ListAccountsInput{OwnerID: "user-b"}, 1},
		{"internal caller sees everything", context.Background(), usecase.ListAccountsInput{}, 3},
		{"status filter", context.Background(), usecase.ListAccountsInput{Status: domain.AccountStatusPending}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts, err := f.queryUC.ListAccounts(tt.ctx, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(accounts) != tt.want {
				t.Fatalf("got %d accounts, want %d", len(accounts), tt.want)
			}
		})
	}

	if _, err := f.queryUC.ListAccounts(context.Background(), usecase.ListAccountsInput{Status: "frozen"}); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestQueryUseCase_ListTransactionsFilters(t *testing.T) {
	f := newFixture(t)
	seedActivity(t, f)

	tests := []struct {
		name  string
		ctx   context.Context
		input usecase.ListTransactionsInput
		want  int
	}{
		{"all for account a", context.Background(), usecase.ListTransactionsInput{AccountID: "acc-a"}, 2},
		{"plain only", context.Background(), usecase.ListTransactionsInput{AccountID: "acc-a", Kind: domain.FilterKindPlain}, 1},
		{"transfers sent", context.Background(), usecase.ListTransactionsInput{AccountID: "acc-a", Kind: domain.FilterKindTransferSent}, 1},
		{"transfers received by a", context.Background(), usecase.ListTransactionsInput{AccountID: "acc-a", Kind: domain.FilterKindTransferReceived}, 0},
		{"transfers received by b", context.Background(), usecase.ListTransactionsInput{AccountID: "acc-b", Kind: domain.FilterKindTransferReceived}, 1},
		{"withdrawals", context.Background(), usecase.ListTransactionsInput{Type: domain.TransactionTypeWithdrawal}, 2},
		{"customer without account id", customerCtx("user-b"), usecase.ListTransactionsInput{}, 2},
		{"manager of the bank", managerCtx(), usecase.ListTransactionsInput{Kind: domain.FilterKindTransfer}, 2},
		{"approved only", context.Background(), usecase.ListTransactionsInput{Status: domain.TransactionStatusApproved}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns, err := f.queryUC.ListTransactions(tt.ctx, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(txns) != tt.want {
				t.Fatalf("got %d transactions, want %d", len(txns), tt.want)
			}
		})
	}
}

func TestQueryUseCase_ListTransactionsRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	seedActivity(t, f)

	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name  string
		ctx   context.Context
		input usecase.ListTransactionsInput
		want  error
	}{
		{"inverted range", context.Background(), usecase.ListTransactionsInput{From: &now, To: &earlier}, domain.ErrInvalidDateRange},
		{"unknown kind", context.Background(), usecase.ListTransactionsInput{Kind: "sideways"}, domain.ErrInvalidFilter},
		{"unknown type", context.Background(), usecase.ListTransactionsInput{Type: "refund"}, domain.ErrInvalidFilter},
		{"foreign account", customerCtx("user-b"), usecase.ListTransactionsInput{AccountID: "acc-a"}, domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.queryUC.ListTransactions(tt.ctx, tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestQueryUseCase_GetTransfer(t *testing.T) {
	f := newFixture(t)
	pair := seedActivity(t, f)

	for _, user := range []string{"user-a", "user-b"} {
		got, err := f.queryUC.GetTransfer(customerCtx(user), pair.ID)
		if err != nil {
			t.Fatalf("%s: %v", user, err)
		}
		if got.Debit.ID != pair.Debit.ID || got.Credit.ID != pair.Credit.ID {
			t.Fatalf("%s: wrong legs", user)
		}
	}

	if _, err := f.queryUC.GetTransfer(customerCtx("user-z"), pair.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger: expected ErrForbidden, got %v", err)
	}
	if _, err := f.queryUC.GetTransfer(context.Background(), "missing"); !errors.Is(err, domain.ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got %v", err)
	}
	if _, err := f.queryUC.GetTransaction(customerCtx("user-b"), pair.Credit.ID); err != nil {
		t.Fatalf("receiver reading credit leg: %v", err)
	}
}

func TestQueryUseCase_Dashboard(t *testing.T) {
	f := newFixture(t)
	seedActivity(t, f)

	if _, err := f.queryUC.Dashboard(context.Background(), 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	dash, err := f.queryUC.Dashboard(customerCtx("user-a"), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dash.Accounts) != 1 || len(dash.Transactions) != 2 {
		t.Fatalf("dashboard = %d accounts, %d transactions", len(dash.Accounts), len(dash.Transactions))
	}

	banks, err := f.queryUC.ListBanks(context.Background())
	if err != nil || len(banks) != 1 {
		t.Fatalf("list banks: %v", err)
	}
}
