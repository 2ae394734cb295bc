package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
	"github.com/iho/bankledger/tests/testutil"
)

func TestDepositAndWithdrawal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	stack := testDB.NewStack()
	customer := testutil.Customer(ctx, "alice")
	manager := testutil.Manager(ctx, testutil.BankOne)
	account := testDB.CreateApprovedAccount(ctx, "alice", testutil.BankOne, testutil.Amount("0"))

	deposit, err := stack.Intake.Submit(customer, usecase.SubmitInput{
		AccountID: account.ID,
		Type:      domain.TransactionTypeDeposit,
		Amount:    testutil.Amount("150.25"),
	})
	if err != nil {
		t.Fatalf("failed to submit deposit: %v", err)
	}
	if !testDB.Balance(ctx, account.ID).IsZero() {
		t.Fatal("a pending deposit must not move the balance")
	}

	result, err := stack.Approval.Decide(manager, deposit.ID, domain.DecisionApprove)
	if err != nil {
		t.Fatalf("failed to approve deposit: %v", err)
	}
	if result.Outcome != domain.OutcomeApproved {
		t.Fatalf("expected approved, got %s", result.Outcome)
	}
	if got := testDB.Balance(ctx, account.ID); !got.Equal(testutil.Amount("150.25")) {
		t.Errorf("expected balance 150.25, got %s", got)
	}

	t.Run("withdrawal above balance is rejected at approval", func(t *testing.T) {
		withdrawal, err := stack.Intake.Submit(customer, usecase.SubmitInput{
			AccountID: account.ID,
			Type:      domain.TransactionTypeWithdrawal,
			Amount:    testutil.Amount("200.00"),
		})
		if err != nil {
			t.Fatalf("submission must not check funds: %v", err)
		}

		result, err := stack.Approval.Decide(manager, withdrawal.ID, domain.DecisionApprove)
		if err != nil {
			t.Fatalf("insufficient funds is an outcome, got error %v", err)
		}
		if result.Outcome != domain.OutcomeRejectedForInsufficientFunds {
			t.Errorf("expected insufficient funds outcome, got %s", result.Outcome)
		}

		stored, err := stack.Query.GetTransaction(customer, withdrawal.ID)
		if err != nil {
			t.Fatalf("failed to get transaction: %v", err)
		}
		if stored.Status != domain.TransactionStatusRejected || stored.RejectReason != domain.RejectReasonInsufficientFunds {
			t.Errorf("expected rejected for insufficient funds, got %s/%s", stored.Status, stored.RejectReason)
		}
		if got := testDB.Balance(ctx, account.ID); !got.Equal(testutil.Amount("150.25")) {
			t.Errorf("balance changed to %s", got)
		}
	})

	t.Run("exact withdrawal drains the account", func(t *testing.T) {
		withdrawal, err := stack.Intake.Submit(customer, usecase.SubmitInput{
			AccountID: account.ID,
			Type:      domain.TransactionTypeWithdrawal,
			Amount:    testutil.Amount("150.25"),
		})
		if err != nil {
			t.Fatalf("failed to submit withdrawal: %v", err)
		}
		if _, err := stack.Approval.Decide(manager, withdrawal.ID, domain.DecisionApprove); err != nil {
			t.Fatalf("failed to approve withdrawal: %v", err)
		}
		if got := testDB.Balance(ctx, account.ID); !got.IsZero() {
			t.Errorf("expected zero balance, got %s", got)
		}
	})

	t.Run("manager rejection leaves the balance", func(t *testing.T) {
		txn, err := stack.Intake.Submit(customer, usecase.SubmitInput{
			AccountID: account.ID,
			Type:      domain.TransactionTypeDeposit,
			Amount:    testutil.Amount("10"),
		})
		if err != nil {
			t.Fatalf("failed to submit: %v", err)
		}
		result, err := stack.Approval.Decide(manager, txn.ID, domain.DecisionReject)
		if err != nil {
			t.Fatalf("failed to reject: %v", err)
		}
		if result.Outcome != domain.OutcomeRejected {
			t.Errorf("expected rejected, got %s", result.Outcome)
		}
		if _, err := stack.Approval.Decide(manager, txn.ID, domain.DecisionApprove); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected a decided transaction to stay decided, got %v", err)
		}
	})
}

func TestTransfers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	stack := testDB.NewStack()
	alice := testutil.Customer(ctx, "alice")
	manager := testutil.Manager(ctx, "")

	source := testDB.CreateApprovedAccount(ctx, "alice", testutil.BankOne, testutil.Amount("100.00"))
	dest := testDB.CreateApprovedAccount(ctx, "bob", testutil.BankTwo, testutil.Amount("5.00"))

	t.Run("approved transfer moves funds between banks", func(t *testing.T) {
		pair, err := stack.Intake.SubmitTransfer(alice, usecase.SubmitTransferInput{
			FromAccountID:   source.ID,
			ToAccountNumber: *dest.AccountNumber,
			Amount:          testutil.Amount("40.00"),
		})
		if err != nil {
			t.Fatalf("failed to submit transfer: %v", err)
		}
		if pair.Debit.AccountID != source.ID || pair.Credit.AccountID != dest.ID {
			t.Fatalf("legs point at the wrong accounts: %+v", pair)
		}

		// Deciding either leg decides the pair.
		result, err := stack.Approval.Decide(manager, pair.Credit.ID, domain.DecisionApprove)
		if err != nil {
			t.Fatalf("failed to approve transfer: %v", err)
		}
		if result.Outcome != domain.OutcomeApproved || result.TransferID != pair.ID {
			t.Fatalf("unexpected result %+v", result)
		}

		if got := testDB.Balance(ctx, source.ID); !got.Equal(testutil.Amount("60.00")) {
			t.Errorf("expected source 60.00, got %s", got)
		}
		if got := testDB.Balance(ctx, dest.ID); !got.Equal(testutil.Amount("45.00")) {
			t.Errorf("expected destination 45.00, got %s", got)
		}

		stored, err := stack.Query.GetTransfer(alice, pair.ID)
		if err != nil {
			t.Fatalf("failed to get transfer: %v", err)
		}
		if stored.Debit.Status != domain.TransactionStatusApproved || stored.Credit.Status != domain.TransactionStatusApproved {
			t.Errorf("legs disagree: %s/%s", stored.Debit.Status, stored.Credit.Status)
		}
	})

	t.Run("insufficient funds rejects both legs", func(t *testing.T) {
		pair, err := stack.Intake.SubmitTransfer(alice, usecase.SubmitTransferInput{
			FromAccountID:   source.ID,
			ToAccountNumber: *dest.AccountNumber,
			Amount:          testutil.Amount("1000.00"),
		})
		if err != nil {
			t.Fatalf("failed to submit transfer: %v", err)
		}

		result, err := stack.Approval.Decide(manager, pair.Debit.ID, domain.DecisionApprove)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Outcome != domain.OutcomeRejectedForInsufficientFunds {
			t.Errorf("expected insufficient funds, got %s", result.Outcome)
		}
		for _, leg := range result.Transactions {
			if leg.Status != domain.TransactionStatusRejected {
				t.Errorf("leg %s is %s", leg.ID, leg.Status)
			}
		}
		if got := testDB.Balance(ctx, dest.ID); !got.Equal(testutil.Amount("45.00")) {
			t.Errorf("destination changed to %s", got)
		}
	})

	t.Run("direction filters", func(t *testing.T) {
		sent, err := stack.Query.ListTransactions(alice, usecase.ListTransactionsInput{Kind: domain.FilterKindTransferSent})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(sent) != 2 {
			t.Errorf("expected 2 sent legs, got %d", len(sent))
		}

		received, err := stack.Query.ListTransactions(alice, usecase.ListTransactionsInput{Kind: domain.FilterKindTransferReceived})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(received) != 0 {
			t.Errorf("alice received nothing, got %d legs", len(received))
		}
	})

	t.Run("invalid destinations", func(t *testing.T) {
		tests := []struct {
			name   string
			number string
			want   error
		}{
			{name: "self", number: *source.AccountNumber, want: domain.ErrSelfTransferNotAllowed},
			{name: "unknown", number: "999999999999", want: domain.ErrDestinationNotFound},
			{name: "malformed", number: "12ab", want: domain.ErrInvalidAccountNumber},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := stack.Intake.SubmitTransfer(alice, usecase.SubmitTransferInput{
					FromAccountID:   source.ID,
					ToAccountNumber: tt.number,
					Amount:          testutil.Amount("1.00"),
				})
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("only the owner may send", func(t *testing.T) {
		_, err := stack.Intake.SubmitTransfer(testutil.Customer(ctx, "mallory"), usecase.SubmitTransferInput{
			FromAccountID:   source.ID,
			ToAccountNumber: *dest.AccountNumber,
			Amount:          testutil.Amount("1.00"),
		})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("expected forbidden, got %v", err)
		}
	})
}
