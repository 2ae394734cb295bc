package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewTransfer(t *testing.T) {
	tests := []struct {
		name        string
		fromID      string
		toID        string
		amount      decimal.Decimal
		expectError error
	}{
		{
			name:        "valid transfer",
			fromID:      "account-1",
			toID:        "account-2",
			amount:      decimal.NewFromInt(40),
			expectError: nil,
		},
		{
			name:        "same account",
			fromID:      "account-1",
			toID:        "account-1",
			amount:      decimal.NewFromInt(40),
			expectError: ErrSelfTransferNotAllowed,
		},
		{
			name:        "zero amount",
			fromID:      "account-1",
			toID:        "account-2",
			amount:      decimal.Zero,
			expectError: ErrInvalidAmount,
		},
		{
			name:        "negative amount",
			fromID:      "account-1",
			toID:        "account-2",
			amount:      decimal.NewFromInt(-5),
			expectError: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := NewTransfer("tr-1", "tx-1", "tx-2", tt.fromID, tt.toID, tt.amount, time.Now())

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pair.Debit.Type != TransactionTypeWithdrawal || pair.Credit.Type != TransactionTypeDeposit {
				t.Error("expected withdrawal debit leg and deposit credit leg")
			}
			if *pair.Debit.TransferID != "tr-1" || *pair.Credit.TransferID != "tr-1" {
				t.Error("expected both legs to share the transfer id")
			}
			if status, _ := pair.Status(); status != TransactionStatusPending {
				t.Errorf("expected pending, got %s", status)
			}
		})
	}
}

func newTestPair(t *testing.T) *TransferPair {
	t.Helper()
	pair, err := NewTransfer("tr-1", "tx-1", "tx-2", "account-1", "account-2", decimal.NewFromInt(40), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return pair
}

func TestPairFromLegs(t *testing.T) {
	pair := newTestPair(t)

	got, err := PairFromLegs([]*Transaction{pair.Credit, pair.Debit})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Debit.ID != "tx-1" || got.Credit.ID != "tx-2" {
		t.Errorf("legs assigned to wrong sides: debit %s credit %s", got.Debit.ID, got.Credit.ID)
	}

	if _, err := PairFromLegs([]*Transaction{pair.Debit}); !errors.Is(err, ErrInconsistentTransferState) {
		t.Errorf("single leg: expected ErrInconsistentTransferState, got %v", err)
	}

	if _, err := PairFromLegs([]*Transaction{pair.Debit, pair.Debit}); !errors.Is(err, ErrInconsistentTransferState) {
		t.Errorf("two debits: expected ErrInconsistentTransferState, got %v", err)
	}

	odd := *pair.Credit
	odd.Amount = decimal.NewFromInt(41)
	if _, err := PairFromLegs([]*Transaction{pair.Debit, &odd}); !errors.Is(err, ErrInconsistentTransferState) {
		t.Errorf("amount mismatch: expected ErrInconsistentTransferState, got %v", err)
	}
}

func TestTransferPair_CheckDecidable(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(p *TransferPair)
		expectError error
	}{
		{name: "both pending", mutate: func(p *TransferPair) {}, expectError: nil},
		{
			name: "both approved",
			mutate: func(p *TransferPair) {
				p.Debit.Status = TransactionStatusApproved
				p.Credit.Status = TransactionStatusApproved
			},
			expectError: ErrAlreadyDecided,
		},
		{
			name:        "one leg decided",
			mutate:      func(p *TransferPair) { p.Debit.Status = TransactionStatusRejected },
			expectError: ErrInconsistentTransferState,
		},
		{
			name:        "faulted",
			mutate:      func(p *TransferPair) { p.MarkFault("credit failed", time.Now()) },
			expectError: ErrTransferFaulted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair := newTestPair(t)
			tt.mutate(pair)

			err := pair.CheckDecidable()

			if tt.expectError == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expectError != nil && !errors.Is(err, tt.expectError) {
				t.Fatalf("expected %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestTransferPair_MarkRejected_BothLegs(t *testing.T) {
	pair := newTestPair(t)

	if err := pair.MarkRejected(RejectReasonInsufficientFunds, "mgr-1", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, leg := range pair.Legs() {
		if leg.Status != TransactionStatusRejected {
			t.Errorf("leg %s: expected rejected, got %s", leg.ID, leg.Status)
		}
		if leg.RejectReason != RejectReasonInsufficientFunds {
			t.Errorf("leg %s: expected insufficient funds reason, got %s", leg.ID, leg.RejectReason)
		}
	}
	if err := pair.MarkApproved("mgr-1", time.Now()); !errors.Is(err, ErrAlreadyDecided) {
		t.Errorf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestTransferPair_ClearFault(t *testing.T) {
	pair := newTestPair(t)

	if err := pair.ClearFault(time.Now()); !errors.Is(err, ErrTransferNotFaulted) {
		t.Fatalf("expected ErrTransferNotFaulted, got %v", err)
	}

	pair.MarkFault("credit failed", time.Now())
	if !pair.Faulted() {
		t.Fatal("expected pair to be faulted")
	}
	if status, _ := pair.Status(); status != TransactionStatusPending {
		t.Errorf("faulted pair must stay pending, got %s", status)
	}

	if err := pair.ClearFault(time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.Faulted() || pair.Debit.FaultReason != "" {
		t.Error("expected fault to be cleared on both legs")
	}
}
