package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

func testPair(t *testing.T) *domain.TransferPair {
	t.Helper()
	pair, err := domain.NewTransfer("tr-1", "leg-d", "leg-c", "acc-a", "acc-b", decimal.NewFromInt(40), time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	return pair
}

func TestCreatePairSingleStatement(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectExec(`INSERT INTO transactions .* VALUES \(\$1, .*\$13\), \(\$14, .*\$26\)`).
		WithArgs(anyArgs(26)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	repo := newTransactionRepository(pool)
	if err := repo.CreatePair(context.Background(), tx, testPair(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertExpectations(t, pool)
}

func TestUpdatePairStatusRequiresBothLegs(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		wantErr bool
	}{
		{name: "both legs written", rows: 2},
		{name: "one leg written", rows: 1, wantErr: true},
		{name: "no legs written", rows: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			tx := beginMockTx(t, pool)

			pool.ExpectExec("UPDATE transactions t").
				WithArgs(anyArgs(17)...).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.rows))

			repo := newTransactionRepository(pool)
			pair := testPair(t)
			if err := pair.MarkApproved("manager-1", time.Now()); err != nil {
				t.Fatal(err)
			}

			err := repo.UpdatePairStatus(context.Background(), tx, pair)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				assertExpectations(t, pool)
				return
			}
			if !errors.Is(err, domain.ErrInconsistentTransferState) {
				t.Fatalf("expected ErrInconsistentTransferState, got %v", err)
			}
			if want := fmt.Sprintf("updated %d legs", tt.rows); !strings.Contains(err.Error(), want) {
				t.Fatalf("expected row-count error %q, got %v", want, err)
			}
			assertExpectations(t, pool)
		})
	}
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestGetByTransferIDForUpdateMissing(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery("WHERE t.transfer_id = \\$1").
		WithArgs("tr-missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "account_id", "type", "amount", "status", "transfer_id", "reject_reason",
			"fault", "fault_reason", "decided_by", "decided_at", "created_at", "updated_at",
		}))

	repo := newTransactionRepository(pool)
	_, err := repo.GetByTransferIDForUpdate(context.Background(), tx, "tr-missing")
	if !errors.Is(err, domain.ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestTransactionListKindAndBank(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery(`JOIN accounts a ON a.id = t.account_id WHERE a.bank_id = \$1 AND t.transfer_id IS NOT NULL AND t.type = 'withdrawal'`).
		WithArgs("bank-1", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "account_id", "type", "amount", "status", "transfer_id", "reject_reason",
			"fault", "fault_reason", "decided_by", "decided_at", "created_at", "updated_at",
		}))

	repo := newTransactionRepository(pool)
	txns, err := repo.List(context.Background(), domain.TransactionFilter{
		BankID: "bank-1",
		Kind:   domain.FilterKindTransferSent,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("expected no rows, got %d", len(txns))
	}
	assertExpectations(t, pool)
}

func TestSequenceNumberGenerator(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery("nextval\\('account_number_seq'\\)").
		WillReturnRows(pgxmock.NewRows([]string{"nextval"}).AddRow(int64(42)))

	number, err := NewSequenceNumberGenerator().Next(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if number != "000000000042" {
		t.Fatalf("number = %s", number)
	}
}
