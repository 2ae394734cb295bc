package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/locking"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
	"github.com/iho/bankledger/internal/usecase"
	"github.com/iho/bankledger/internal/usecase/mocks"
)

const (
	testBankID  = "bank-1"
	otherBankID = "bank-2"
)

type fixture struct {
	txManager *mocks.MockTransactionManager
	accounts  *mocks.MockAccountRepository
	txns      *mocks.MockTransactionRepository
	outbox    *mocks.MockOutboxRepository
	audit     *mocks.MockAuditRepository
	ids       *mocks.MockIDGenerator
	banks     *mocks.MockBankDirectory
	locks     *locking.KeyedLocker
	metrics   *metrics.Metrics

	accountUC  *usecase.AccountUseCase
	intakeUC   *usecase.IntakeUseCase
	approvalUC *usecase.ApprovalUseCase
	queryUC    *usecase.QueryUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	banks := mocks.NewMockBankDirectory(ctrl)
	banks.EXPECT().GetByID(gomock.Any(), testBankID).
		Return(&domain.Bank{ID: testBankID, Name: "First Bank"}, nil).AnyTimes()
	banks.EXPECT().GetByID(gomock.Any(), gomock.Not(testBankID)).
		Return(nil, domain.ErrBankNotFound).AnyTimes()
	banks.EXPECT().List(gomock.Any()).
		Return([]*domain.Bank{{ID: testBankID, Name: "First Bank"}}, nil).AnyTimes()

	f := &fixture{
		txManager: mocks.NewMockTransactionManager(),
		accounts:  mocks.NewMockAccountRepository(),
		txns:      mocks.NewMockTransactionRepository(),
		outbox:    mocks.NewMockOutboxRepository(),
		audit:     mocks.NewMockAuditRepository(),
		ids:       mocks.NewMockIDGenerator(),
		banks:     banks,
		locks:     locking.NewKeyedLocker(2 * time.Second),
		metrics:   metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	f.txns.AccountBank = func(accountID string) string {
		acc, err := f.accounts.GetByID(context.Background(), accountID)
		if err != nil {
			return ""
		}
		return acc.BankID
	}

	f.accountUC = usecase.NewAccountUseCase(f.txManager, f.accounts, f.outbox, f.audit, f.banks,
		mocks.NewMockAccountNumbers(1), f.locks, &mocks.MockRetrier{}, f.ids, f.metrics)
	f.intakeUC = usecase.NewIntakeUseCase(f.txManager, f.accounts, f.txns, f.outbox, f.ids, f.metrics)
	f.approvalUC = usecase.NewApprovalUseCase(f.txManager, f.accounts, f.txns, f.outbox, f.audit,
		f.locks, &mocks.MockRetrier{}, f.ids, f.metrics,
		usecase.ApprovalConfig{CreditRetryAttempts: 3, CreditRetryInterval: time.Millisecond})
	f.queryUC = usecase.NewQueryUseCase(f.accounts, f.txns, f.banks)
	return f
}

// approvedAccount seeds an approved account with the given number and balance.
func (f *fixture) approvedAccount(id, ownerID, number string, balance int64) *domain.Account {
	n := number
	acc := &domain.Account{
		ID:            id,
		OwnerID:       ownerID,
		BankID:        testBankID,
		HolderName:    "Holder " + id,
		AccountNumber: &n,
		Balance:       decimal.NewFromInt(balance),
		Status:        domain.AccountStatusApproved,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	f.accounts.Seed(acc)
	return acc
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	return f.accounts.Balance(id)
}

func assertBalance(t *testing.T, f *fixture, id string, want int64) {
	t.Helper()
	if got := f.balance(t, id); !got.Equal(decimal.NewFromInt(want)) {
		t.Fatalf("balance of %s = %s, want %d", id, got, want)
	}
}

func managerCtx() context.Context {
	return domain.ContextWithIdentity(context.Background(), domain.Identity{
		UserID: "manager-1",
		Role:   domain.RoleManager,
		BankID: testBankID,
	})
}

func customerCtx(userID string) context.Context {
	return domain.ContextWithIdentity(context.Background(), domain.Identity{
		UserID: userID,
		Role:   domain.RoleCustomer,
	})
}
