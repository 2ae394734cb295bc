package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// AccountUseCase is the ledger store boundary for account lifecycle.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	banks       BankDirectory
	numbers     AccountNumberGenerator
	locks       LockManager
	retrier     Retrier
	idGen       IDGenerator
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	banks BankDirectory,
	numbers AccountNumberGenerator,
	locks LockManager,
	retrier Retrier,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		banks:       banks,
		numbers:     numbers,
		locks:       locks,
		retrier:     retrier,
		idGen:       idGen,
		metrics:     metrics,
	}
}

// OpenAccountInput represents input for opening an account.
type OpenAccountInput struct {
	OwnerID    string
	BankID     string
	HolderName string
}

// OpenAccount records a pending account. It holds no balance and has no
// number until a manager approves it.
func (uc *AccountUseCase) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	now := time.Now().UTC()

	account, err := domain.NewAccount(uc.idGen.Generate(), input.OwnerID, input.BankID, input.HolderName, now)
	if err != nil {
		return nil, err
	}

	if _, err := uc.banks.GetByID(ctx, input.BankID); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.accountRepo.Create(txCtx, tx, account); err != nil {
		return nil, err
	}

	event := newOutboxEvent(uc.idGen.Generate(), domain.AggregateTypeAccount, account.ID,
		domain.EventTypeAccountOpened, domain.NewAccountEvent(account), now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	audit := domain.NewAuditLog(uc.idGen.Generate(), callerIdentity(ctx), domain.AuditActionAccountOpen,
		domain.AggregateTypeAccount, account.ID, nil, account, now)
	if err := writeAudit(txCtx, uc.auditRepo, tx, audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsOpened.Inc()
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccountByNumber retrieves an approved account by its 12-digit number.
func (uc *AccountUseCase) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	if err := domain.ValidateAccountNumber(number); err != nil {
		return nil, err
	}
	account, err := uc.accountRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// DecideAccount approves or rejects a pending account. Approval assigns the
// next account number and a zero balance; a second decision fails with
// domain.ErrAccountAlreadyDecided.
func (uc *AccountUseCase) DecideAccount(ctx context.Context, id string, decision domain.Decision) (*domain.Account, error) {
	if _, err := domain.ParseDecision(string(decision)); err != nil {
		return nil, err
	}
	if err := requireManager(ctx); err != nil {
		return nil, err
	}

	release, err := lockAccounts(ctx, uc.locks, uc.metrics, id)
	if err != nil {
		return nil, err
	}
	defer release()

	var account *domain.Account
	err = retry(ctx, uc.retrier, func() error {
		var err error
		account, err = uc.decideAccountOnce(ctx, id, decision)
		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountDecisions.WithLabelValues(string(account.Status)).Inc()
	}
	return account, nil
}

func (uc *AccountUseCase) decideAccountOnce(ctx context.Context, id string, decision domain.Decision) (*domain.Account, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	account, err := uc.accountRepo.GetByIDForUpdate(txCtx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, account); err != nil {
		return nil, err
	}
	if account.Status != domain.AccountStatusPending {
		return nil, domain.ErrAccountAlreadyDecided
	}

	before := *account
	now := time.Now().UTC()
	actor := domain.ActorID(ctx)
	eventType := domain.EventTypeAccountRejected

	switch decision {
	case domain.DecisionApprove:
		number, err := uc.numbers.Next(txCtx, tx)
		if err != nil {
			return nil, fmt.Errorf("assign account number: %w", err)
		}
		if err := account.Approve(number, actor, now); err != nil {
			return nil, err
		}
		eventType = domain.EventTypeAccountApproved
	case domain.DecisionReject:
		if err := account.Reject(actor, now); err != nil {
			return nil, err
		}
	}

	if err := uc.accountRepo.UpdateStatus(txCtx, tx, account); err != nil {
		return nil, err
	}

	event := newOutboxEvent(uc.idGen.Generate(), domain.AggregateTypeAccount, account.ID,
		eventType, domain.NewAccountEvent(account), now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	audit := domain.NewAuditLog(uc.idGen.Generate(), callerIdentity(ctx), domain.AuditActionAccountDecide,
		domain.AggregateTypeAccount, account.ID, &before, account, now)
	if err := writeAudit(txCtx, uc.auditRepo, tx, audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return account, nil
}
