package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// IntakeUseCase records new pending requests. It never touches balances and
// never checks funds; sufficiency is decided at approval time.
type IntakeUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	txRepo      TransactionRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	metrics     *metrics.Metrics
}

// NewIntakeUseCase creates a new IntakeUseCase.
func NewIntakeUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	txRepo TransactionRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *IntakeUseCase {
	return &IntakeUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		txRepo:      txRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		metrics:     metrics,
	}
}

// SubmitInput represents a deposit or withdrawal request.
type SubmitInput struct {
	AccountID string
	Type      domain.TransactionType
	Amount    decimal.Decimal
}

// SubmitTransferInput represents a transfer request.
type SubmitTransferInput struct {
	FromAccountID   string
	ToAccountNumber string
	Amount          decimal.Decimal
}

// Submit records a pending deposit or withdrawal on an approved account.
func (uc *IntakeUseCase) Submit(ctx context.Context, input SubmitInput) (*domain.Transaction, error) {
	now := time.Now().UTC()

	txn, err := domain.NewTransaction(uc.idGen.Generate(), input.AccountID, input.Type, input.Amount, now)
	if err != nil {
		return nil, err
	}

	account, err := uc.accountRepo.GetByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, account); err != nil {
		return nil, err
	}
	if !account.IsApproved() {
		return nil, domain.ErrAccountNotApproved
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.txRepo.Create(txCtx, tx, txn); err != nil {
		return nil, err
	}

	event := newOutboxEvent(uc.idGen.Generate(), domain.AggregateTypeTransaction, txn.ID,
		domain.EventTypeTransactionSubmitted, domain.NewTransactionEvent(txn, ""), now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransactionsSubmitted.WithLabelValues(string(txn.Type)).Inc()
	}

	return txn, nil
}

// SubmitTransfer records both legs of a transfer in one write. The
// destination is resolved by account number and must be approved.
func (uc *IntakeUseCase) SubmitTransfer(ctx context.Context, input SubmitTransferInput) (*domain.TransferPair, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountNumber(input.ToAccountNumber); err != nil {
		return nil, err
	}

	source, err := uc.accountRepo.GetByID(ctx, input.FromAccountID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, source); err != nil {
		return nil, err
	}
	if !source.IsApproved() {
		return nil, domain.ErrAccountNotApproved
	}

	dest, err := uc.accountRepo.GetByNumber(ctx, input.ToAccountNumber)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrDestinationNotFound
	}
	if err != nil {
		return nil, err
	}
	if !dest.IsApproved() {
		return nil, domain.ErrDestinationNotFound
	}
	if dest.ID == source.ID {
		return nil, domain.ErrSelfTransferNotAllowed
	}

	now := time.Now().UTC()
	pair, err := domain.NewTransfer(uc.idGen.Generate(), uc.idGen.Generate(), uc.idGen.Generate(),
		source.ID, dest.ID, input.Amount, now)
	if err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.txRepo.CreatePair(txCtx, tx, pair); err != nil {
		return nil, err
	}

	event := newOutboxEvent(uc.idGen.Generate(), domain.AggregateTypeTransfer, pair.ID,
		domain.EventTypeTransferSubmitted, domain.NewTransferEvent(pair, ""), now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransfersSubmitted.Inc()
	}

	return pair, nil
}
