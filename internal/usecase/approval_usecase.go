package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// ApprovalConfig tunes the transfer credit retry.
type ApprovalConfig struct {
	CreditRetryAttempts int
	CreditRetryInterval time.Duration
}

// DecisionResult is what a manager decision produced. Transactions holds
// the decided transaction, or both legs for a transfer.
type DecisionResult struct {
	Outcome      domain.Outcome
	TransferID   string
	Transactions []*domain.Transaction
}

// ApprovalUseCase is the state machine turning pending requests into
// committed balance changes or terminal rejections.
type ApprovalUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	txRepo      TransactionRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	locks       LockManager
	retrier     Retrier
	idGen       IDGenerator
	metrics     *metrics.Metrics
	cfg         ApprovalConfig
}

// NewApprovalUseCase creates a new ApprovalUseCase.
func NewApprovalUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	txRepo TransactionRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	locks LockManager,
	retrier Retrier,
	idGen IDGenerator,
	metrics *metrics.Metrics,
	cfg ApprovalConfig,
) *ApprovalUseCase {
	if cfg.CreditRetryAttempts <= 0 {
		cfg.CreditRetryAttempts = DefaultCreditRetryAttempts
	}
	if cfg.CreditRetryInterval <= 0 {
		cfg.CreditRetryInterval = DefaultCreditRetryInterval
	}
	return &ApprovalUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		txRepo:      txRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		locks:       locks,
		retrier:     retrier,
		idGen:       idGen,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// creditFault carries the last credit error out of the decision transaction
// so the pair can be flagged after rollback.
type creditFault struct {
	cause error
}

func (e *creditFault) Error() string {
	return "transfer credit failed: " + e.cause.Error()
}

// Decide approves or rejects a pending transaction. A transfer leg decides
// the whole pair. Insufficient funds is an outcome, not an error.
func (uc *ApprovalUseCase) Decide(ctx context.Context, transactionID string, decision domain.Decision) (*DecisionResult, error) {
	start := time.Now()

	result, err := uc.decide(ctx, transactionID, decision)

	if uc.metrics != nil {
		uc.metrics.DecisionDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			uc.metrics.DecisionErrors.WithLabelValues(errorType(err)).Inc()
		} else {
			kind := domain.KindPlain
			if result.TransferID != "" {
				kind = domain.KindTransferLeg
			}
			uc.metrics.TransactionDecisions.WithLabelValues(string(kind), string(result.Outcome)).Inc()
			if result.Outcome == domain.OutcomeApproved {
				amount, _ := result.Transactions[0].Amount.Float64()
				uc.metrics.ApprovedAmount.Observe(amount)
			}
		}
	}

	return result, err
}

func (uc *ApprovalUseCase) decide(ctx context.Context, transactionID string, decision domain.Decision) (*DecisionResult, error) {
	if _, err := domain.ParseDecision(string(decision)); err != nil {
		return nil, err
	}
	if err := requireManager(ctx); err != nil {
		return nil, err
	}

	txn, err := uc.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	account, err := uc.accountRepo.GetByID(ctx, txn.AccountID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, account); err != nil {
		return nil, err
	}

	// A decided leg still goes through the pair check so a half-applied
	// transfer reports as inconsistent.
	if leg, ok := txn.Leg(); ok {
		return uc.decideTransfer(ctx, leg.TransferID, decision)
	}
	if !txn.IsPending() {
		return nil, domain.ErrAlreadyDecided
	}
	return uc.decidePlain(ctx, txn, decision)
}

func (uc *ApprovalUseCase) decidePlain(ctx context.Context, txn *domain.Transaction, decision domain.Decision) (*DecisionResult, error) {
	release, err := lockAccounts(ctx, uc.locks, uc.metrics, txn.AccountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *DecisionResult
	err = retry(ctx, uc.retrier, func() error {
		var err error
		result, err = uc.decidePlainOnce(ctx, txn.ID, decision)
		return err
	})
	return result, err
}

func (uc *ApprovalUseCase) decidePlainOnce(ctx context.Context, id string, decision domain.Decision) (*DecisionResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	txn, err := uc.txRepo.GetByIDForUpdate(txCtx, tx, id)
	if err != nil {
		return nil, err
	}
	if !txn.IsPending() {
		return nil, domain.ErrAlreadyDecided
	}

	before := *txn
	now := time.Now().UTC()
	actor := domain.ActorID(ctx)
	outcome := domain.OutcomeRejected

	if decision == domain.DecisionApprove {
		_, err := uc.accountRepo.ApplyBalanceDelta(txCtx, tx, txn.AccountID, txn.SignedDelta(), now)
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			outcome = domain.OutcomeRejectedForInsufficientFunds
		case err != nil:
			return nil, err
		default:
			outcome = domain.OutcomeApproved
		}
	}

	switch outcome {
	case domain.OutcomeApproved:
		err = txn.MarkApproved(actor, now)
	case domain.OutcomeRejectedForInsufficientFunds:
		err = txn.MarkRejected(domain.RejectReasonInsufficientFunds, actor, now)
	default:
		err = txn.MarkRejected(domain.RejectReasonManager, actor, now)
	}
	if err != nil {
		return nil, err
	}

	if err := uc.txRepo.UpdateStatus(txCtx, tx, txn); err != nil {
		return nil, err
	}

	eventType := domain.EventTypeTransactionRejected
	if outcome == domain.OutcomeApproved {
		eventType = domain.EventTypeTransactionApproved
	}
	event := newOutboxEvent(uc.idGen.Generate(), domain.AggregateTypeTransaction, txn.ID,
		eventType, domain.NewTransactionEvent(txn, outcome), now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	audit := domain.NewAuditLog(uc.idGen.Generate(), callerIdentity(ctx), domain.AuditActionTransactionDecide,
		domain.AggregateTypeTransaction, txn.ID, &before, txn, now)
	if err := writeAudit(txCtx, uc.auditRepo, tx, audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return &DecisionResult{Outcome: outcome, Transactions: []*domain.Transaction{txn}}, nil
}

func (uc *ApprovalUseCase) loadPair(ctx context.Context, transferID string) (*domain.TransferPair, error) {
	legs, err := uc.txRepo.GetByTransferID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, domain.ErrTransferNotFound
	}
	pair, err := domain.PairFromLegs(legs)
	if err != nil {
		log.Error().Err(err).Str("transfer_id", transferID).Msg("transfer pair is inconsistent")
		return nil, err
	}
	return pair, nil
}

func (uc *ApprovalUseCase) decideTransfer(ctx context.Context, transferID string, decision domain.Decision) (*DecisionResult, error) {
	pair, err := uc.loadPair(ctx, transferID)
	if err != nil {
		return nil, err
	}

	release, err := lockAccounts(ctx, uc.locks, uc.metrics, pair.AccountIDs()...)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *DecisionResult
	err = retry(ctx, uc.retrier, func() error {
		var err error
		result, err = uc.decideTransferOnce(ctx, transferID, decision)
		return err
	})

	var fault *creditFault
	if errors.As(err, &fault) {
		return nil, uc.flagFault(ctx, transferID, fault.cause)
	}
	return result, err
}

func (uc *ApprovalUseCase) decideTransferOnce(ctx context.Context, transferID string, decision domain.Decision) (*DecisionResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	legs, err := uc.txRepo.GetByTransferIDForUpdate(txCtx, tx, transferID)
	if err != nil {
		return nil, err
	}
	pair, err := domain.PairFromLegs(legs)
	if err != nil {
		log.Error().Err(err).Str("transfer_id", transferID).Msg("transfer pair is inconsistent")
		return nil, err
	}
	if err := pair.CheckDecidable(); err != nil {
		if errors.Is(err, domain.ErrInconsistentTransferState) {
			log.Error().Err(err).Str("transfer_id", transferID).
				Str("debit_status", string(pair.Debit.Status)).
				Str("credit_status", string(pair.Credit.Status)).
				Msg("transfer legs disagree, refusing to decide")
		}
		return nil, err
	}

	before := []domain.Transaction{*pair.Debit, *pair.Credit}
	now := time.Now().UTC()
	actor := domain.ActorID(ctx)
	outcome := domain.OutcomeRejected

	if decision == domain.DecisionApprove {
		// Row locks in id order before any balance write.
		if _, err := uc.accountRepo.GetByIDsForUpdate(txCtx, tx, pair.AccountIDs()); err != nil {
			return nil, err
		}

		_, err := uc.accountRepo.ApplyBalanceDelta(txCtx, tx, pair.Debit.AccountID, pair.Debit.SignedDelta(), now)
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			outcome = domain.OutcomeRejectedForInsufficientFunds
		case err != nil:
			return nil, err
		default:
			if err := uc.applyCredit(txCtx, tx, pair, now); err != nil {
				return nil, &creditFault{cause: err}
			}
			outcome = domain.OutcomeApproved
		}
	}

	switch outcome {
	case domain.OutcomeApproved:
		err = pair.MarkApproved(actor, now)
	case domain.OutcomeRejectedForInsufficientFunds:
		err = pair.MarkRejected(domain.RejectReasonInsufficientFunds, actor, now)
	default:
		err = pair.MarkRejected(domain.RejectReasonManager, actor, now)
	}
	if err != nil {
		return nil, err
	}

	if err := uc.txRepo.UpdatePairStatus(txCtx, tx, pair); err != nil {
		return nil, err
	}

	eventType := domain.EventTypeTransferRejected
	if outcome == domain.OutcomeApproved {
		eventType = domain.EventTypeTransferApproved
	}
	event := newOutboxEvent(uc.idGen.Generate(), domain.AggregateTypeTransfer, pair.ID,
		eventType, domain.NewTransferEvent(pair, outcome), now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	audit := domain.NewAuditLog(uc.idGen.Generate(), callerIdentity(ctx), domain.AuditActionTransferDecide,
		domain.AggregateTypeTransfer, pair.ID, before, pair.Legs(), now)
	if err := writeAudit(txCtx, uc.auditRepo, tx, audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return &DecisionResult{Outcome: outcome, TransferID: pair.ID, Transactions: pair.Legs()}, nil
}

// applyCredit credits the destination inside a savepoint, retrying on
// infrastructure errors. The debit in the enclosing transaction is untouched
// by a failed attempt.
func (uc *ApprovalUseCase) applyCredit(ctx context.Context, tx Transaction, pair *domain.TransferPair, now time.Time) error {
	attempt := 0
	operation := func() error {
		attempt++
		sp, err := tx.Savepoint(ctx)
		if err != nil {
			return err
		}

		_, err = uc.accountRepo.ApplyBalanceDelta(ctx, sp, pair.Credit.AccountID, pair.Credit.SignedDelta(), now)
		if err == nil {
			return sp.Commit(ctx)
		}
		_ = sp.Rollback(ctx)

		if domain.IsNotFound(err) || errors.Is(err, domain.ErrInsufficientFunds) {
			return backoff.Permanent(err)
		}
		if uc.metrics != nil {
			uc.metrics.CreditRetries.Inc()
		}
		log.Warn().Err(err).
			Str("transfer_id", pair.ID).
			Int("attempt", attempt).
			Int("max_attempts", uc.cfg.CreditRetryAttempts).
			Msg("transfer credit failed, retrying")
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = uc.cfg.CreditRetryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(uc.cfg.CreditRetryAttempts-1)), ctx)

	return backoff.Retry(operation, policy)
}

// flagFault marks a pair whose credit could not be applied. The decision
// transaction has already rolled back, so neither balance changed and both
// legs are still pending.
func (uc *ApprovalUseCase) flagFault(ctx context.Context, transferID string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	logger := log.Error().Err(cause).Str("transfer_id", transferID)
	if uc.metrics != nil {
		uc.metrics.TransferFaults.Inc()
	}

	if err := uc.writeFault(ctx, transferID, cause); err != nil {
		logger.AnErr("flag_error", err).Msg("TRANSFER FAULT: credit retries exhausted and fault flag could not be written")
		return fmt.Errorf("%w: %v (flagging failed: %v)", domain.ErrTransferFaulted, cause, err)
	}

	logger.Msg("TRANSFER FAULT: credit retries exhausted, pair held pending for operator intervention")
	return fmt.Errorf("%w: %v", domain.ErrTransferFaulted, cause)
}

func (uc *ApprovalUseCase) writeFault(ctx context.Context, transferID string, cause error) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	legs, err := uc.txRepo.GetByTransferIDForUpdate(txCtx, tx, transferID)
	if err != nil {
		return err
	}
	pair, err := domain.PairFromLegs(legs)
	if err != nil {
		return err
	}
	if status, err := pair.Status(); err != nil || status != domain.TransactionStatusPending {
		return fmt.Errorf("pair no longer pending: %w", domain.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	pair.MarkFault(cause.Error(), now)
	if err := uc.txRepo.SetPairFault(txCtx, tx, pair); err != nil {
		return err
	}

	event := newOutboxEvent(uc.idGen.Generate(), domain.AggregateTypeTransfer, pair.ID,
		domain.EventTypeTransferFaulted, domain.NewTransferEvent(pair, ""), now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return err
	}

	audit := domain.NewAuditLog(uc.idGen.Generate(), callerIdentity(ctx), domain.AuditActionTransferFault,
		domain.AggregateTypeTransfer, pair.ID, nil, pair.Legs(), now)
	audit.Status = domain.AuditStatusFailure
	audit.ErrorMessage = cause.Error()
	if err := writeAudit(txCtx, uc.auditRepo, tx, audit); err != nil {
		return err
	}

	return tx.Commit(txCtx)
}

// ClearFault removes the fault flag from a pending pair after an operator
// has looked at it, making it decidable again.
func (uc *ApprovalUseCase) ClearFault(ctx context.Context, transferID string) (*domain.TransferPair, error) {
	if err := requireManager(ctx); err != nil {
		return nil, err
	}

	pair, err := uc.loadPair(ctx, transferID)
	if err != nil {
		return nil, err
	}

	release, err := lockAccounts(ctx, uc.locks, uc.metrics, pair.AccountIDs()...)
	if err != nil {
		return nil, err
	}
	defer release()

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	legs, err := uc.txRepo.GetByTransferIDForUpdate(txCtx, tx, transferID)
	if err != nil {
		return nil, err
	}
	pair, err = domain.PairFromLegs(legs)
	if err != nil {
		return nil, err
	}

	before := []domain.Transaction{*pair.Debit, *pair.Credit}
	now := time.Now().UTC()
	if err := pair.ClearFault(now); err != nil {
		return nil, err
	}
	if err := uc.txRepo.SetPairFault(txCtx, tx, pair); err != nil {
		return nil, err
	}

	audit := domain.NewAuditLog(uc.idGen.Generate(), callerIdentity(ctx), domain.AuditActionTransferClear,
		domain.AggregateTypeTransfer, pair.ID, before, pair.Legs(), now)
	if err := writeAudit(txCtx, uc.auditRepo, tx, audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	log.Info().Str("transfer_id", pair.ID).Str("cleared_by", domain.ActorID(ctx)).Msg("transfer fault cleared")
	return pair, nil
}

// ListFaulted lists transfer legs currently held with a fault flag.
func (uc *ApprovalUseCase) ListFaulted(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	if err := requireManager(ctx); err != nil {
		return nil, err
	}
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.txRepo.ListFaulted(ctx, limit, offset)
}

// ReportFaulted refreshes the faulted transfer gauge and logs every faulted
// pair. It runs on a schedule.
func (uc *ApprovalUseCase) ReportFaulted(ctx context.Context) (int, error) {
	count, err := uc.txRepo.CountFaultedTransfers(ctx)
	if err != nil {
		return 0, err
	}
	if uc.metrics != nil {
		uc.metrics.FaultedTransfers.Set(float64(count))
	}
	if count == 0 {
		return 0, nil
	}

	legs, err := uc.txRepo.ListFaulted(ctx, 500, 0)
	if err != nil {
		return count, err
	}
	for _, leg := range legs {
		if l, ok := leg.Leg(); ok && l.Direction == domain.LegDebit {
			log.Error().
				Str("transfer_id", l.TransferID).
				Str("from_account_id", leg.AccountID).
				Str("amount", leg.Amount.StringFixed(domain.AmountScale)).
				Str("fault_reason", leg.FaultReason).
				Msg("transfer awaiting operator intervention")
		}
	}
	return count, nil
}
