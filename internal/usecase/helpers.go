package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// lockAccounts takes the per-account locks for ids and records the wait.
func lockAccounts(ctx context.Context, locks LockManager, m *metrics.Metrics, ids ...string) (func(), error) {
	start := time.Now()
	release, err := locks.Acquire(ctx, accountLockKeys(ids...)...)
	if m != nil {
		m.LockWaitDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if errors.Is(err, domain.ErrLockTimeout) {
			if m != nil {
				m.LockTimeouts.Inc()
			}
			log.Warn().Strs("account_ids", ids).Dur("waited", time.Since(start)).Msg("account lock wait timed out")
		}
		return nil, err
	}
	return release, nil
}

func retry(ctx context.Context, r Retrier, op func() error) error {
	if r == nil {
		return op()
	}
	return r.Retry(ctx, op)
}

func newOutboxEvent(id, aggregateType, aggregateID, eventType string, payload any, now time.Time) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            id,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       domain.MarshalState(payload),
		CreatedAt:     now,
		Published:     false,
	}
}

func writeAudit(ctx context.Context, repo AuditRepository, tx Transaction, entry *domain.AuditLog) error {
	if repo == nil {
		return nil
	}
	return repo.CreateTx(ctx, tx, entry)
}

func callerIdentity(ctx context.Context) domain.Identity {
	if id, ok := domain.IdentityFromContext(ctx); ok {
		return id
	}
	return domain.Identity{UserID: domain.ActorID(ctx)}
}

// authorize checks the caller may act on account. Calls without an identity
// come from trusted in-process callers and are allowed.
func authorize(ctx context.Context, account *domain.Account) error {
	id, ok := domain.IdentityFromContext(ctx)
	if !ok {
		return nil
	}
	if !id.CanAccess(account) {
		return domain.ErrForbidden
	}
	return nil
}

func requireManager(ctx context.Context) error {
	id, ok := domain.IdentityFromContext(ctx)
	if ok && !id.IsManager() {
		return domain.ErrInsufficientRole
	}
	return nil
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsValidation(err):
		return "validation"
	case domain.IsNotFound(err):
		return "not_found"
	case errors.Is(err, domain.ErrInconsistentTransferState):
		return "inconsistent_transfer"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "already_decided"
	case errors.Is(err, domain.ErrTransferFaulted):
		return "transfer_faulted"
	case domain.IsTransient(err):
		return "lock_timeout"
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrInsufficientRole):
		return "forbidden"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
