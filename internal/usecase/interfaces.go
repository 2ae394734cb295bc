package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.Account, error)
	// ApplyBalanceDelta adds delta to the balance in a single statement and
	// fails with domain.ErrInsufficientFunds if the result would be negative.
	// It is the only way a balance changes.
	ApplyBalanceDelta(ctx context.Context, tx Transaction, id string, delta decimal.Decimal, updatedAt time.Time) (*domain.Account, error)
	UpdateStatus(ctx context.Context, tx Transaction, account *domain.Account) error
	List(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error)
}

// TransactionRepository defines data access for the transaction log.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	// CreatePair inserts both legs in one statement so no orphan leg can exist.
	CreatePair(ctx context.Context, tx Transaction, pair *domain.TransferPair) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Transaction, error)
	GetByTransferID(ctx context.Context, transferID string) ([]*domain.Transaction, error)
	GetByTransferIDForUpdate(ctx context.Context, tx Transaction, transferID string) ([]*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	// UpdatePairStatus writes the status of both legs in one statement.
	UpdatePairStatus(ctx context.Context, tx Transaction, pair *domain.TransferPair) error
	SetPairFault(ctx context.Context, tx Transaction, pair *domain.TransferPair) error
	List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)
	ListFaulted(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)
	CountFaultedTransfers(ctx context.Context) (int, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// BankDirectory resolves banks accounts can be opened against.
type BankDirectory interface {
	List(ctx context.Context) ([]*domain.Bank, error)
	GetByID(ctx context.Context, id string) (*domain.Bank, error)
}

// AccountNumberGenerator hands out unique 12-digit account numbers.
type AccountNumberGenerator interface {
	Next(ctx context.Context, tx Transaction) (string, error)
}

// LockManager serializes work on the same keys. Keys are locked in
// ascending order; waiting is bounded and a timeout returns
// domain.ErrLockTimeout.
type LockManager interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// Savepoint starts a nested transaction. Rolling it back undoes only the
	// work done inside it.
	Savepoint(ctx context.Context) (Transaction, error)
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a placeholder so a failed request can be retried.
	Release(ctx context.Context, key string) error
}
