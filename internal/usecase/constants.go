package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultCreditRetryAttempts is how many times a transfer credit is retried
	// after the debit went through
	DefaultCreditRetryAttempts = 3

	// DefaultCreditRetryInterval is the first backoff interval between credit attempts
	DefaultCreditRetryInterval = 20 * time.Millisecond

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)

// MaxDecisionHold is the longest a decision can keep its account locks.
// Each attempt the retrier allows may use a full transaction timeout, and
// a faulted transfer writes the fault in one more transaction.
func MaxDecisionHold(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts+1) * DefaultTransactionTimeout
}

// accountLockKey namespaces account ids in the lock manager.
func accountLockKey(id string) string {
	return "account:" + id
}

func accountLockKeys(ids ...string) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, accountLockKey(id))
	}
	return keys
}
