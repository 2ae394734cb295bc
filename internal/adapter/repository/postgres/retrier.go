package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// RetrierConfig bounds how often a decision is re-run after Postgres
// aborted it.
type RetrierConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetrierConfig retries three times within ten seconds.
func DefaultRetrierConfig() RetrierConfig {
	return RetrierConfig{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// Retrier implements usecase.Retrier. Only deadlocks and serialization
// failures are retried; lock timeouts and domain errors are returned as is.
type Retrier struct {
	cfg RetrierConfig
}

// NewRetrier returns a Retrier with DefaultRetrierConfig.
func NewRetrier() *Retrier {
	return NewRetrierWithConfig(DefaultRetrierConfig())
}

// NewRetrierWithConfig fills unset fields of cfg from the defaults.
func NewRetrierWithConfig(cfg RetrierConfig) *Retrier {
	def := DefaultRetrierConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = def.MaxElapsedTime
	}
	return &Retrier{cfg: cfg}
}

// MaxAttempts is how many times Retry may run an operation, the first run
// included.
func (r *Retrier) MaxAttempts() int {
	return r.cfg.MaxRetries + 1
}

// Retry runs operation until it succeeds, fails permanently or the retry
// budget is spent. The last error is returned.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries)), ctx)

	attempt := 0
	run := func() error {
		attempt++
		err := operation()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Ctx(ctx).Warn().Err(err).
			Str("pg_code", pgErrorCode(err)).
			Int("attempt", attempt).
			Dur("next_in", next).
			Msg("database aborted the decision, retrying")
	}

	return backoff.RetryNotify(run, policy, notify)
}

func isRetryableError(err error) bool {
	switch pgErrorCode(err) {
	case pgErrDeadlock, pgErrSerializationFailure:
		return true
	}
	return false
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
