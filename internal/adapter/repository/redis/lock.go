package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/iho/bankledger/internal/domain"
)

// LockOptions tunes the redsync mutexes handed out by LockManager.
type LockOptions struct {
	// Expiry is how long a key stays locked if the holder dies. It must
	// outlast the longest decision run under the lock.
	Expiry time.Duration
	// Wait bounds how long one Acquire call waits across all its keys.
	Wait        time.Duration
	RetryDelay  time.Duration
	DriftFactor float64
}

// DefaultLockOptions returns options suited to short decision transactions.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		Expiry:      10 * time.Second,
		Wait:        5 * time.Second,
		RetryDelay:  50 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

// LockManager implements usecase.LockManager with Redis, so replicas
// of the service serialize on the same accounts.
type LockManager struct {
	rs     *redsync.Redsync
	opts   LockOptions
	prefix string
}

// NewLockManager creates a LockManager on top of client.
func NewLockManager(client *redis.Client, opts LockOptions) *LockManager {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultLockOptions().RetryDelay
	}
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultLockOptions().Expiry
	}
	return &LockManager{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		prefix: "lock:",
	}
}

// Options returns the effective lock options.
func (m *LockManager) Options() LockOptions {
	return m.opts
}

func (m *LockManager) tries() int {
	n := int(m.opts.Wait / m.opts.RetryDelay)
	if n < 1 {
		return 1
	}
	return n
}

// Acquire locks every key in ascending order. All keys share one wait
// budget; if it runs out the keys already held are released and
// domain.ErrLockTimeout is returned.
func (m *LockManager) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := dedupe(keys)
	held := make([]*redsync.Mutex, 0, len(sorted))

	waitCtx := ctx
	if m.opts.Wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.opts.Wait)
		defer cancel()
	}

	unlockAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			// Unlock must run even when the request context is already done.
			if ok, err := held[i].UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("lock_key", held[i].Name()).Msg("failed to release lock")
			}
		}
	}

	for _, key := range sorted {
		mutex := m.rs.NewMutex(
			m.prefix+key,
			redsync.WithExpiry(m.opts.Expiry),
			redsync.WithTries(m.tries()),
			redsync.WithRetryDelay(m.opts.RetryDelay),
			redsync.WithDriftFactor(m.opts.DriftFactor),
		)
		if err := mutex.LockContext(waitCtx); err != nil {
			unlockAll()
			return nil, m.classify(ctx, waitCtx, key, err)
		}
		held = append(held, mutex)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		unlockAll()
	}, nil
}

func (m *LockManager) classify(ctx, waitCtx context.Context, key string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var taken *redsync.ErrTaken
	if waitCtx.Err() != nil || errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		log.Ctx(ctx).Warn().Str("lock_key", key).Dur("wait", m.opts.Wait).Msg("lock wait timed out")
		return fmt.Errorf("%w: %s", domain.ErrLockTimeout, key)
	}
	return fmt.Errorf("acquire lock %s: %w", key, err)
}

func dedupe(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
