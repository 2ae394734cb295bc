package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bankledger/internal/domain"
)

func testLockOptions() LockOptions {
	return LockOptions{
		Expiry:      5 * time.Second,
		Wait:        100 * time.Millisecond,
		RetryDelay:  10 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

func TestLockManager_AcquireAndRelease(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	locks := NewLockManager(client, testLockOptions())
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "account:b", "account:a", "account:a")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:account:a"))
	assert.True(t, mr.Exists("lock:account:b"))

	release()
	release()
	assert.False(t, mr.Exists("lock:account:a"))
	assert.False(t, mr.Exists("lock:account:b"))
}

func TestLockManager_TimeoutReleasesHeldKeys(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	locks := NewLockManager(client, testLockOptions())
	ctx := context.Background()

	holder, err := locks.Acquire(ctx, "account:b")
	require.NoError(t, err)
	defer holder()

	_, err = locks.Acquire(ctx, "account:a", "account:b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLockTimeout))
	assert.True(t, domain.IsTransient(err))
	assert.False(t, mr.Exists("lock:account:a"), "partially acquired keys must be released")
}

func TestLockManager_KeysShareOneWaitBudget(t *testing.T) {
	client, mr := newTestRedisClient(t)

	opts := testLockOptions()
	opts.Wait = 300 * time.Millisecond
	locks := NewLockManager(client, opts)
	ctx := context.Background()

	releaseA, err := locks.Acquire(ctx, "account:a")
	require.NoError(t, err)
	releaseB, err := locks.Acquire(ctx, "account:b")
	require.NoError(t, err)
	defer releaseB()

	// account:a frees up two thirds into the budget, account:b never does.
	time.AfterFunc(200*time.Millisecond, releaseA)

	start := time.Now()
	_, err = locks.Acquire(ctx, "account:a", "account:b")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Less(t, elapsed, 420*time.Millisecond, "second key must not get a fresh wait budget")
	assert.False(t, mr.Exists("lock:account:a"), "account:a must be released after the timeout")
}

func TestLockManager_Exclusive(t *testing.T) {
	client, _ := newTestRedisClient(t)
	defer client.Close()

	opts := testLockOptions()
	opts.Wait = 2 * time.Second
	locks := NewLockManager(client, opts)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(context.Background(), "account:x")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLockManager_ContextCanceled(t *testing.T) {
	client, _ := newTestRedisClient(t)
	defer client.Close()

	locks := NewLockManager(client, testLockOptions())
	holder, err := locks.Acquire(context.Background(), "account:a")
	require.NoError(t, err)
	defer holder()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locks.Acquire(ctx, "account:a")
	assert.ErrorIs(t, err, context.Canceled)
}
