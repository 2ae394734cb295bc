// Package locking provides the in-process lock manager that serializes
// decisions touching the same accounts.
package locking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iho/bankledger/internal/domain"
)

// DefaultWaitTimeout bounds how long Acquire waits for all keys.
const DefaultWaitTimeout = 5 * time.Second

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyedLocker grants exclusive access per key. Multiple keys are taken in
// ascending order so two callers locking overlapping sets cannot deadlock.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

// NewKeyedLocker creates a locker. A non-positive wait uses DefaultWaitTimeout.
func NewKeyedLocker(wait time.Duration) *KeyedLocker {
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}
	return &KeyedLocker{
		entries: make(map[string]*entry),
		wait:    wait,
	}
}

// Acquire locks every key or none. The returned release is safe to call
// more than once.
func (l *KeyedLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	held := make([]string, 0, len(keys))
	for _, key := range keys {
		e := l.ref(key)
		select {
		case e.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.unref(key)
			l.releaseAll(held)
			if ctx.Err() == context.DeadlineExceeded {
				return nil, domain.ErrLockTimeout
			}
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.releaseAll(held) })
	}, nil
}

func (l *KeyedLocker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *KeyedLocker) releaseAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[keys[i]]
		l.mu.Unlock()
		<-e.ch
		l.unref(keys[i])
	}
}

// normalize sorts keys and drops duplicates.
func normalize(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}

// Len returns the number of keys currently tracked.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
