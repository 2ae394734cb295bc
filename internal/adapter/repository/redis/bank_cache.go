package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// BankCache is a read-through cache in front of a usecase.BankDirectory.
// The bank list changes rarely and is read on every account open.
// Redis failures fall back to the underlying directory.
type BankCache struct {
	client *redis.Client
	next   usecase.BankDirectory
	ttl    time.Duration
	prefix string
}

// NewBankCache wraps next with a Redis cache holding entries for ttl.
func NewBankCache(client *redis.Client, next usecase.BankDirectory, ttl time.Duration) *BankCache {
	return &BankCache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: "cache:banks:",
	}
}

// List returns every bank.
func (c *BankCache) List(ctx context.Context) ([]*domain.Bank, error) {
	var banks []*domain.Bank
	if c.get(ctx, "all", &banks) {
		return banks, nil
	}

	banks, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, "all", banks)
	return banks, nil
}

// GetByID returns a bank. Misses for unknown banks are not cached.
func (c *BankCache) GetByID(ctx context.Context, id string) (*domain.Bank, error) {
	var bank domain.Bank
	if c.get(ctx, "id:"+id, &bank) {
		return &bank, nil
	}

	b, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, "id:"+id, b)
	return b, nil
}

// Invalidate drops every cached entry.
func (c *BankCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *BankCache) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("bank cache read failed")
		}
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (c *BankCache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("bank cache write failed")
	}
}
