package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a fixed-window counter store backed by Redis, for
// deployments where several instances must share counters. Each
// identifier+window-start pair maps to one key incremented
// transactionally, so concurrent instances never lose updates. Expiry
// is handled by Redis TTLs; Cleanup is a no-op.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a store over the given client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Record(ctx context.Context, identifier string, window time.Duration) (int, time.Duration, error) {
	now := time.Now().UTC()
	windowStart := now.Truncate(window)
	key := fmt.Sprintf("%s%s:%d", s.prefix, strings.ReplaceAll(identifier, " ", "_"), windowStart.Unix())

	// ExpireNX runs on every hit, inside the same transaction as the
	// INCR. A key can therefore never outlive its window, even when a
	// previous caller died between creating the key and setting its
	// expiry.
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return int(incr.Val()), remaining, nil
}

// Cleanup is satisfied by key TTLs on the Redis side.
func (s *RedisStore) Cleanup(context.Context) (int, error) {
	return 0, nil
}
