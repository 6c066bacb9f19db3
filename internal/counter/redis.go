package counter

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// IncrBy adds n to the counter and refreshes its expiry in one round trip.
func (s *RedisStore) IncrBy(ctx context.Context, key string, n int64, expireAt time.Time) (int64, error) {
	if s == nil || s.client == nil {
		return 0, ErrUnavailable
	}
	fullKey := s.buildKey(key)
	pipe := s.client.TxPipeline()
	incr := pipe.IncrBy(ctx, fullKey, n)
	pipe.ExpireAt(ctx, fullKey, expireAt)
	if _, errExec := pipe.Exec(ctx); errExec != nil {
		return 0, errExec
	}
	return incr.Val(), nil
}

// Get returns the current counter value, zero when the key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	if s == nil || s.client == nil {
		return 0, ErrUnavailable
	}
	value, errGet := s.client.Get(ctx, s.buildKey(key)).Int64()
	if errGet != nil {
		if errGet == redis.Nil {
			return 0, nil
		}
		return 0, errGet
	}
	return value, nil
}

func (s *RedisStore) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
