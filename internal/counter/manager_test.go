package counter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omniflow/quotad/internal/config"
	"github.com/redis/go-redis/v9"
)

func TestManagerMemoryOnlyWhenDisabled(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	manager := NewManager(func() config.RedisConfig {
		return config.RedisConfig{Enabled: false}
	}, func() time.Time { return now }, nil)
	ctx := context.Background()
	key := Key("ai_calls", "user", 1, now)

	if _, errIncr := manager.IncrBy(ctx, key, 4, now.Add(time.Hour)); errIncr != nil {
		t.Fatalf("incr: %v", errIncr)
	}
	got, errGet := manager.Get(ctx, key)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if got != 4 {
		t.Fatalf("get = %d, want 4", got)
	}
}

func TestManagerFallbackWhenRedisUnreachable(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	factory := func(options *redis.Options) *redis.Client {
		// Unroutable address with an immediate dial timeout so the health
		// ping fails fast.
		options.Addr = "127.0.0.1:1"
		options.DialTimeout = 10 * time.Millisecond
		return redis.NewClient(options)
	}
	manager := NewManager(func() config.RedisConfig {
		return config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}
	}, func() time.Time { return now }, factory)
	ctx := context.Background()
	key := Key("ai_calls", "user", 2, now)

	// Writes land in the memory fallback.
	value, errIncr := manager.IncrBy(ctx, key, 2, now.Add(time.Hour))
	if errIncr != nil {
		t.Fatalf("incr: %v", errIncr)
	}
	if value != 2 {
		t.Fatalf("post-increment = %d, want 2", value)
	}

	// Reads refuse to serve the cold local value while redis is configured.
	if _, errGet := manager.Get(ctx, key); !errors.Is(errGet, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", errGet)
	}
}

func TestManagerNilReceiverAndEmptyKey(t *testing.T) {
	var manager *Manager
	if _, errIncr := manager.IncrBy(context.Background(), "k", 1, time.Time{}); !errors.Is(errIncr, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from nil manager, got %v", errIncr)
	}

	manager = NewManager(nil, nil, nil)
	if _, errGet := manager.Get(context.Background(), ""); !errors.Is(errGet, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty key, got %v", errGet)
	}
}
