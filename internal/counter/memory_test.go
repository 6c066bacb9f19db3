package counter

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreIncrAndGet(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()
	key := Key("ai_calls", "user", 7, now)

	value, errIncr := store.IncrBy(ctx, key, 3, now.Add(time.Hour))
	if errIncr != nil {
		t.Fatalf("incr: %v", errIncr)
	}
	if value != 3 {
		t.Fatalf("post-increment = %d, want 3", value)
	}

	value, errIncr = store.IncrBy(ctx, key, 2, now.Add(time.Hour))
	if errIncr != nil {
		t.Fatalf("incr: %v", errIncr)
	}
	if value != 5 {
		t.Fatalf("post-increment = %d, want 5", value)
	}

	got, errGet := store.Get(ctx, key)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if got != 5 {
		t.Fatalf("get = %d, want 5", got)
	}

	if got, _ := store.Get(ctx, Key("ai_calls", "user", 8, now)); got != 0 {
		t.Fatalf("absent key = %d, want 0", got)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()
	key := Key("ai_calls", "organization", 1, now)

	if _, errIncr := store.IncrBy(ctx, key, 10, now.Add(time.Minute)); errIncr != nil {
		t.Fatalf("incr: %v", errIncr)
	}

	now = now.Add(2 * time.Minute)
	got, errGet := store.Get(ctx, key)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if got != 0 {
		t.Fatalf("expired key = %d, want 0", got)
	}

	// A fresh increment starts the counter over.
	value, errIncr := store.IncrBy(ctx, key, 1, now.Add(time.Hour))
	if errIncr != nil {
		t.Fatalf("incr: %v", errIncr)
	}
	if value != 1 {
		t.Fatalf("post-expiry increment = %d, want 1", value)
	}
}

func TestKeyFormat(t *testing.T) {
	day := time.Date(2026, 3, 10, 17, 42, 0, 0, time.UTC)
	got := Key("storage_mb", "organization", 12, day)
	want := "usage:storage_mb:organization:12:2026-03-10"
	if got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}
