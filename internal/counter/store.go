// Package counter provides the fast, near-real-time usage counter store:
// Redis-backed when configured, with an in-memory fallback and a breaker
// that keeps a flapping Redis from stalling request paths.
package counter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable indicates the fast store cannot serve reads right now and
// callers should use their degraded path.
var ErrUnavailable = errors.New("counter: fast store unavailable")

// Store is a day-scoped counter backend.
type Store interface {
	// IncrBy adds n to the counter (creating it at zero) and refreshes its
	// expiry. It returns the post-increment value.
	IncrBy(ctx context.Context, key string, n int64, expireAt time.Time) (int64, error)
	// Get returns the current counter value, zero when absent.
	Get(ctx context.Context, key string) (int64, error)
}

// Key builds the canonical counter key:
// usage:<resource>:<scopeType>:<scopeID>:<YYYY-MM-DD>.
func Key(resourceName, scopeType string, scopeID uint64, day time.Time) string {
	return fmt.Sprintf("usage:%s:%s:%d:%s", resourceName, scopeType, scopeID, day.UTC().Format("2006-01-02"))
}
