package counter

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value    int64
	expireAt time.Time
}

// MemoryStore implements Store with an in-process map. It backs dev mode
// and serves as the write-path fallback while Redis is unreachable.
type MemoryStore struct {
	mu      sync.Mutex
	nowFn   func() time.Time
	entries map[string]*memoryEntry
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(nowFn func() time.Time) *MemoryStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryStore{
		nowFn:   nowFn,
		entries: make(map[string]*memoryEntry),
	}
}

// IncrBy adds n to the counter and refreshes its expiry.
func (s *MemoryStore) IncrBy(_ context.Context, key string, n int64, expireAt time.Time) (int64, error) {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)

	entry := s.entries[key]
	if entry == nil || (!entry.expireAt.IsZero() && !now.Before(entry.expireAt)) {
		entry = &memoryEntry{}
		s.entries[key] = entry
	}
	entry.value += n
	entry.expireAt = expireAt
	return entry.value, nil
}

// Get returns the current counter value, zero when absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[key]
	if entry == nil {
		return 0, nil
	}
	if !entry.expireAt.IsZero() && !now.Before(entry.expireAt) {
		delete(s.entries, key)
		return 0, nil
	}
	return entry.value, nil
}

// pruneLocked drops expired entries. Called with the lock held.
func (s *MemoryStore) pruneLocked(now time.Time) {
	for key, entry := range s.entries {
		if !entry.expireAt.IsZero() && !now.Before(entry.expireAt) {
			delete(s.entries, key)
		}
	}
}
