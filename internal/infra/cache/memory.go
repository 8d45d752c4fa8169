package cache

import (
	"context"
	"sync"
	"time"
)

// Clock provides time operations, injectable for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time { return time.Now() }

// entry is one cached value with its expiry instant (zero = no expiry).
type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-memory implementation of Store.
//
// It tracks an expiry per entry and bounds memory with a maximum key count:
// when the limit is reached, expired entries are swept first and, if the
// store is still full, the entry closest to expiry is evicted. A background
// janitor sweeps expired entries periodically; callers that never start the
// janitor still get correct behavior because Get checks expiry lazily.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	maxKeys int
	clock   Clock
}

// MemoryStoreConfig holds configuration for MemoryStore.
type MemoryStoreConfig struct {
	// MaxKeys is the maximum number of keys held in memory.
	// Default: 10000
	MaxKeys int

	// Clock provides time operations for testing.
	// Default: SystemClock
	Clock Clock
}

// NewMemoryStore creates a new in-memory cache store with the given configuration.
func NewMemoryStore(config MemoryStoreConfig) *MemoryStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}
	return &MemoryStore{
		entries: make(map[string]entry),
		maxKeys: config.MaxKeys,
		clock:   config.Clock,
	}
}

// Get implements Store.Get. Expired entries are removed on access.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !e.expiresAt.IsZero() && !s.clock.Now().Before(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := s.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	return e.value, true, nil
}

// Set implements Store.Set.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxKeys {
		s.evictLocked()
	}
	s.entries[key] = entry{value: value, expiresAt: expiresAt}
	return nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the current number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartJanitor sweeps expired entries every interval until ctx is canceled.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// sweep removes every expired entry.
func (s *MemoryStore) sweep() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// evictLocked frees capacity for one insertion. Expired entries go first;
// if none are expired, the entry closest to expiry is dropped.
// Caller must hold the write lock.
func (s *MemoryStore) evictLocked() {
	now := s.clock.Now()
	var (
		victim   string
		earliest time.Time
		found    bool
	)
	for key, e := range s.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.entries, key)
			found = true
			continue
		}
		if !found && (victim == "" || (!e.expiresAt.IsZero() && (earliest.IsZero() || e.expiresAt.Before(earliest)))) {
			victim = key
			earliest = e.expiresAt
		}
	}
	if !found && victim != "" {
		delete(s.entries, victim)
	}
}
