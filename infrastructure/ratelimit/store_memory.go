package ratelimit

import (
	"sync"
	"time"

	"github.com/solumlabs/aibridge/internal/ports"
)

// MemoryStore is an in-process ports.TTLStore. Expired entries are dropped
// lazily on read; there is no background sweeper, matching the contract
// that cleanup is the store's (or an external job's) concern, not the
// accountant's.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	// now is swapped out in tests to step through window boundaries.
	now func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

var _ ports.TTLStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements ports.TTLStore.
func (s *MemoryStore) Get(key string) (string, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", 0, false
	}

	remaining := entry.expiresAt.Sub(s.now())
	if remaining <= 0 {
		delete(s.entries, key)
		return "", 0, false
	}
	return entry.value, remaining, true
}

// Set implements ports.TTLStore. A non-positive TTL removes the key.
func (s *MemoryStore) Set(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Delete implements ports.TTLStore.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len reports the number of live entries; expired ones still present are
// not counted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := s.now()
	for _, entry := range s.entries {
		if entry.expiresAt.After(now) {
			n++
		}
	}
	return n
}
