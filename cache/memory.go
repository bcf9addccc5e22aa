package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store implementation. It keeps whole
// entries behind a single RWMutex so readers never observe a partially
// written record.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewMemoryStore creates a new in-memory documentation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]Entry),
	}
}

// Get retrieves the entry for key. Returns ok=false on miss.
func (s *MemoryStore) Get(_ context.Context, key Key) (Entry, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	return entry, ok, nil
}

// Put stores entry, replacing any existing entry wholesale.
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	if err := entry.Key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[entry.Key] = entry
	s.mu.Unlock()

	return nil
}

// Invalidate removes the entry for key. Idempotent - no error on miss.
func (s *MemoryStore) Invalidate(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Keys enumerates all stored keys.
func (s *MemoryStore) Keys(_ context.Context) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
