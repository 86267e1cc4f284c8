package bookmark

import (
	"sync"
)

// StorageKey is the key the bookmark list is stored under.
const StorageKey = "gloss_bookmarks"

// Store is a key-value store holding string lists.
type Store interface {
	// Get returns the list stored under key, or nil when there is none.
	Get(key string) ([]string, error)

	// Set replaces the list stored under key.
	Set(key string, values []string) error

	// Close releases the store.
	Close() error
}

// MemoryStore is a Store that keeps everything in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyList(s.data[key]), nil
}

// Set implements Store.
func (s *MemoryStore) Set(key string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = copyList(values)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func copyList(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
