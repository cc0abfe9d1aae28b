package store

import (
	"errors"
	"sync"

	"github.com/i474232898/weather-facade/internal/weather"
)

var (
	// ErrNotFound is returned when no reading has been cached for a key.
	ErrNotFound = errors.New("no cached weather data for key")
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// Entries are replaced on every save and never expire; only the entry
// limit evicts them.
type MemoryStore struct {
	mu sync.RWMutex

	// key: cache key, value: last good reading
	data map[string]weather.CacheEntry

	// max number of keys kept (<= 0 means unlimited)
	maxEntries int
}

// NewMemoryStore creates a new MemoryStore.
// If maxEntries is <= 0, it is treated as unlimited.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]weather.CacheEntry),
		maxEntries: maxEntries,
	}
}

// Save stores entry under key, replacing whatever was there.
func (s *MemoryStore) Save(key string, entry weather.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.data[key]
	if !exists && s.maxEntries > 0 && len(s.data) >= s.maxEntries {
		s.evictOldest()
	}
	s.data[key] = entry
}

// Get returns the entry stored under key.
func (s *MemoryStore) Get(key string) (weather.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key]
	if !ok {
		return weather.CacheEntry{}, ErrNotFound
	}
	return entry, nil
}

// Len returns the number of cached keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// evictOldest drops the least recently written entry. Callers must hold mu.
func (s *MemoryStore) evictOldest() {
	var (
		oldestKey string
		found     bool
	)
	for k, e := range s.data {
		if !found || e.Timestamp.Before(s.data[oldestKey].Timestamp) {
			oldestKey = k
			found = true
		}
	}
	if found {
		delete(s.data, oldestKey)
	}
}
