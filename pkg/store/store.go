// Package store implements the node-local key/value store: a thread-safe
// in-memory map with copy-on-read/copy-on-write semantics.
package store

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrKeyNotFound is returned when a key has no value in the store.
var ErrKeyNotFound = errors.New("store: key not found")

// Store is a thread-safe in-memory key/value store keyed by raw bytes.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put stores value under key, copying it so callers cannot mutate stored
// data through their original slice.
func (s *Store) Put(key, value []byte) {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.mu.Lock()
	s.data[string(key)] = valueCopy
	s.mu.Unlock()
	s.sets.Add(1)
}

// Get returns a copy of the value stored under key, and whether it exists.
func (s *Store) Get(key []byte) ([]byte, bool) {
	s.mu.RLock()
	v, ok := s.data[string(key)]
	s.mu.RUnlock()

	if !ok {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)

	result := make([]byte, len(v))
	copy(result, v)
	return result, true
}

// Remove deletes key, reporting whether it was present.
func (s *Store) Remove(key []byte) bool {
	s.mu.Lock()
	_, existed := s.data[string(key)]
	delete(s.data, string(key))
	s.mu.Unlock()

	if existed {
		s.deletes.Add(1)
	}
	return existed
}

// Exists reports whether key is present, without incrementing hit/miss counters.
func (s *Store) Exists(key []byte) bool {
	s.mu.RLock()
	_, ok := s.data[string(key)]
	s.mu.RUnlock()
	return ok
}

// Size returns the number of keys currently stored.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns a snapshot of all keys currently stored.
func (s *Store) Keys() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([][]byte, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, []byte(k))
	}
	return keys
}

// Snapshot returns a deep copy of the entire store contents.
func (s *Store) Snapshot() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		valueCopy := make([]byte, len(v))
		copy(valueCopy, v)
		out[k] = valueCopy
	}
	return out
}

// Filter returns a deep copy of every key/value pair whose raw key bytes
// satisfy pred. Used by the ring node to select the keys owed to a joining
// or leaving peer without holding the store lock during network I/O.
func (s *Store) Filter(pred func(key []byte) bool) map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte)
	for k, v := range s.data {
		if !pred([]byte(k)) {
			continue
		}
		valueCopy := make([]byte, len(v))
		copy(valueCopy, v)
		out[k] = valueCopy
	}
	return out
}

// RemoveAll deletes every key for which pred returns true.
func (s *Store) RemoveAll(pred func(key []byte) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.data {
		if pred([]byte(k)) {
			delete(s.data, k)
			removed++
		}
	}
	if removed > 0 {
		s.deletes.Add(int64(removed))
	}
	return removed
}

// Stats reports point-in-time store counters.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
}

// GetStats returns the current store statistics.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	entries := len(s.data)
	s.mu.RUnlock()

	return Stats{
		Entries: entries,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Sets:    s.sets.Load(),
		Deletes: s.deletes.Load(),
	}
}

// Clear removes every key from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	s.data = make(map[string][]byte)
	s.mu.Unlock()
}
