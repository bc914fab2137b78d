// Package cache provides the in-memory, time-bounded store that memoizes
// rendered capsule content.
//
// Expiry is evaluated on read against a TTL supplied by the caller, so
// content classes with different lifetimes can share one store. Capacity is
// bounded: when a new key would overflow the store, the oldest tenth of the
// entries (by insertion time) is evicted in a single pass. Reads never refresh
// an entry; this is insertion-order eviction, not LRU.
package cache

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxSize is the capacity used when a non-positive size is requested.
const DefaultMaxSize = 1000

// entry is immutable once stored. seq breaks storedAt ties so that
// "oldest" is always well defined, even on coarse clocks.
type entry[V any] struct {
	value    V
	storedAt time.Time
	seq      uint64
}

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	Entries     int    `json:"entries"`
	MaxSize     int    `json:"max_size"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
}

// Store is a bounded key/value store with per-read TTL evaluation.
// It is safe for concurrent use.
type Store[V any] struct {
	mu      sync.Mutex
	data    map[string]entry[V]
	maxSize int
	now     func() time.Time
	seq     uint64

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now as the store's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates a Store holding at most maxSize entries.
func New[V any](maxSize int, opts ...Option) *Store[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store[V]{
		data:    make(map[string]entry[V]),
		maxSize: maxSize,
		now:     o.now,
	}
}

// Get returns the value stored under key if it was stored less than ttl ago.
// Expired entries are reported absent and dropped.
func (s *Store[V]) Get(key string, ttl time.Duration) (V, bool) {
	var zero V

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		s.misses++
		return zero, false
	}
	if s.now().Sub(e.storedAt) >= ttl {
		delete(s.data, key)
		s.expirations++
		s.misses++
		return zero, false
	}
	s.hits++
	return e.value, true
}

// Set stores value under key with the current time, replacing any previous
// entry. Storing a new key into a full store first evicts the oldest
// ceil(maxSize/10) entries.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists && len(s.data) >= s.maxSize {
		s.evictOldest(evictionBatch(s.maxSize))
	}

	s.seq++
	s.data[key] = entry[V]{
		value:    value,
		storedAt: s.now(),
		seq:      s.seq,
	}
}

// Delete removes key from the store.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Clear empties the store and returns how many entries were dropped.
func (s *Store[V]) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.data)
	s.data = make(map[string]entry[V])
	return n
}

// Len returns the number of stored entries, including expired ones not yet
// observed by Get.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Stats returns a snapshot of the store counters.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Entries:     len(s.data),
		MaxSize:     s.maxSize,
		Hits:        s.hits,
		Misses:      s.misses,
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
}

// evictOldest removes the n oldest entries. Must be called with mu held.
func (s *Store[V]) evictOldest(n int) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := s.data[keys[i]], s.data[keys[j]]
		if !a.storedAt.Equal(b.storedAt) {
			return a.storedAt.Before(b.storedAt)
		}
		return a.seq < b.seq
	})

	if n > len(keys) {
		n = len(keys)
	}
	for _, k := range keys[:n] {
		delete(s.data, k)
	}
	s.evictions += uint64(n)
}

// evictionBatch is ceil(10% of maxSize), never less than one.
func evictionBatch(maxSize int) int {
	n := (maxSize + 9) / 10
	if n < 1 {
		n = 1
	}
	return n
}
