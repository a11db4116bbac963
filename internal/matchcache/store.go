package matchcache

import (
	"sync"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/metrics"
)

// Key identifies one cache entry.
type Key struct {
	Source string
	URL    string
}

// String formats the key as "source|url".
func (k Key) String() string {
	return k.Source + "|" + k.URL
}

// Store maps (source, canonical URL) to the snapshot a probe resolved,
// including not-found snapshots. Entries are written once and live until
// Clear is called. The zero value is not usable; call New.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]analytics.Snapshot
	order   []Key
}

// New creates an empty Store. The caller owns its lifecycle and passes it to
// every orchestrator that should share results.
func New() *Store {
	return &Store{
		entries: make(map[Key]analytics.Snapshot),
	}
}

// Get returns the cached snapshot for (source, url).
func (s *Store) Get(source, url string) (analytics.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.entries[Key{Source: source, URL: url}]
	return snap, ok
}

// Put stores snap under (source, url) unless an entry already exists.
// It reports whether the snapshot was written.
func (s *Store) Put(source, url string, snap analytics.Snapshot) bool {
	key := Key{Source: source, URL: url}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		return false
	}
	s.entries[key] = snap.Normalize()
	s.order = append(s.order, key)
	metrics.CacheEntries.Set(float64(len(s.entries)))
	return true
}

// Keys returns every key in insertion order.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Key, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[Key]analytics.Snapshot)
	s.order = nil
	metrics.CacheEntries.Set(0)
}
