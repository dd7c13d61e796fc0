package verifier

import (
	"sync"
	"sync/atomic"
)

// Store hands out the current verifier registry and swaps in rebuilt ones
// atomically. Trust config is hot-reloadable: a reload builds a complete
// new registry and replaces the pointer, so in-flight verifications keep
// the generation they started with.
type Store struct {
	current atomic.Pointer[Registry]
	mu      sync.Mutex // serializes writers only
}

func NewStore(initial *Registry) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Current returns the active registry. Safe for concurrent use.
func (s *Store) Current() *Registry {
	return s.current.Load()
}

// Swap replaces the registry; callers must pass a fully built one.
func (s *Store) Swap(next *Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(next)
}
