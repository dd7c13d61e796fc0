package policy

import (
	"sync"
	"sync/atomic"

	"github.com/keylease/keylease/internal/core"
	"github.com/keylease/keylease/internal/validation"
)

// Snapshot is one immutable generation of the policy data: role bindings
// in evaluation order, policy bundles and credential roles by name.
// Snapshots are never mutated after construction; a reload builds a new
// one and swaps the pointer.
type Snapshot struct {
	bindings []core.RoleBinding
	bundles  map[string]*core.PolicyBundle
	roles    map[string]*core.CredentialRole
}

// NewSnapshot builds a snapshot from a validated policy set.
func NewSnapshot(set *validation.PolicySet) *Snapshot {
	snap := &Snapshot{
		bindings: set.Bindings,
		bundles:  make(map[string]*core.PolicyBundle, len(set.Policies)),
		roles:    make(map[string]*core.CredentialRole, len(set.Roles)),
	}
	for i := range set.Policies {
		bundle := &set.Policies[i]
		snap.bundles[bundle.Name] = bundle
	}
	for i := range set.Roles {
		role := &set.Roles[i]
		snap.roles[role.Name] = role
	}
	return snap
}

// Bindings returns the role bindings in configuration order.
func (s *Snapshot) Bindings() []core.RoleBinding {
	return s.bindings
}

// GetPolicy looks up a policy bundle by name.
func (s *Snapshot) GetPolicy(name string) (*core.PolicyBundle, bool) {
	b, ok := s.bundles[name]
	return b, ok
}

// GetRole looks up a credential role by name.
func (s *Snapshot) GetRole(name string) (*core.CredentialRole, bool) {
	r, ok := s.roles[name]
	return r, ok
}

// Store hands out the current snapshot and swaps in new ones atomically.
// Readers never observe a partial update; a reload replaces the whole
// snapshot pointer or nothing.
type Store struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serializes writers only
}

func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Current returns the active snapshot. Safe for concurrent use; the
// returned snapshot stays coherent even if a swap happens afterwards.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Swap validates nothing; callers must pass a fully built snapshot.
func (s *Store) Swap(next *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(next)
}
