package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/keylease/keylease/internal/core"
	"github.com/keylease/keylease/internal/logging"
)

// DefaultSweepInterval is how often the expiry sweep runs unless
// configured otherwise.
const DefaultSweepInterval = time.Minute

// terminalRetention is how long Expired/Revoked records stay queryable
// before the sweep drops them from the table. Records with an outstanding
// source-side revocation are never dropped.
const terminalRetention = time.Hour

// Manager owns the lease table. Distinct leases never block each other;
// operations on the same handle serialize on a per-entry mutex. The table
// lock only guards map access and is never held across a source call.
type Manager struct {
	mu     sync.RWMutex
	leases map[string]*entry

	sources map[string]core.CredentialSource
	auditor core.Auditor

	now func() time.Time // test hook
}

type entry struct {
	mu    sync.Mutex
	lease core.Lease

	// when the lease entered a terminal state; zero while live.
	terminalAt time.Time
}

func NewManager(sources map[string]core.CredentialSource, auditor core.Auditor) *Manager {
	return &Manager{
		leases:  make(map[string]*entry),
		sources: sources,
		auditor: auditor,
		now:     time.Now,
	}
}

// IssueOptions carries the per-request issuance parameters.
type IssueOptions struct {
	// Principal is recorded on the lease for auditing.
	Principal string

	// RequestedTTL is the caller's requested lifetime. Zero or negative
	// means the role's default applies.
	RequestedTTL time.Duration

	// MaxTTL, when positive, further caps the role's ceiling (the matched
	// binding's max_ttl).
	MaxTTL time.Duration
}

// Issue mints a credential from the role's source and records a lease for
// it. The source is called exactly once; if it fails, no lease record is
// created and the caller may retry with backoff.
func (m *Manager) Issue(ctx context.Context, role *core.CredentialRole, opts IssueOptions) (core.Lease, *core.Credential, error) {
	maxTTL := role.MaxTTL
	if opts.MaxTTL > 0 && opts.MaxTTL < maxTTL {
		maxTTL = opts.MaxTTL
	}

	ttl := opts.RequestedTTL
	if ttl <= 0 {
		ttl = role.DefaultTTL
	}
	if ttl > maxTTL {
		ttl = maxTTL
	}

	source, ok := m.sources[role.Source]
	if !ok {
		return core.Lease{}, nil, fmt.Errorf("%w: role '%s' references unknown source '%s'",
			core.ErrCredentialSourceUnavailable, role.Name, role.Source)
	}

	cred, err := source.Issue(ctx, role, ttl)
	if err != nil {
		return core.Lease{}, nil, fmt.Errorf("%w: source '%s': %v",
			core.ErrCredentialSourceUnavailable, role.Source, err)
	}

	now := m.now()
	l := core.Lease{
		Handle:        xid.New().String(),
		Role:          role.Name,
		Principal:     opts.Principal,
		IssuedAt:      now,
		TTL:           ttl,
		MaxTTL:        maxTTL,
		ExpiresAt:     now.Add(ttl),
		Renewable:     role.Renewable,
		State:         core.LeaseActive,
		SourceName:    source.Name(),
		CredentialRef: cred.RevocationRef(),
	}

	m.mu.Lock()
	m.leases[l.Handle] = &entry{lease: l}
	m.mu.Unlock()

	return l, cred, nil
}

// Renew extends a lease. The new expiry is min(now + ttl, issued-at +
// max_ttl): no sequence of renewals moves a lease past its absolute
// ceiling. A zero ttl renews by the lease's issued TTL.
func (m *Manager) Renew(_ context.Context, handle string, ttl time.Duration) (time.Time, error) {
	e := m.entry(handle)
	if e == nil {
		return time.Time{}, core.ErrLeaseNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	l := &e.lease
	now := m.now()
	if l.State.Terminal() || !now.Before(l.ExpiresAt) {
		return time.Time{}, core.ErrLeaseExpired
	}
	if !l.Renewable {
		return time.Time{}, core.ErrLeaseNotRenewable
	}

	if ttl <= 0 {
		ttl = l.TTL
	}
	ceiling := l.IssuedAt.Add(l.MaxTTL)
	expiry := now.Add(ttl)
	if expiry.After(ceiling) {
		expiry = ceiling
	}

	l.ExpiresAt = expiry
	l.State = core.LeaseRenewed
	return expiry, nil
}

// Revoke transitions the lease to Revoked and invalidates the credential
// at the source. Idempotent: revoking an already-revoked or expired lease
// succeeds silently. The state transition is recorded first, under the
// entry lock; the source call happens after release, so a lease is
// logically dead even while cloud-side cleanup is in flight.
// ErrRevocationPending is returned when that cleanup has not completed.
func (m *Manager) Revoke(ctx context.Context, handle string) error {
	e := m.entry(handle)
	if e == nil {
		return core.ErrLeaseNotFound
	}

	e.mu.Lock()
	if e.lease.State.Terminal() {
		e.mu.Unlock()
		return nil
	}
	e.lease.State = core.LeaseRevoked
	e.terminalAt = m.now()
	sourceName := e.lease.SourceName
	ref := e.lease.CredentialRef
	e.mu.Unlock()

	return m.revokeAtSource(ctx, e, sourceName, ref, handle)
}

// revokeAtSource performs the downstream invalidation for an already
// terminal lease. A hard source failure flags the entry for sweep retry.
func (m *Manager) revokeAtSource(ctx context.Context, e *entry, sourceName, ref, handle string) error {
	source, ok := m.sources[sourceName]
	if !ok || ref == "" {
		return nil
	}

	err := source.Revoke(ctx, ref)
	switch {
	case err == nil:
		m.setPending(e, false)
		return nil
	case errors.Is(err, core.ErrRevocationPending):
		// the source cannot actively invalidate; the secret dies on its
		// own schedule. Nothing to retry.
		m.setPending(e, false)
		return core.ErrRevocationPending
	default:
		log.Warn().Err(err).
			Str("lease", handle).
			Str("source", sourceName).
			Msg("source-side revocation failed, sweep will retry")
		m.setPending(e, true)
		return core.ErrRevocationPending
	}
}

func (m *Manager) setPending(e *entry, pending bool) {
	e.mu.Lock()
	e.lease.RevocationPending = pending
	e.mu.Unlock()
}

// Sweep scans the table, expires overdue leases, retries outstanding
// source-side revocations and drops terminal records past retention.
// State transitions happen under the entry lock; all source calls happen
// afterwards, lock-free. Designed to run as a periodic background task.
func (m *Manager) Sweep(ctx context.Context, logger logging.InternalLogger) error {
	now := m.now()

	type target struct {
		e       *entry
		handle  string
		source  string
		ref     string
		expired bool
	}
	var targets []target
	var prune []string

	m.mu.RLock()
	entries := make([]*entry, 0, len(m.leases))
	for _, e := range m.leases {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		l := &e.lease
		switch {
		case !l.State.Terminal() && now.After(l.ExpiresAt):
			l.State = core.LeaseExpired
			e.terminalAt = now
			targets = append(targets, target{e, l.Handle, l.SourceName, l.CredentialRef, true})
		case l.State.Terminal() && l.RevocationPending:
			targets = append(targets, target{e, l.Handle, l.SourceName, l.CredentialRef, false})
		case l.State.Terminal() && now.After(e.terminalAt.Add(terminalRetention)):
			prune = append(prune, l.Handle)
		}
		e.mu.Unlock()
	}

	if len(prune) > 0 {
		m.mu.Lock()
		for _, handle := range prune {
			delete(m.leases, handle)
		}
		m.mu.Unlock()
		logger.Info("dropped %d terminal lease record(s) past retention", len(prune))
	}

	if len(targets) == 0 {
		return nil
	}
	logger.Info("sweeping %d lease(s)", len(targets))

	for _, t := range targets {
		if t.expired {
			m.audit(core.AuditEvent{
				ID:          xid.New().String(),
				Time:        now,
				Action:      core.ActionExpire,
				LeaseHandle: t.handle,
				Granted:     true,
			})
		}
		if err := m.revokeAtSource(ctx, t.e, t.source, t.ref, t.handle); err != nil &&
			!errors.Is(err, core.ErrRevocationPending) {
			logger.Warn("revoking credential for lease %s: %v", t.handle, err)
		}
	}
	return nil
}

// Lookup returns a copy of the lease behind the handle.
func (m *Manager) Lookup(handle string) (core.Lease, bool) {
	e := m.entry(handle)
	if e == nil {
		return core.Lease{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lease, true
}

// ListActive returns copies of all non-terminal leases.
func (m *Manager) ListActive() []core.Lease {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.leases))
	for _, e := range m.leases {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	active := make([]core.Lease, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.lease.State.Terminal() {
			active = append(active, e.lease)
		}
		e.mu.Unlock()
	}
	return active
}

// Count returns the total number of lease records, including terminal
// ones the sweep has not yet dropped.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leases)
}

func (m *Manager) entry(handle string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.leases[handle]
}

func (m *Manager) audit(event core.AuditEvent) {
	if m.auditor == nil {
		return
	}
	if err := m.auditor.Log(event); err != nil {
		log.Error().Err(err).Msg("failed to write audit event from lease sweep")
	}
}
