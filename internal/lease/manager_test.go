package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keylease/keylease/internal/audit"
	"github.com/keylease/keylease/internal/core"
	"github.com/keylease/keylease/internal/credsource"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func testRole() *core.CredentialRole {
	return &core.CredentialRole{
		Name:       "deploy",
		Source:     "stub",
		Kind:       core.KindToken,
		DefaultTTL: 10 * time.Minute,
		MaxTTL:     time.Hour,
		Renewable:  true,
	}
}

func newTestManager(stub *credsource.Stub, auditor core.Auditor) *Manager {
	return NewManager(map[string]core.CredentialSource{"stub": stub}, auditor)
}

func TestIssueTTLClamping(t *testing.T) {
	tests := []struct {
		name    string
		opts    IssueOptions
		wantTTL time.Duration
	}{
		{
			name:    "Default TTL When Unspecified",
			opts:    IssueOptions{},
			wantTTL: 10 * time.Minute,
		},
		{
			name:    "Requested TTL Honored",
			opts:    IssueOptions{RequestedTTL: 30 * time.Minute},
			wantTTL: 30 * time.Minute,
		},
		{
			name:    "Requested TTL Clamped To Role Ceiling",
			opts:    IssueOptions{RequestedTTL: 2 * time.Hour},
			wantTTL: time.Hour,
		},
		{
			name:    "Binding Ceiling Caps Role Ceiling",
			opts:    IssueOptions{RequestedTTL: 2 * time.Hour, MaxTTL: 20 * time.Minute},
			wantTTL: 20 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(credsource.NewStub("stub"), nil)

			l, cred, err := m.Issue(context.Background(), testRole(), tt.opts)
			if err != nil {
				t.Fatalf("Issue() failed: %v", err)
			}
			if l.TTL != tt.wantTTL {
				t.Errorf("lease TTL = %v, want %v", l.TTL, tt.wantTTL)
			}
			if got := l.ExpiresAt.Sub(l.IssuedAt); got != tt.wantTTL {
				t.Errorf("expiry window = %v, want %v", got, tt.wantTTL)
			}
			if cred == nil || cred.Data["access_key_id"] == "" {
				t.Error("expected credential material")
			}
		})
	}
}

func TestIssueFailureLeavesNoRecord(t *testing.T) {
	stub := credsource.NewStub("stub")
	stub.FailIssue = true
	m := newTestManager(stub, nil)

	_, _, err := m.Issue(context.Background(), testRole(), IssueOptions{})
	if !errors.Is(err, core.ErrCredentialSourceUnavailable) {
		t.Fatalf("Issue() error = %v, want ErrCredentialSourceUnavailable", err)
	}
	if m.Count() != 0 {
		t.Errorf("lease table has %d record(s) after failed issue, want 0", m.Count())
	}
}

func TestIssueUnknownSource(t *testing.T) {
	m := newTestManager(credsource.NewStub("stub"), nil)
	role := testRole()
	role.Source = "missing"

	_, _, err := m.Issue(context.Background(), role, IssueOptions{})
	if !errors.Is(err, core.ErrCredentialSourceUnavailable) {
		t.Fatalf("Issue() error = %v, want ErrCredentialSourceUnavailable", err)
	}
}

func TestRenew(t *testing.T) {
	m := newTestManager(credsource.NewStub("stub"), nil)

	start := time.Now()
	m.now = func() time.Time { return start }

	l, _, err := m.Issue(context.Background(), testRole(), IssueOptions{RequestedTTL: 10 * time.Minute})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	// renewing by the issued TTL from t+5m lands on t+15m
	m.now = func() time.Time { return start.Add(5 * time.Minute) }
	expiry, err := m.Renew(context.Background(), l.Handle, 0)
	if err != nil {
		t.Fatalf("Renew() failed: %v", err)
	}
	if want := start.Add(15 * time.Minute); !expiry.Equal(want) {
		t.Errorf("expiry = %v, want %v", expiry, want)
	}

	got, _ := m.Lookup(l.Handle)
	if got.State != core.LeaseRenewed {
		t.Errorf("state = %v, want renewed", got.State)
	}

	// no renewal moves the lease past issued-at + max_ttl
	m.now = func() time.Time { return start.Add(10 * time.Minute) }
	expiry, err = m.Renew(context.Background(), l.Handle, 4*time.Hour)
	if err != nil {
		t.Fatalf("Renew() failed: %v", err)
	}
	if want := start.Add(time.Hour); !expiry.Equal(want) {
		t.Errorf("expiry = %v, want ceiling %v", expiry, want)
	}
}

func TestRenewExpiredLease(t *testing.T) {
	m := newTestManager(credsource.NewStub("stub"), nil)

	start := time.Now()
	m.now = func() time.Time { return start }
	l, _, err := m.Issue(context.Background(), testRole(), IssueOptions{RequestedTTL: time.Minute})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	m.now = func() time.Time { return start.Add(2 * time.Minute) }
	if _, err := m.Renew(context.Background(), l.Handle, 0); !errors.Is(err, core.ErrLeaseExpired) {
		t.Errorf("Renew() error = %v, want ErrLeaseExpired", err)
	}
}

func TestRenewNonRenewableLease(t *testing.T) {
	m := newTestManager(credsource.NewStub("stub"), nil)
	role := testRole()
	role.Renewable = false

	l, _, err := m.Issue(context.Background(), role, IssueOptions{})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if _, err := m.Renew(context.Background(), l.Handle, 0); !errors.Is(err, core.ErrLeaseNotRenewable) {
		t.Errorf("Renew() error = %v, want ErrLeaseNotRenewable", err)
	}
}

func TestRenewUnknownHandle(t *testing.T) {
	m := newTestManager(credsource.NewStub("stub"), nil)
	if _, err := m.Renew(context.Background(), "nope", 0); !errors.Is(err, core.ErrLeaseNotFound) {
		t.Errorf("Renew() error = %v, want ErrLeaseNotFound", err)
	}
}

func TestRevoke(t *testing.T) {
	stub := credsource.NewStub("stub")
	m := newTestManager(stub, nil)

	l, cred, err := m.Issue(context.Background(), testRole(), IssueOptions{})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	if err := m.Revoke(context.Background(), l.Handle); err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}
	if !stub.Revoked(cred.RevocationRef()) {
		t.Error("source was not asked to revoke the credential")
	}
	got, _ := m.Lookup(l.Handle)
	if got.State != core.LeaseRevoked {
		t.Errorf("state = %v, want revoked", got.State)
	}

	// idempotent
	if err := m.Revoke(context.Background(), l.Handle); err != nil {
		t.Errorf("second Revoke() failed: %v", err)
	}

	if err := m.Revoke(context.Background(), "nope"); !errors.Is(err, core.ErrLeaseNotFound) {
		t.Errorf("Revoke(unknown) error = %v, want ErrLeaseNotFound", err)
	}
}

func TestRevokeSourceFailureMarksPending(t *testing.T) {
	stub := credsource.NewStub("stub")
	m := newTestManager(stub, nil)

	l, _, err := m.Issue(context.Background(), testRole(), IssueOptions{})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	stub.FailRevoke = true
	if err := m.Revoke(context.Background(), l.Handle); !errors.Is(err, core.ErrRevocationPending) {
		t.Fatalf("Revoke() error = %v, want ErrRevocationPending", err)
	}
	got, _ := m.Lookup(l.Handle)
	if got.State != core.LeaseRevoked {
		t.Errorf("state = %v, want revoked even while cleanup is pending", got.State)
	}
	if !got.RevocationPending {
		t.Error("lease not flagged for sweep retry")
	}

	// the sweep retries once the source recovers
	stub.FailRevoke = false
	if err := m.Sweep(context.Background(), nopLogger{}); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	got, _ = m.Lookup(l.Handle)
	if got.RevocationPending {
		t.Error("pending flag not cleared after successful retry")
	}
	if !stub.Revoked(got.CredentialRef) {
		t.Error("credential not revoked by sweep retry")
	}
}

func TestSweepExpiresOverdueLeases(t *testing.T) {
	stub := credsource.NewStub("stub")
	auditor := audit.NewInMemoryAuditor()
	m := newTestManager(stub, auditor)

	start := time.Now()
	m.now = func() time.Time { return start }

	overdue, overdueCred, err := m.Issue(context.Background(), testRole(), IssueOptions{RequestedTTL: time.Minute})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	fresh, _, err := m.Issue(context.Background(), testRole(), IssueOptions{RequestedTTL: time.Hour})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	m.now = func() time.Time { return start.Add(5 * time.Minute) }
	if err := m.Sweep(context.Background(), nopLogger{}); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}

	got, _ := m.Lookup(overdue.Handle)
	if got.State != core.LeaseExpired {
		t.Errorf("overdue lease state = %v, want expired", got.State)
	}
	if !stub.Revoked(overdueCred.RevocationRef()) {
		t.Error("expired lease's credential not revoked")
	}

	got, _ = m.Lookup(fresh.Handle)
	if got.State != core.LeaseActive {
		t.Errorf("fresh lease state = %v, want active", got.State)
	}

	events, err := auditor.Find(func(e core.AuditEvent) bool {
		return e.Action == core.ActionExpire && e.LeaseHandle == overdue.Handle
	}, 10)
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d expire audit event(s), want 1", len(events))
	}
}

func TestSweepDoesNotExpireAtExactExpiry(t *testing.T) {
	m := newTestManager(credsource.NewStub("stub"), nil)

	start := time.Now()
	m.now = func() time.Time { return start }
	l, _, err := m.Issue(context.Background(), testRole(), IssueOptions{RequestedTTL: time.Minute})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	// expiry is strictly-after; at the exact instant the lease still stands
	m.now = func() time.Time { return start.Add(time.Minute) }
	if err := m.Sweep(context.Background(), nopLogger{}); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	got, _ := m.Lookup(l.Handle)
	if got.State != core.LeaseActive {
		t.Errorf("state = %v at exact expiry instant, want active", got.State)
	}
}

func TestSweepPrunesTerminalLeasesAfterRetention(t *testing.T) {
	m := newTestManager(credsource.NewStub("stub"), nil)

	start := time.Now()
	m.now = func() time.Time { return start }

	l, _, err := m.Issue(context.Background(), testRole(), IssueOptions{})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if err := m.Revoke(context.Background(), l.Handle); err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}

	// inside the retention window the record stays queryable
	m.now = func() time.Time { return start.Add(30 * time.Minute) }
	if err := m.Sweep(context.Background(), nopLogger{}); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("Count() = %d inside retention, want 1", m.Count())
	}

	m.now = func() time.Time { return start.Add(2 * time.Hour) }
	if err := m.Sweep(context.Background(), nopLogger{}); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d past retention, want 0", m.Count())
	}
	if _, ok := m.Lookup(l.Handle); ok {
		t.Error("pruned lease still resolvable")
	}
	if _, err := m.Renew(context.Background(), l.Handle, 0); !errors.Is(err, core.ErrLeaseNotFound) {
		t.Errorf("Renew(pruned) error = %v, want ErrLeaseNotFound", err)
	}
}

func TestSweepNeverPrunesPendingRevocations(t *testing.T) {
	stub := credsource.NewStub("stub")
	m := newTestManager(stub, nil)

	start := time.Now()
	m.now = func() time.Time { return start }

	l, _, err := m.Issue(context.Background(), testRole(), IssueOptions{})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	stub.FailRevoke = true
	if err := m.Revoke(context.Background(), l.Handle); !errors.Is(err, core.ErrRevocationPending) {
		t.Fatalf("Revoke() error = %v, want ErrRevocationPending", err)
	}

	// retention never outranks an unconfirmed source-side revocation
	m.now = func() time.Time { return start.Add(2 * time.Hour) }
	if err := m.Sweep(context.Background(), nopLogger{}); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want pending lease retained", m.Count())
	}
}

func TestListActiveSkipsTerminalLeases(t *testing.T) {
	m := newTestManager(credsource.NewStub("stub"), nil)

	kept, _, err := m.Issue(context.Background(), testRole(), IssueOptions{Principal: "alice"})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	dropped, _, err := m.Issue(context.Background(), testRole(), IssueOptions{Principal: "bob"})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if err := m.Revoke(context.Background(), dropped.Handle); err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}

	active := m.ListActive()
	if len(active) != 1 {
		t.Fatalf("ListActive() = %d lease(s), want 1", len(active))
	}
	if active[0].Handle != kept.Handle {
		t.Errorf("active lease = %s, want %s", active[0].Handle, kept.Handle)
	}
}
