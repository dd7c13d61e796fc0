package credsource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/keylease/keylease/internal/audit"
	"github.com/keylease/keylease/internal/core"
)

const StubType = "stub"

var stubInfo = core.SourceInfo{
	Type:    StubType,
	Version: "v1",
}

var _ core.CredentialSource = (*Stub)(nil)

// Stub issues fake key/secret/session-token triples. It backs tests and
// local development without any cloud account.
type Stub struct {
	name string

	// FailIssue makes Issue fail, to exercise outage handling in tests.
	FailIssue bool
	// FailRevoke makes Revoke fail the same way.
	FailRevoke bool

	// the sweep and API revocations may hit the same source concurrently
	mu      sync.Mutex
	revoked map[string]bool
}

func NewStub(name string) *Stub {
	return &Stub{
		name:    name,
		revoked: make(map[string]bool),
	}
}

func (s *Stub) Name() string {
	return s.name
}

func (s *Stub) Type() string {
	return StubType
}

func (s *Stub) Issue(ctx context.Context, role *core.CredentialRole, ttl time.Duration) (*core.Credential, error) {
	if s.FailIssue {
		return nil, fmt.Errorf("stub source configured to fail")
	}

	log.Ctx(ctx).Debug().
		Str("source", s.name).
		Str("role", role.Name).
		Dur("ttl", ttl).
		Msg("stub source issuing credential")

	id := xid.New().String()
	secret := fmt.Sprintf("keylease-stub-secret-%s", id)

	cred := &core.Credential{
		Data: map[string]string{
			"access_key_id":     "STUB" + id,
			"secret_access_key": secret,
			"session_token":     fmt.Sprintf("stub-session-%s", role.Name),
		},
		Fingerprint: audit.CalculateFingerprint(audit.StubFingerprintType, secret),
		ExpiresAt:   time.Now().Add(ttl),
		Source:      stubInfo,
	}
	cred.SetRevocationRef("stub/" + id)
	return cred, nil
}

func (s *Stub) Revoke(_ context.Context, ref string) error {
	if s.FailRevoke {
		return fmt.Errorf("stub source configured to fail")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[ref] = true
	return nil
}

// Revoked reports whether Revoke was called for ref. Test helper.
func (s *Stub) Revoked(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[ref]
}
