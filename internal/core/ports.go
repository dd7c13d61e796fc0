package core

import (
	"context"
	"time"
)

// Verifier validates upstream identity tokens.
// Implementations: OIDC verifier, static/dev verifier.
type Verifier interface {
	// Name returns the trust config name this verifier serves.
	Name() string

	// Verify validates a raw token and returns the principal it asserts.
	Verify(ctx context.Context, token string) (*Principal, error)
}

// CredentialSource is the broker's only cloud dependency: a narrow
// issue/revoke contract behind which the actual provider API plugs in.
// Implementations: stub, GCP service-account keys, GCP access tokens.
type CredentialSource interface {
	// Name returns the identifier of this source (as used in config).
	Name() string

	// Type returns the source type (e.g. "stub", "gcp-key").
	Type() string

	// Issue creates a credential for the role, valid for ttl. Called
	// exactly once per lease issuance.
	Issue(ctx context.Context, role *CredentialRole, ttl time.Duration) (*Credential, error)

	// Revoke invalidates the credential behind ref. May return
	// ErrRevocationPending when invalidation is asynchronous or implicit
	// (the secret expires on its own).
	Revoke(ctx context.Context, ref string) error
}
