package core

import "time"

// LeaseState is the lifecycle state of a lease.
//
// Transitions: Active -> Renewed -> Renewed* -> (Expired | Revoked),
// Active -> (Expired | Revoked). Expired and Revoked are terminal.
type LeaseState string

const (
	LeaseActive  LeaseState = "active"
	LeaseRenewed LeaseState = "renewed"
	LeaseExpired LeaseState = "expired"
	LeaseRevoked LeaseState = "revoked"
)

// Terminal reports whether no further transitions are possible.
func (s LeaseState) Terminal() bool {
	return s == LeaseExpired || s == LeaseRevoked
}

// Lease is a time-bounded handle on a dynamically issued credential.
// Leases are owned exclusively by the lease manager; callers hold only
// the opaque Handle.
type Lease struct {
	// Handle is the opaque identifier returned to the caller.
	Handle string `json:"handle"`

	// Role is the credential role the lease was issued from.
	Role string `json:"role"`

	// Principal is the identifier of the principal the lease was issued to.
	Principal string `json:"principal,omitempty"`

	// IssuedAt is when the lease was created. The renewal ceiling is
	// IssuedAt + MaxTTL and never moves.
	IssuedAt time.Time `json:"issued_at"`

	// TTL is the effective TTL the lease was issued with.
	TTL time.Duration `json:"ttl"`

	// MaxTTL is the role's ceiling at issuance time.
	MaxTTL time.Duration `json:"max_ttl"`

	// ExpiresAt is the current expiry; renewal moves it, never past
	// IssuedAt + MaxTTL.
	ExpiresAt time.Time `json:"expires_at"`

	// Renewable mirrors the role's renewable flag at issuance time.
	Renewable bool `json:"renewable"`

	// State is the current lifecycle state.
	State LeaseState `json:"state"`

	// SourceName is the credential source that issued the secret.
	SourceName string `json:"source,omitempty"`

	// CredentialRef is the source-side reference used for revocation.
	// Never returned to callers.
	CredentialRef string `json:"-"`

	// RevocationPending marks a lease whose source-side invalidation has
	// not completed yet; the sweep retries these.
	RevocationPending bool `json:"revocation_pending,omitempty"`
}
