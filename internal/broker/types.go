package broker

import (
	"time"

	"github.com/keylease/keylease/internal/core"
)

// ExchangeRequest is the input to a token-for-credential exchange.
type ExchangeRequest struct {
	// Token is the raw signed identity token.
	Token string

	// Role names the credential role being requested.
	Role string

	// TTL is the requested lease lifetime. Zero means the role default.
	TTL time.Duration

	// Issuer optionally names the trust config to verify against. When
	// empty the verifier is discovered from the token's issuer URL.
	Issuer string
}

// ExchangeResult is a freshly minted credential under its lease.
type ExchangeResult struct {
	Lease      core.Lease       `json:"lease"`
	Credential *core.Credential `json:"credential"`
}
