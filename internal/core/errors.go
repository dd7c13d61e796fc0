package core

import "errors"

// Error taxonomy shared across the broker. Handlers translate these to
// HTTP statuses; nothing below the api layer knows about HTTP.
var (
	// ErrAuthenticationFailed covers bad, expired or mis-audienced tokens.
	// Terminal for the request, never retried.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNoMatchingPolicy means no role binding matched the claims.
	ErrNoMatchingPolicy = errors.New("no matching policy")

	// ErrForbidden means a binding matched but does not authorize the
	// requested role.
	ErrForbidden = errors.New("forbidden")

	// ErrLeaseNotFound is returned for unknown lease handles.
	ErrLeaseNotFound = errors.New("lease not found")

	// ErrLeaseNotRenewable is returned when the issuing role disallows
	// renewal.
	ErrLeaseNotRenewable = errors.New("lease not renewable")

	// ErrLeaseExpired is returned when an operation reaches a lease past
	// its expiry.
	ErrLeaseExpired = errors.New("lease expired")

	// ErrCredentialSourceUnavailable signals a downstream outage. Safe for
	// the caller to retry with backoff; the broker itself never retries
	// issuance.
	ErrCredentialSourceUnavailable = errors.New("credential source unavailable")

	// ErrRevocationPending is non-fatal: the lease is logically dead but
	// source-side invalidation has not completed.
	ErrRevocationPending = errors.New("revocation pending")
)
