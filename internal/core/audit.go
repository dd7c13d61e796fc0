package core

import "time"

// Actions emitted to the audit stream.
const (
	ActionVerify   = "token.verify"
	ActionMatch    = "policy.match"
	ActionExchange = "lease.exchange"
	ActionRenew    = "lease.renew"
	ActionRevoke   = "lease.revoke"
	ActionExpire   = "lease.expire"
)

// AuditEvent is one structured entry in the append-only audit stream.
// Events carry full context server-side regardless of what the caller was
// told.
type AuditEvent struct {
	// ID is the unique request ID (X-Correlation-ID).
	ID string `json:"id"`

	// Time is the timestamp of the event.
	Time time.Time `json:"time"`

	// Action describes what happened (e.g. "lease.exchange").
	Action string `json:"action"`

	// Principal identifies who made the request, if verification got far
	// enough to establish one.
	Principal *Principal `json:"principal,omitempty"`

	// RequestedRole and RequestedIssuer echo the request.
	RequestedRole   string `json:"requested_role,omitempty"`
	RequestedIssuer string `json:"requested_issuer,omitempty"`

	// Decision details.
	Binding     string `json:"binding,omitempty"`
	Source      string `json:"source,omitempty"`
	LeaseHandle string `json:"lease_handle,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Granted     bool   `json:"granted"`

	// Stage is the pipeline stage that failed, if any.
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	// Metadata carries extra detail (e.g. effective TTL).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Auditor is the write-only audit sink. The core never reads it back;
// admin tooling does, through QueryableAuditor.
type Auditor interface {
	Log(event AuditEvent) error
	Close() error
}

// QueryableAuditor is implemented by sinks that support the admin audit
// API (recent entries, filtered search, replay for explain).
type QueryableAuditor interface {
	Auditor

	Recent(limit int) ([]AuditEvent, error)
	Find(filter func(event AuditEvent) bool, limit int) ([]AuditEvent, error)
}
