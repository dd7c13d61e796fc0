package core

import (
	"time"

	"github.com/expr-lang/expr/vm"
)

// Principal represents the authenticated identity of the caller.
// It is produced by a Verifier after validating an upstream identity token.
type Principal struct {
	// ID is the unique subject identifier. It defaults to the 'sub' claim
	// and is rewritten from the matched binding's user_claim after matching.
	ID string `json:"id"`

	// Issuer is the name of the trust config that verified this principal.
	Issuer string `json:"issuer"`

	// Claims is the flattened, read-only claim set extracted from the token.
	Claims map[string]any `json:"claims"`
}

// StringClaim returns the named claim as a string, or "" if it is absent
// or not a string.
func (p *Principal) StringClaim(name string) string {
	v, ok := p.Claims[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// MatchMode selects how bound_claims patterns are interpreted.
type MatchMode string

const (
	// MatchExact compares claim values byte-for-byte.
	MatchExact MatchMode = "string"
	// MatchGlob interprets '*' in patterns as a wildcard segment.
	MatchGlob MatchMode = "glob"
)

func (m MatchMode) IsValid() bool {
	return m == MatchExact || m == MatchGlob
}

// RoleBinding binds a set of claim conditions to an authorization grant.
// A principal whose claims satisfy every bound_claims entry (and the
// optional expression) is granted the binding's policies.
type RoleBinding struct {
	// Name is a human-readable identifier for logs and the explain trace.
	Name string `yaml:"name" json:"name"`

	// Description explains the intent of the binding.
	Description string `yaml:"description" json:"description,omitempty"`

	// Issuer is the name of the trust config that must have produced
	// the principal.
	Issuer string `yaml:"issuer" json:"issuer"`

	// BoundAudiences, when set, requires the token's 'aud' claim to
	// contain at least one of these values. The verifier already enforces
	// the trust config's audiences; this narrows per binding.
	BoundAudiences []string `yaml:"bound_audiences" json:"bound_audiences,omitempty"`

	// UserClaim names the claim that identifies the principal
	// (e.g. "sub", "repository"). Defaults to "sub".
	UserClaim string `yaml:"user_claim" json:"user_claim,omitempty"`

	// BoundClaims maps claim names to patterns. Every entry must match
	// for the binding to apply; an absent claim rejects the binding.
	BoundClaims map[string]string `yaml:"bound_claims" json:"bound_claims"`

	// BoundClaimsType selects glob or exact matching for BoundClaims.
	// Defaults to glob.
	BoundClaimsType MatchMode `yaml:"bound_claims_type" json:"bound_claims_type,omitempty"`

	// Expr is an optional expression for matching logic that bound_claims
	// cannot express. Evaluated after bound_claims, with the principal in
	// scope.
	Expr string `yaml:"expr" json:"expr,omitempty"`

	// CompiledExpr holds the pre-compiled form of Expr.
	CompiledExpr *vm.Program `yaml:"-" json:"-"`

	// Policies are the names of the policy bundles granted on match.
	Policies []string `yaml:"policies" json:"policies"`

	// TTL caps the lease TTL a caller matched by this binding may request.
	// Zero means the credential role's ceiling applies alone.
	TTL time.Duration `yaml:"ttl" json:"ttl,omitempty"`

	// MaxTTL is the absolute ceiling for this binding. Invariant: TTL <= MaxTTL.
	MaxTTL time.Duration `yaml:"max_ttl" json:"max_ttl,omitempty"`

	// compiled bound-claim patterns, populated during validation.
	patterns map[string]Pattern
}

// Patterns returns the compiled bound-claim patterns. CompilePatterns must
// have been called first (config validation does).
func (b *RoleBinding) Patterns() map[string]Pattern {
	return b.patterns
}

// CompilePatterns compiles every bound_claims entry using the binding's
// match mode.
func (b *RoleBinding) CompilePatterns() {
	mode := b.BoundClaimsType
	if mode == "" {
		mode = MatchGlob
	}
	b.patterns = make(map[string]Pattern, len(b.BoundClaims))
	for claim, raw := range b.BoundClaims {
		b.patterns[claim] = CompilePattern(raw, mode)
	}
}

// CredentialKind distinguishes the two credential shapes a role can issue.
type CredentialKind string

const (
	// KindKey is a static-user-style credential (e.g. a service account key).
	KindKey CredentialKind = "key"
	// KindToken is an assumed-role/STS-style short-lived token.
	KindToken CredentialKind = "token"
)

func (k CredentialKind) IsValid() bool {
	return k == KindKey || k == KindToken
}

// CredentialRole maps a role name to a downstream permission document and
// its issuance parameters.
type CredentialRole struct {
	// Name identifies the role; exchange requests refer to it.
	Name string `yaml:"name" json:"name"`

	// Source is the name of the credential source that issues for this role.
	Source string `yaml:"source" json:"source"`

	// Kind selects the credential shape.
	Kind CredentialKind `yaml:"kind" json:"kind"`

	// Permissions is the downstream permission document, interpreted by
	// the source (e.g. OAuth scopes, an IAM policy reference).
	Permissions map[string]string `yaml:"permissions" json:"permissions,omitempty"`

	// Config allows arbitrary source-specific configuration
	// (e.g. "service_account": "ci@proj.iam.gserviceaccount.com").
	Config map[string]any `yaml:"config" json:"config,omitempty"`

	// DefaultTTL is used when the caller requests no TTL.
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// MaxTTL is the absolute lease ceiling. Invariant: DefaultTTL <= MaxTTL.
	MaxTTL time.Duration `yaml:"max_ttl" json:"max_ttl"`

	// Renewable indicates whether leases issued from this role may be
	// renewed before expiry.
	Renewable bool `yaml:"renewable" json:"renewable"`
}

// SourceInfo is attached to issued credentials for traceability.
type SourceInfo struct {
	// Type is the source type (e.g. "stub", "gcp-key").
	Type string `json:"type"`

	// Version is the source implementation version (e.g. "v1").
	Version string `json:"version"`
}

// Credential is the result of a successful Issue call against a source.
// The broker never inspects Data beyond returning it to the caller.
type Credential struct {
	// Data is the provider-native credential material, e.g. an access
	// key / secret / session token triple or a base64 key document.
	Data map[string]string `json:"data"`

	// Fingerprint is a non-reversible identifier for audit correlation.
	Fingerprint string `json:"fingerprint"`

	// ExpiresAt indicates when the underlying secret becomes invalid
	// downstream, independent of the lease expiry.
	ExpiresAt time.Time `json:"expires_at"`

	// Source describes the issuing source.
	Source SourceInfo `json:"source"`

	// internal reference passed from the source to the lease manager.
	// It holds whatever the source needs for revocation (e.g. a key name).
	revocationRef string
}

// SetRevocationRef records the source-side reference needed to revoke this
// credential. Only sources call this.
func (c *Credential) SetRevocationRef(ref string) {
	c.revocationRef = ref
}

// RevocationRef returns the source-side revocation reference.
func (c *Credential) RevocationRef() string {
	return c.revocationRef
}

type Fingerprinter func(secret string) string
