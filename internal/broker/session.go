package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/keylease/keylease/internal/core"
	"github.com/keylease/keylease/internal/lease"
	"github.com/keylease/keylease/internal/match"
	"github.com/keylease/keylease/internal/policy"
	"github.com/keylease/keylease/internal/verifier"
)

// Broker runs the exchange pipeline: verify the identity token, match the
// principal against the role bindings, authorize the requested role and
// hand off to the lease manager. Each request walks the stages in order
// and stops at the first failure.
type Broker struct {
	verifiers *verifier.Store
	store     *policy.Store
	leases    *lease.Manager
	auditor   core.Auditor

	now func() time.Time // test hook
}

func New(verifiers *verifier.Store, store *policy.Store, leases *lease.Manager, auditor core.Auditor) *Broker {
	return &Broker{
		verifiers: verifiers,
		store:     store,
		leases:    leases,
		auditor:   auditor,
		now:       time.Now,
	}
}

// Exchange validates the token and mints a credential for the requested
// role. Failures return a StageError naming only the stage; the audit
// stream records the full context.
func (b *Broker) Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	principal, err := b.verify(ctx, req.Token, req.Issuer)
	if err != nil {
		b.deny(ctx, core.ActionVerify, req, nil, StageVerify, err)
		return nil, stageErr(StageVerify, fmt.Errorf("%w: %v", core.ErrAuthenticationFailed, err))
	}

	snapshot := b.store.Current()

	binding, err := match.Match(snapshot.Bindings(), principal)
	if err != nil {
		b.deny(ctx, core.ActionMatch, req, principal, StageMatch, err)
		return nil, stageErr(StageMatch, err)
	}

	// the matched binding decides which claim identifies the principal
	if binding.UserClaim != "" {
		if id := principal.StringClaim(binding.UserClaim); id != "" {
			principal.ID = id
		}
	}

	role, ok := snapshot.GetRole(req.Role)
	if !ok || !b.roleGranted(snapshot, binding, req.Role) {
		// unknown and ungranted roles are indistinguishable to the caller
		b.deny(ctx, core.ActionExchange, req, principal, StageAuthorize,
			fmt.Errorf("%w: role '%s' not granted by binding '%s'", core.ErrForbidden, req.Role, binding.Name))
		return nil, stageErr(StageAuthorize, core.ErrForbidden)
	}

	requested := req.TTL
	if binding.TTL > 0 && (requested <= 0 || requested > binding.TTL) {
		requested = binding.TTL
	}

	l, cred, err := b.leases.Issue(ctx, role, lease.IssueOptions{
		Principal:    principal.ID,
		RequestedTTL: requested,
		MaxTTL:       binding.MaxTTL,
	})
	if err != nil {
		b.deny(ctx, core.ActionExchange, req, principal, StageIssue, err)
		return nil, stageErr(StageIssue, err)
	}

	// the caller may have gone away while the source call was in flight;
	// a credential nobody received must not stay live
	if ctx.Err() != nil {
		if rerr := b.leases.Revoke(context.WithoutCancel(ctx), l.Handle); rerr != nil {
			log.Ctx(ctx).Warn().Err(rerr).
				Str("lease", l.Handle).
				Msg("failed to revoke orphaned lease")
		}
		b.deny(ctx, core.ActionExchange, req, principal, StageIssue, ctx.Err())
		return nil, stageErr(StageIssue, ctx.Err())
	}

	b.audit(core.AuditEvent{
		ID:              core.CorrelationIDFromContext(ctx),
		Time:            b.now(),
		Action:          core.ActionExchange,
		Principal:       principal,
		RequestedRole:   req.Role,
		RequestedIssuer: req.Issuer,
		Binding:         binding.Name,
		Source:          l.SourceName,
		LeaseHandle:     l.Handle,
		Fingerprint:     cred.Fingerprint,
		Granted:         true,
		Metadata: map[string]any{
			"ttl":        l.TTL.String(),
			"expires_at": l.ExpiresAt,
		},
	})

	log.Ctx(ctx).Info().
		Str("principal", principal.ID).
		Str("role", req.Role).
		Str("binding", binding.Name).
		Str("lease", l.Handle).
		Dur("ttl", l.TTL).
		Msg("credential exchanged")

	return &ExchangeResult{Lease: l, Credential: cred}, nil
}

// Renew extends an existing lease.
func (b *Broker) Renew(ctx context.Context, handle string, ttl time.Duration) (time.Time, error) {
	expiry, err := b.leases.Renew(ctx, handle, ttl)
	event := core.AuditEvent{
		ID:          core.CorrelationIDFromContext(ctx),
		Time:        b.now(),
		Action:      core.ActionRenew,
		LeaseHandle: handle,
		Granted:     err == nil,
	}
	if err != nil {
		event.Stage = StageRenew
		event.Error = err.Error()
		b.audit(event)
		return time.Time{}, stageErr(StageRenew, err)
	}
	event.Metadata = map[string]any{"expires_at": expiry}
	b.audit(event)
	return expiry, nil
}

// Revoke terminates a lease and invalidates its credential at the source.
// ErrRevocationPending passes through: the lease is dead but the
// source-side cleanup has not been confirmed.
func (b *Broker) Revoke(ctx context.Context, handle string) error {
	err := b.leases.Revoke(ctx, handle)
	event := core.AuditEvent{
		ID:          core.CorrelationIDFromContext(ctx),
		Time:        b.now(),
		Action:      core.ActionRevoke,
		LeaseHandle: handle,
		Granted:     err == nil,
	}
	if err != nil {
		event.Stage = StageRevoke
		event.Error = err.Error()
		b.audit(event)
		return stageErr(StageRevoke, err)
	}
	b.audit(event)
	return nil
}

// Explain verifies a token and evaluates every binding against it,
// returning the full trace. Admin-only; the trace names claims and
// patterns that regular error responses withhold.
func (b *Broker) Explain(ctx context.Context, token, issuerName string) (*core.MatchTrace, error) {
	principal, err := b.verify(ctx, token, issuerName)
	if err != nil {
		return nil, stageErr(StageVerify, fmt.Errorf("%w: %v", core.ErrAuthenticationFailed, err))
	}
	trace := match.Trace(b.store.Current().Bindings(), principal)
	trace.CorrelationID = core.CorrelationIDFromContext(ctx)
	return &trace, nil
}

// TracePrincipal evaluates every binding against an already established
// principal, e.g. one replayed from an audit entry.
func (b *Broker) TracePrincipal(ctx context.Context, principal *core.Principal) *core.MatchTrace {
	trace := match.Trace(b.store.Current().Bindings(), principal)
	trace.CorrelationID = core.CorrelationIDFromContext(ctx)
	return &trace
}

func (b *Broker) verify(ctx context.Context, token, issuerName string) (*core.Principal, error) {
	registry := b.verifiers.Current()

	var (
		v  core.Verifier
		ok bool
	)
	if issuerName != "" {
		if v, ok = registry.Get(issuerName); !ok {
			return nil, fmt.Errorf("unknown issuer '%s'", issuerName)
		}
	} else {
		var err error
		if v, err = registry.Identify(token); err != nil {
			return nil, err
		}
	}
	return v.Verify(ctx, token)
}

// roleGranted reports whether any of the binding's policy bundles allow
// updating the requested role resource.
func (b *Broker) roleGranted(snapshot *policy.Snapshot, binding *core.RoleBinding, role string) bool {
	path := "roles/" + role
	for _, name := range binding.Policies {
		bundle, ok := snapshot.GetPolicy(name)
		if !ok {
			continue
		}
		if bundle.Allows(path, core.CapUpdate) {
			return true
		}
	}
	return false
}

func (b *Broker) deny(ctx context.Context, action string, req ExchangeRequest, principal *core.Principal, stage string, err error) {
	b.audit(core.AuditEvent{
		ID:              core.CorrelationIDFromContext(ctx),
		Time:            b.now(),
		Action:          action,
		Principal:       principal,
		RequestedRole:   req.Role,
		RequestedIssuer: req.Issuer,
		Granted:         false,
		Stage:           stage,
		Error:           err.Error(),
	})
}

func (b *Broker) audit(event core.AuditEvent) {
	if b.auditor == nil {
		return
	}
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if err := b.auditor.Log(event); err != nil {
		log.Error().Err(err).Msg("failed to write audit event")
	}
}
