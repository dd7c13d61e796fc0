package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/keylease/keylease/internal/api"
	"github.com/keylease/keylease/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	PrincipalID   string
	Fingerprint   string
	Lease         string
}

// ListAudits retrieves audit stream entries from the server.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEvent, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.CorrelationID != "" {
		ub = ub.addQueryParam("correlation_id", opts.CorrelationID)
	}
	if opts.PrincipalID != "" {
		ub = ub.addQueryParam("principal_id", opts.PrincipalID)
	}
	if opts.Fingerprint != "" {
		ub = ub.addQueryParam("fingerprint", opts.Fingerprint)
	}
	if opts.Lease != "" {
		ub = ub.addQueryParam("lease", opts.Lease)
	}
	var resp []core.AuditEvent
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}

// ListActiveLeases retrieves all non-terminal leases.
func (c *Client) ListActiveLeases(ctx context.Context) ([]core.Lease, string, error) {
	var resp []core.Lease
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListLeasesRoute).
		build(), &resp)
	return resp, correlation, err
}

type ExplainOpts struct {
	// Token is the identity token to trace.
	Token string

	// Issuer optionally names the trust config to verify against.
	Issuer string

	// ReplayID traces the principal recorded under an audit entry instead
	// of verifying a fresh token.
	ReplayID string
}

// ExplainTrace evaluates every binding against the token (or a replayed
// audit entry) and returns the full match trace.
func (c *Client) ExplainTrace(ctx context.Context, opts ExplainOpts) (*core.MatchTrace, string, error) {
	ub := c.url().setPath(api.ExplainRoute)
	if opts.Issuer != "" {
		ub = ub.addQueryParam("issuer", opts.Issuer)
	}
	if opts.ReplayID != "" {
		ub = ub.addQueryParam("replay_id", opts.ReplayID)
	}

	form := url.Values{}
	if opts.Token != "" {
		form.Set("token", opts.Token)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", ub.build(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var trace core.MatchTrace
	correlation, err := c.do(req, &trace)
	if err != nil {
		return nil, correlation, err
	}
	return &trace, correlation, nil
}
