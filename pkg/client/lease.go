package client

import (
	"context"
	"time"

	"github.com/keylease/keylease/internal/api"
)

// RenewLease extends a lease and returns the new expiry.
func (c *Client) RenewLease(ctx context.Context, handle string, ttl time.Duration) (time.Time, string, error) {
	payload := api.RenewPayload{Handle: handle}
	if ttl > 0 {
		payload.TTL = ttl.String()
	}
	var resp api.RenewResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.LeaseRenewRoute).
		build(), payload, &resp)
	if err != nil {
		return time.Time{}, correlation, err
	}
	return resp.ExpiresAt, correlation, nil
}

// RevokeLease terminates a lease. The returned status is "revoked" or
// "revocation_pending".
func (c *Client) RevokeLease(ctx context.Context, handle string) (string, string, error) {
	var resp api.RevokeResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.LeaseRevokeRoute).
		build(), api.RevokePayload{Handle: handle}, &resp)
	if err != nil {
		return "", correlation, err
	}
	return resp.Status, correlation, nil
}
