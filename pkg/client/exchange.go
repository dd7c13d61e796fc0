package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/keylease/keylease/internal/api"
	"github.com/keylease/keylease/internal/broker"
)

// ExchangeOptions contains optional parameters for an exchange.
type ExchangeOptions struct {
	// TTL is the requested lease lifetime. Zero means the role default.
	TTL time.Duration

	// Issuer optionally names the trust config to verify against.
	// You should only set this in cases where you _know_ the issuer to use.
	Issuer string
}

// Exchange trades an identity token for a short-lived credential under a
// lease.
func (c *Client) Exchange(
	ctx context.Context,
	token, role string,
	opts ExchangeOptions,
) (*broker.ExchangeResult, string, error) {
	payload := api.ExchangePayload{
		Role:   role,
		Issuer: opts.Issuer,
	}
	if opts.TTL > 0 {
		payload.TTL = opts.TTL.String()
	}
	marshalled, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshalling payload: %w", err)
	}

	// manual request: the Authorization header carries the identity token
	// here, not the admin session token.
	req, err := http.NewRequestWithContext(ctx, "POST", c.url().
		setPath(api.ExchangeRoute).
		build(), bytes.NewReader(marshalled))
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, correlationFromResponse(resp), fmt.Errorf("connection failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode >= 400 {
		return nil, correlationFromResponse(resp), parseErrorResponse(resp)
	}

	var result broker.ExchangeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, correlationFromResponse(resp), fmt.Errorf("decoding response: %w", err)
	}

	return &result, correlationFromResponse(resp), nil
}
