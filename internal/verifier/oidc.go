package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/core"
)

const DefaultClockSkew = 60 * time.Second

// OIDCVerifier validates identity tokens against an issuer's discovery
// endpoint. Signing keys come from the issuer's JWKS; go-oidc caches the
// keyset and refetches it lazily when a token carries an unknown key ID,
// at most once per verification.
type OIDCVerifier struct {
	name      string
	issuerURL string
	audiences []string
	skew      time.Duration
	verifier  *oidc.IDTokenVerifier

	now func() time.Time // test hook
}

func NewOIDCVerifier(ctx context.Context, cfg config.IssuerConfig) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("creating oidc provider for issuer '%s': %w", cfg.Name, err)
	}

	skew := cfg.ClockSkew
	if skew == 0 {
		skew = DefaultClockSkew
	}

	// audience and expiry are checked here, with the configured audience
	// set and skew window; go-oidc only supports a single client ID and
	// strict expiry.
	idVerifier := provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
		SkipExpiryCheck:   true,
	})

	return &OIDCVerifier{
		name:      cfg.Name,
		issuerURL: cfg.IssuerURL,
		audiences: cfg.Audiences,
		skew:      skew,
		verifier:  idVerifier,
		now:       time.Now,
	}, nil
}

func (o *OIDCVerifier) Name() string {
	return o.name
}

// IssuerURL returns the bound issuer, used for auto-discovery.
func (o *OIDCVerifier) IssuerURL() string {
	return o.issuerURL
}

func (o *OIDCVerifier) Verify(ctx context.Context, token string) (*core.Principal, error) {
	idToken, err := o.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: oidc verification: %v", core.ErrAuthenticationFailed, err)
	}

	if !audienceAccepted(idToken.Audience, o.audiences) {
		return nil, fmt.Errorf("%w: audience not accepted", core.ErrAuthenticationFailed)
	}

	now := o.now()
	if now.After(idToken.Expiry.Add(o.skew)) {
		return nil, fmt.Errorf("%w: token expired", core.ErrAuthenticationFailed)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: extracting claims: %v", core.ErrAuthenticationFailed, err)
	}

	if nbf, ok := numericDate(claims["nbf"]); ok && now.Add(o.skew).Before(nbf) {
		return nil, fmt.Errorf("%w: token not yet valid", core.ErrAuthenticationFailed)
	}
	if iat, ok := numericDate(claims["iat"]); ok && now.Add(o.skew).Before(iat) {
		return nil, fmt.Errorf("%w: token issued in the future", core.ErrAuthenticationFailed)
	}

	sub, _ := claims["sub"].(string)
	return &core.Principal{
		ID:     sub,
		Issuer: o.name,
		Claims: FlattenClaims(claims),
	}, nil
}

func audienceAccepted(tokenAud, accepted []string) bool {
	for _, aud := range tokenAud {
		for _, want := range accepted {
			if aud == want {
				return true
			}
		}
	}
	return false
}

func numericDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		return time.Unix(int64(t), 0), true
	case int64:
		return time.Unix(t, 0), true
	default:
		return time.Time{}, false
	}
}

// FlattenClaims flattens nested claim objects into dotted keys, so a
// binding can bind "ctx.environment" without the matcher walking maps.
// Lists and scalars are kept as-is.
func FlattenClaims(claims map[string]any) map[string]any {
	out := make(map[string]any, len(claims))
	flattenInto(out, "", claims)
	return out
}

func flattenInto(out map[string]any, prefix string, claims map[string]any) {
	for k, v := range claims {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}
