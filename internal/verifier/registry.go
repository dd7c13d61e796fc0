package verifier

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/core"
)

// Registry holds the configured verifiers and supports issuer
// auto-discovery from the token's unverified 'iss' claim.
type Registry struct {
	byName      map[string]core.Verifier
	byIssuerURL map[string]core.Verifier
}

func BuildRegistry(ctx context.Context, cfgs []config.IssuerConfig) (*Registry, error) {
	reg := &Registry{
		byName:      make(map[string]core.Verifier),
		byIssuerURL: make(map[string]core.Verifier),
	}
	for _, cfg := range cfgs {
		switch cfg.Type {
		case "static":
			v, err := NewStatic(cfg)
			if err != nil {
				return nil, fmt.Errorf("building static verifier %q: %w", cfg.Name, err)
			}
			reg.byName[cfg.Name] = v
		case "oidc":
			v, err := NewOIDCVerifier(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("building oidc verifier %q: %w", cfg.Name, err)
			}
			reg.byName[cfg.Name] = v
			reg.byIssuerURL[v.IssuerURL()] = v
		default:
			return nil, fmt.Errorf("unknown issuer type %q for issuer %q", cfg.Type, cfg.Name)
		}
	}
	return reg, nil
}

func (r *Registry) Get(name string) (core.Verifier, bool) {
	v, ok := r.byName[name]
	return v, ok
}

// Identify picks the verifier bound to the token's 'iss' claim, without
// verifying the token. Static verifiers are never auto-discovered.
func (r *Registry) Identify(token string) (core.Verifier, error) {
	iss, err := ExtractIssuerURL(token)
	if err != nil {
		return nil, err
	}
	v, ok := r.byIssuerURL[iss]
	if !ok {
		return nil, fmt.Errorf("no trust config bound to issuer '%s'", iss)
	}
	return v, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}

// ExtractIssuerURL extracts the 'iss' claim from a JWT without verifying it.
func ExtractIssuerURL(tokenString string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	issRaw, ok := claims["iss"]
	if !ok {
		return "", fmt.Errorf("token missing 'iss' claim")
	}

	iss, ok := issRaw.(string)
	if !ok {
		return "", fmt.Errorf("invalid 'iss' claim type")
	}

	return iss, nil
}
