package verifier

import (
	"context"
	"fmt"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/core"
)

// StaticVerifier maps literal tokens to claim sets. Useful for local
// development and tests; never for production trust.
type StaticVerifier struct {
	name     string
	tokenMap map[string]map[string]any // token -> claims
}

func NewStatic(cfg config.IssuerConfig) (*StaticVerifier, error) {
	rawMap, ok := cfg.Config["token_map"].(map[string]any)
	if !ok {
		// no map provided: every verification fails
		return &StaticVerifier{name: cfg.Name}, nil
	}

	tokenMap := make(map[string]map[string]any)
	for token, claimsRaw := range rawMap {
		claims, ok := claimsRaw.(map[string]any)
		if !ok {
			continue
		}
		tokenMap[token] = FlattenClaims(claims)
	}

	return &StaticVerifier{
		name:     cfg.Name,
		tokenMap: tokenMap,
	}, nil
}

func (s *StaticVerifier) Name() string {
	return s.name
}

func (s *StaticVerifier) Verify(_ context.Context, token string) (*core.Principal, error) {
	claims, ok := s.tokenMap[token]
	if !ok {
		return nil, fmt.Errorf("%w: unknown static token", core.ErrAuthenticationFailed)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		sub = "static-user"
	}
	return &core.Principal{
		ID:     sub,
		Issuer: s.name,
		Claims: claims,
	}, nil
}
