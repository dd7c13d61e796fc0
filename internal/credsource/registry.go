package credsource

import (
	"context"
	"fmt"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/core"
)

// BuildRegistry constructs every configured credential source.
func BuildRegistry(ctx context.Context, cfgs []config.SourceConfig) (map[string]core.CredentialSource, error) {
	registry := make(map[string]core.CredentialSource)
	for _, cfg := range cfgs {
		switch cfg.Type {
		case StubType:
			registry[cfg.Name] = NewStub(cfg.Name)
		case GCPKeyType:
			src, err := NewGCPKeySource(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("building gcp-key source %q: %w", cfg.Name, err)
			}
			registry[cfg.Name] = src
		case GCPTokenType:
			src, err := NewGCPTokenSource(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("building gcp-token source %q: %w", cfg.Name, err)
			}
			registry[cfg.Name] = src
		default:
			return nil, fmt.Errorf("unknown source type %q for source %q", cfg.Type, cfg.Name)
		}
	}
	return registry, nil
}

// serviceAccount resolves the target service account for a role, falling
// back to the source's default.
func serviceAccount(role *core.CredentialRole, fallback string) (string, error) {
	if sa, ok := role.Config["service_account"].(string); ok && sa != "" {
		return sa, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("role '%s' has no service_account and the source defines no default", role.Name)
}
