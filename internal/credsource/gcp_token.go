package credsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/keylease/keylease/internal/audit"
	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/core"
)

const GCPTokenType = "gcp-token"

const defaultScope = "https://www.googleapis.com/auth/cloud-platform"

var gcpTokenInfo = core.SourceInfo{
	Type:    GCPTokenType,
	Version: "v1",
}

type GCPTokenSourceConfig struct {
	ServiceAccount  string `mapstructure:"service_account"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

var _ core.CredentialSource = (*GCPTokenSource)(nil)

// GCPTokenSource issues assumed-role-style short-lived access tokens via
// GenerateAccessToken. These cannot be invalidated server-side once
// issued; Revoke therefore reports ErrRevocationPending and the token
// dies at its own expiry, which never exceeds the lease TTL.
type GCPTokenSource struct {
	name   string
	cfg    GCPTokenSourceConfig
	client *credentials.IamCredentialsClient
}

func NewGCPTokenSource(ctx context.Context, cfg config.SourceConfig) (*GCPTokenSource, error) {
	var parsed GCPTokenSourceConfig
	if err := mapstructure.Decode(cfg.Config, &parsed); err != nil {
		return nil, fmt.Errorf("decoding gcp-token config: %w", err)
	}

	var opts []option.ClientOption
	if parsed.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(parsed.CredentialsFile))
	}
	client, err := credentials.NewIamCredentialsClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating iam credentials client: %w", err)
	}

	return &GCPTokenSource{
		name:   cfg.Name,
		cfg:    parsed,
		client: client,
	}, nil
}

func (g *GCPTokenSource) Name() string {
	return g.name
}

func (g *GCPTokenSource) Type() string {
	return GCPTokenType
}

func (g *GCPTokenSource) Issue(ctx context.Context, role *core.CredentialRole, ttl time.Duration) (*core.Credential, error) {
	sa, err := serviceAccount(role, g.cfg.ServiceAccount)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.GenerateAccessToken(ctx, &credentialspb.GenerateAccessTokenRequest{
		Name:     fmt.Sprintf("projects/-/serviceAccounts/%s", sa),
		Scope:    roleScopes(role),
		Lifetime: durationpb.New(ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("generating access token for '%s': %w", sa, err)
	}

	log.Ctx(ctx).Info().
		Str("source", g.name).
		Str("service_account", sa).
		Msg("generated short-lived access token")

	cred := &core.Credential{
		Data: map[string]string{
			"service_account": sa,
			"access_token":    resp.AccessToken,
			"token_type":      "Bearer",
		},
		Fingerprint: audit.CalculateFingerprint(audit.GCPTokenFingerprintType, resp.AccessToken),
		ExpiresAt:   resp.ExpireTime.AsTime(),
		Source:      gcpTokenInfo,
	}
	// no server-side handle exists for access tokens
	cred.SetRevocationRef("")
	return cred, nil
}

func (g *GCPTokenSource) Revoke(_ context.Context, _ string) error {
	return core.ErrRevocationPending
}

func roleScopes(role *core.CredentialRole) []string {
	if raw, ok := role.Permissions["scopes"]; ok && raw != "" {
		parts := strings.Split(raw, ",")
		scopes := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				scopes = append(scopes, s)
			}
		}
		if len(scopes) > 0 {
			return scopes
		}
	}
	return []string{defaultScope}
}
