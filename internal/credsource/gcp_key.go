package credsource

import (
	"context"
	"fmt"
	"time"

	admin "cloud.google.com/go/iam/admin/apiv1"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	adminpb "google.golang.org/genproto/googleapis/iam/admin/v1"

	"github.com/keylease/keylease/internal/audit"
	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/core"
)

const GCPKeyType = "gcp-key"

var gcpKeyInfo = core.SourceInfo{
	Type:    GCPKeyType,
	Version: "v1",
}

type GCPKeySourceConfig struct {
	// ServiceAccount is the default target account when a role does not
	// name one (e.g. "ci-deployer@proj.iam.gserviceaccount.com").
	ServiceAccount string `mapstructure:"service_account"`

	// CredentialsFile optionally points at the broker's own credentials;
	// otherwise application default credentials apply.
	CredentialsFile string `mapstructure:"credentials_file"`
}

var _ core.CredentialSource = (*GCPKeySource)(nil)

// GCPKeySource issues static-user-style credentials by creating a service
// account key, and revokes by deleting it. GCP does not expire these keys
// on its own; the lease expiry drives deletion, so the sweep is what
// actually bounds their lifetime.
type GCPKeySource struct {
	name   string
	cfg    GCPKeySourceConfig
	client *admin.IamClient
}

func NewGCPKeySource(ctx context.Context, cfg config.SourceConfig) (*GCPKeySource, error) {
	var parsed GCPKeySourceConfig
	if err := mapstructure.Decode(cfg.Config, &parsed); err != nil {
		return nil, fmt.Errorf("decoding gcp-key config: %w", err)
	}

	var opts []option.ClientOption
	if parsed.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(parsed.CredentialsFile))
	}
	client, err := admin.NewIamClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating iam admin client: %w", err)
	}

	return &GCPKeySource{
		name:   cfg.Name,
		cfg:    parsed,
		client: client,
	}, nil
}

func (g *GCPKeySource) Name() string {
	return g.name
}

func (g *GCPKeySource) Type() string {
	return GCPKeyType
}

func (g *GCPKeySource) Issue(ctx context.Context, role *core.CredentialRole, ttl time.Duration) (*core.Credential, error) {
	sa, err := serviceAccount(role, g.cfg.ServiceAccount)
	if err != nil {
		return nil, err
	}

	key, err := g.client.CreateServiceAccountKey(ctx, &adminpb.CreateServiceAccountKeyRequest{
		Name:           fmt.Sprintf("projects/-/serviceAccounts/%s", sa),
		PrivateKeyType: adminpb.ServiceAccountPrivateKeyType_TYPE_GOOGLE_CREDENTIALS_FILE,
	})
	if err != nil {
		return nil, fmt.Errorf("creating service account key for '%s': %w", sa, err)
	}

	log.Ctx(ctx).Info().
		Str("source", g.name).
		Str("service_account", sa).
		Str("key", key.Name).
		Msg("created service account key")

	cred := &core.Credential{
		Data: map[string]string{
			"service_account":  sa,
			"private_key_data": string(key.PrivateKeyData),
			"key_name":         key.Name,
		},
		Fingerprint: audit.CalculateFingerprint(audit.GCPKeyFingerprintType, string(key.PrivateKeyData)),
		ExpiresAt:   time.Now().Add(ttl),
		Source:      gcpKeyInfo,
	}
	cred.SetRevocationRef(key.Name)
	return cred, nil
}

func (g *GCPKeySource) Revoke(ctx context.Context, ref string) error {
	if err := g.client.DeleteServiceAccountKey(ctx, &adminpb.DeleteServiceAccountKeyRequest{
		Name: ref,
	}); err != nil {
		return fmt.Errorf("deleting service account key '%s': %w", ref, err)
	}
	return nil
}
