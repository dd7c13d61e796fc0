package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/keylease/keylease/internal/core"
)

const validConfig = `
issuers:
  - name: github
    type: oidc
    issuer_url: https://token.actions.githubusercontent.com
    audiences: [keylease]
  - name: local
    type: static
    token_map:
      dev-token:
        sub: alice

sources:
  - name: stub
    type: stub

bindings:
  - name: ci
    issuer: github
    user_claim: repository
    bound_claims:
      repository: acme/*
      ref: refs/heads/*
    policies: [deployers]
    ttl: 30m

policies:
  - name: deployers
    grants:
      - path: roles/deploy-*
        capabilities: [update]

roles:
  - name: deploy-staging
    source: stub
    kind: token
    default_ttl: 10m
    max_ttl: 1h
    renewable: true

lease:
  sweep_interval: 30s

audit:
  enabled: true
  type: memory
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keylease.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	wantRoles := []core.CredentialRole{{
		Name:       "deploy-staging",
		Source:     "stub",
		Kind:       core.KindToken,
		DefaultTTL: 10 * time.Minute,
		MaxTTL:     time.Hour,
		Renewable:  true,
	}}
	if diff := cmp.Diff(wantRoles, cfg.Roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}

	wantBindings := []core.RoleBinding{{
		Name:      "ci",
		Issuer:    "github",
		UserClaim: "repository",
		BoundClaims: map[string]string{
			"repository": "acme/*",
			"ref":        "refs/heads/*",
		},
		Policies: []string{"deployers"},
		TTL:      30 * time.Minute,
	}}
	if diff := cmp.Diff(wantBindings, cfg.Bindings,
		cmpopts.IgnoreUnexported(core.RoleBinding{}),
		cmpopts.IgnoreFields(core.RoleBinding{}, "CompiledExpr"),
	); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}

	// validation compiles the patterns eagerly
	if cfg.Bindings[0].Patterns() == nil {
		t.Error("binding patterns not compiled during Load")
	}

	if cfg.Lease.SweepInterval != 30*time.Second {
		t.Errorf("sweep interval = %v, want 30s", cfg.Lease.SweepInterval)
	}
	if got := cfg.Issuers[1].Config["token_map"]; got == nil {
		t.Error("inline issuer config lost the token_map")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantMsg string
	}{
		{
			name:    "Unknown Issuer Type",
			mutate:  func(s string) string { return strings.Replace(s, "type: oidc", "type: telepathy", 1) },
			wantMsg: "unknown type",
		},
		{
			name:    "OIDC Issuer Without Audiences",
			mutate:  func(s string) string { return strings.Replace(s, "audiences: [keylease]", "", 1) },
			wantMsg: "missing audiences",
		},
		{
			name:    "Binding References Unknown Issuer",
			mutate:  func(s string) string { return strings.Replace(s, "issuer: github", "issuer: gitlab", 1) },
			wantMsg: "unknown issuer",
		},
		{
			name:    "Binding References Unknown Policy",
			mutate:  func(s string) string { return strings.Replace(s, "policies: [deployers]", "policies: [nope]", 1) },
			wantMsg: "unknown policy",
		},
		{
			name:    "Role References Unknown Source",
			mutate:  func(s string) string { return strings.Replace(s, "source: stub", "source: vault", 1) },
			wantMsg: "unknown source",
		},
		{
			name:    "Default TTL Above Ceiling",
			mutate:  func(s string) string { return strings.Replace(s, "default_ttl: 10m", "default_ttl: 2h", 1) },
			wantMsg: "default_ttl exceeds max_ttl",
		},
		{
			name: "Unrestricted Binding",
			mutate: func(s string) string {
				s = strings.Replace(s, "      repository: acme/*\n", "", 1)
				return strings.Replace(s, "      ref: refs/heads/*\n", "", 1)
			},
			wantMsg: "unrestricted binding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate(validConfig)))
			if err == nil {
				t.Fatal("Load() accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() succeeded on a missing file")
	}
}

func TestPolicySourceValidate(t *testing.T) {
	tests := []struct {
		name    string
		source  PolicySource
		wantErr bool
	}{
		{
			name: "Valid GitHub Source",
			source: PolicySource{GitHub: &GitHubSourceConfig{
				Token: "t", Owner: "acme", Repo: "policies", Ref: "main",
			}},
		},
		{
			name:    "GitHub Source Missing Ref",
			source:  PolicySource{GitHub: &GitHubSourceConfig{Token: "t", Owner: "acme", Repo: "policies"}},
			wantErr: true,
		},
		{
			name:   "Valid Dir Source",
			source: PolicySource{Dir: &DirSourceConfig{Path: "/etc/keylease/policies"}},
		},
		{
			name:    "Empty Source",
			source:  PolicySource{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.source.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
