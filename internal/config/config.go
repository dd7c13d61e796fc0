package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/keylease/keylease/internal/core"
	"github.com/keylease/keylease/internal/validation"
)

type Config struct {
	Issuers  []IssuerConfig        `yaml:"issuers"`
	Sources  []SourceConfig        `yaml:"sources"`
	Bindings []core.RoleBinding    `yaml:"bindings"`
	Policies []core.PolicyBundle   `yaml:"policies"`
	Roles    []core.CredentialRole `yaml:"roles"`

	Lease        LeaseConfig   `yaml:"lease"`
	Audit        AuditConfig   `yaml:"audit"`
	PolicySource *PolicySource `yaml:"policy_source"`
}

// IssuerConfig holds the trust configuration for one recognized issuer.
type IssuerConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // e.g. "oidc", "static"

	// IssuerURL is the discovery URL for OIDC issuers. The token's 'iss'
	// claim must match it exactly.
	IssuerURL string `yaml:"issuer_url"`

	// Audiences lists the accepted 'aud' values. At least one must be
	// present in the token.
	Audiences []string `yaml:"audiences"`

	// ClockSkew is the tolerance applied to expiry / not-before checks.
	// Defaults to 60s.
	ClockSkew time.Duration `yaml:"clock_skew"`

	Config map[string]any `yaml:",inline"` // remaining type-specific fields
}

func (c *IssuerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("issuer has empty name")
	}
	switch c.Type {
	case "oidc":
		if c.IssuerURL == "" {
			return fmt.Errorf("oidc issuer '%s' missing issuer_url", c.Name)
		}
		if len(c.Audiences) == 0 {
			return fmt.Errorf("oidc issuer '%s' missing audiences", c.Name)
		}
	case "static":
		// token_map is optional; an empty map rejects everything
	default:
		return fmt.Errorf("issuer '%s' has unknown type '%s'", c.Name, c.Type)
	}
	return nil
}

// SourceConfig holds configuration for a downstream credential source.
type SourceConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g. "stub", "gcp-key", "gcp-token"
	Config map[string]any `yaml:",inline"` // remaining type-specific fields
}

// LeaseConfig tunes the lease manager.
type LeaseConfig struct {
	// SweepInterval is how often the expiry sweep scans the lease table.
	// Defaults to 1 minute.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // e.g. "file", "memory"
	Path    string `yaml:"path"`
}

// PolicySourceSync controls how often policy documents are re-fetched.
type PolicySourceSync struct {
	Interval time.Duration `yaml:"interval"`
}

// GitHubSourceConfig configures a GitHub repository as a policy source.
type GitHubSourceConfig struct {
	// Token authenticates against the GitHub API.
	Token string `yaml:"token"`

	// ServerURL is the GitHub Enterprise server URL; empty for github.com.
	ServerURL string `yaml:"server"`

	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`

	// Path is the directory within the repository holding policy
	// documents, e.g. "policies/".
	Path string `yaml:"path"`

	// Ref is the git reference to read from, e.g. "main".
	Ref string `yaml:"ref"`
}

func (c *GitHubSourceConfig) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.Repo == "" {
		return fmt.Errorf("repo is required")
	}
	if c.Ref == "" {
		return fmt.Errorf("ref is required")
	}
	return nil
}

// DirSourceConfig configures a local directory as a policy source.
type DirSourceConfig struct {
	Path string `yaml:"path"`
}

func (c *DirSourceConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// PolicySource selects where reloadable policy documents come from.
// Bindings, policies and roles are reloadable; issuers and sources are
// startup-only.
type PolicySource struct {
	GitHub *GitHubSourceConfig `yaml:"github,omitempty"`
	Dir    *DirSourceConfig    `yaml:"dir,omitempty"`

	Sync PolicySourceSync `yaml:"sync"`
}

func (s *PolicySource) Validate() error {
	switch {
	case s.GitHub != nil:
		if err := s.GitHub.Validate(); err != nil {
			return fmt.Errorf("validating GitHub policy source: %w", err)
		}
	case s.Dir != nil:
		if err := s.Dir.Validate(); err != nil {
			return fmt.Errorf("validating dir policy source: %w", err)
		}
	default:
		return fmt.Errorf("no valid policy source configured")
	}
	return nil
}

// PolicyDocument is the reloadable subset of the configuration, as
// fetched by a policy source.
type PolicyDocument struct {
	Bindings []core.RoleBinding    `yaml:"bindings"`
	Policies []core.PolicyBundle   `yaml:"policies"`
	Roles    []core.CredentialRole `yaml:"roles"`
}

// Load reads, parses and validates the configuration file at path.
// Any validation failure is fatal: the process must not start on a
// malformed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	validIssuers := make(map[string]struct{})
	for _, i := range c.Issuers {
		if err := i.Validate(); err != nil {
			return err
		}
		if _, dup := validIssuers[i.Name]; dup {
			return fmt.Errorf("issuer name '%s' is not unique", i.Name)
		}
		validIssuers[i.Name] = struct{}{}
	}

	validSources := make(map[string]struct{})
	for idx, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source at index %d has empty name", idx)
		}
		if _, dup := validSources[s.Name]; dup {
			return fmt.Errorf("source name '%s' is not unique", s.Name)
		}
		validSources[s.Name] = struct{}{}
	}

	validated, err := validation.ValidatePolicySet(
		c.Bindings, c.Policies, c.Roles, validIssuers, validSources)
	if err != nil {
		return err
	}
	c.Bindings = validated.Bindings
	c.Policies = validated.Policies
	c.Roles = validated.Roles

	if c.PolicySource != nil {
		if err := c.PolicySource.Validate(); err != nil {
			return fmt.Errorf("validating policy source: %w", err)
		}
	}
	return nil
}
