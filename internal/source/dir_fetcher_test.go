package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/keylease/keylease/internal/config"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestDirFetcherMergesSortedDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-policies.yaml", `
policies:
  - name: deployers
    grants:
      - path: roles/*
        capabilities: [update]
`)
	writeFile(t, dir, "20-bindings.yml", `
bindings:
  - name: ci
    issuer: github
    bound_claims:
      repository: acme/*
    policies: [deployers]
`)
	writeFile(t, dir, "30-roles.yaml", `
roles:
  - name: deploy
    source: stub
    kind: token
    default_ttl: 10m
    max_ttl: 1h
`)
	writeFile(t, dir, "README.md", "not a policy document")

	f, err := NewDirFetcher(config.DirSourceConfig{Path: dir})
	if err != nil {
		t.Fatalf("NewDirFetcher() failed: %v", err)
	}
	doc, err := f.Fetch(context.Background(), nopLogger{})
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	if len(doc.Policies) != 1 || doc.Policies[0].Name != "deployers" {
		t.Errorf("policies = %+v", doc.Policies)
	}
	if len(doc.Bindings) != 1 || doc.Bindings[0].Name != "ci" {
		t.Errorf("bindings = %+v", doc.Bindings)
	}
	if len(doc.Roles) != 1 || doc.Roles[0].Name != "deploy" {
		t.Errorf("roles = %+v", doc.Roles)
	}
}

func TestDirFetcherErrors(t *testing.T) {
	t.Run("Empty Directory", func(t *testing.T) {
		f, err := NewDirFetcher(config.DirSourceConfig{Path: t.TempDir()})
		if err != nil {
			t.Fatalf("NewDirFetcher() failed: %v", err)
		}
		if _, err := f.Fetch(context.Background(), nopLogger{}); err == nil {
			t.Error("Fetch() succeeded on a directory without policy files")
		}
	})

	t.Run("Syntax Error Fails The Fetch", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "bad.yaml", "bindings: [\n")

		f, err := NewDirFetcher(config.DirSourceConfig{Path: dir})
		if err != nil {
			t.Fatalf("NewDirFetcher() failed: %v", err)
		}
		if _, err := f.Fetch(context.Background(), nopLogger{}); err == nil {
			t.Error("Fetch() accepted malformed YAML")
		}
	})

	t.Run("Missing Path In Config", func(t *testing.T) {
		if _, err := NewDirFetcher(config.DirSourceConfig{}); err == nil {
			t.Error("NewDirFetcher() accepted empty path")
		}
	})
}
