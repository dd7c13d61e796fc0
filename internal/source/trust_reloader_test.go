package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/verifier"
)

func writeReloaderConfig(t *testing.T, path, issuer string) {
	t.Helper()
	content := "issuers:\n" +
		"  - name: " + issuer + "\n" +
		"    type: static\n" +
		"    token_map:\n" +
		"      dev-token:\n" +
		"        sub: alice\n" +
		"sources:\n" +
		"  - name: stub\n" +
		"    type: stub\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}

func TestTrustReloaderSwapsRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keylease.yaml")
	writeReloaderConfig(t, path, "github")

	initial, err := verifier.BuildRegistry(context.Background(), []config.IssuerConfig{
		{Name: "old-issuer", Type: "static"},
	})
	if err != nil {
		t.Fatalf("BuildRegistry() failed: %v", err)
	}
	trust := verifier.NewStore(initial)

	r := NewTrustReloader(path, trust)
	if err := r.Reload(context.Background(), nopLogger{}); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}

	if _, ok := trust.Current().Get("github"); !ok {
		t.Error("reloaded registry missing the configured issuer")
	}
	if _, ok := trust.Current().Get("old-issuer"); ok {
		t.Error("reloaded registry still holds the startup issuer")
	}
}

func TestTrustReloaderKeepsRegistryOnBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keylease.yaml")
	writeReloaderConfig(t, path, "github")

	initial, err := verifier.BuildRegistry(context.Background(), []config.IssuerConfig{
		{Name: "github", Type: "static"},
	})
	if err != nil {
		t.Fatalf("BuildRegistry() failed: %v", err)
	}
	trust := verifier.NewStore(initial)
	held := trust.Current()

	if err := os.WriteFile(path, []byte("issuers: [\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	r := NewTrustReloader(path, trust)
	if err := r.Reload(context.Background(), nopLogger{}); err == nil {
		t.Fatal("Reload() accepted malformed config")
	}
	if trust.Current() != held {
		t.Error("registry swapped despite failed reload")
	}
}
