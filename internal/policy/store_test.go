package policy

import (
	"testing"
	"time"

	"github.com/keylease/keylease/internal/core"
	"github.com/keylease/keylease/internal/validation"
)

func snapshotFor(t *testing.T, roleName string) *Snapshot {
	t.Helper()
	set, err := validation.ValidatePolicySet(
		[]core.RoleBinding{{
			Name:        "b",
			Issuer:      "github",
			BoundClaims: map[string]string{"repository": "acme/*"},
			Policies:    []string{"p"},
		}},
		[]core.PolicyBundle{{
			Name:   "p",
			Grants: []core.PathGrant{{Path: "roles/*", Capabilities: []core.Capability{core.CapUpdate}}},
		}},
		[]core.CredentialRole{{
			Name:       roleName,
			Source:     "stub",
			Kind:       core.KindToken,
			DefaultTTL: 5 * time.Minute,
			MaxTTL:     15 * time.Minute,
		}},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("ValidatePolicySet() failed: %v", err)
	}
	return NewSnapshot(set)
}

func TestStoreSwap(t *testing.T) {
	store := NewStore(snapshotFor(t, "old-role"))

	if _, ok := store.Current().GetRole("old-role"); !ok {
		t.Fatal("initial snapshot missing old-role")
	}

	held := store.Current()
	store.Swap(snapshotFor(t, "new-role"))

	// a held snapshot stays coherent after the swap
	if _, ok := held.GetRole("old-role"); !ok {
		t.Error("held snapshot lost old-role after swap")
	}
	if _, ok := held.GetRole("new-role"); ok {
		t.Error("held snapshot should not see new-role")
	}

	if _, ok := store.Current().GetRole("new-role"); !ok {
		t.Error("current snapshot missing new-role after swap")
	}
	if _, ok := store.Current().GetRole("old-role"); ok {
		t.Error("current snapshot still has old-role after swap")
	}
}

func TestSnapshotLookups(t *testing.T) {
	snap := snapshotFor(t, "deploy")

	if got := len(snap.Bindings()); got != 1 {
		t.Errorf("Bindings() = %d entries, want 1", got)
	}
	if _, ok := snap.GetPolicy("p"); !ok {
		t.Error("GetPolicy(p) not found")
	}
	if _, ok := snap.GetPolicy("nope"); ok {
		t.Error("GetPolicy(nope) unexpectedly found")
	}
	if _, ok := snap.GetRole("deploy"); !ok {
		t.Error("GetRole(deploy) not found")
	}
}
