package credsource

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keylease/keylease/internal/core"
)

func TestStubIssueAndRevoke(t *testing.T) {
	s := NewStub("stub")
	role := &core.CredentialRole{Name: "deploy", Source: "stub", Kind: core.KindToken}

	cred, err := s.Issue(context.Background(), role, 10*time.Minute)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if cred.RevocationRef() == "" {
		t.Fatal("credential missing revocation ref")
	}
	if s.Revoked(cred.RevocationRef()) {
		t.Error("credential reported revoked before Revoke")
	}
	if err := s.Revoke(context.Background(), cred.RevocationRef()); err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}
	if !s.Revoked(cred.RevocationRef()) {
		t.Error("credential not reported revoked")
	}
}

func TestStubConcurrentRevoke(t *testing.T) {
	s := NewStub("stub")

	// concurrent revocations and reads, like a sweep retry racing an API
	// revoke; run under -race this trips on an unguarded map
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		ref := fmt.Sprintf("stub/%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := s.Revoke(context.Background(), ref); err != nil {
				t.Errorf("Revoke(%s) failed: %v", ref, err)
			}
		}()
		go func() {
			defer wg.Done()
			s.Revoked(ref)
		}()
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		ref := fmt.Sprintf("stub/%d", i)
		if !s.Revoked(ref) {
			t.Errorf("Revoked(%s) = false after Revoke", ref)
		}
	}
}
