package audit

import "testing"

func TestCalculateFingerprint(t *testing.T) {
	fp := CalculateFingerprint(StubFingerprintType, "super-secret")

	if fp == "super-secret" || fp == "" {
		t.Fatalf("fingerprint %q leaks or is empty", fp)
	}
	// deterministic, so audit entries for the same secret correlate
	if again := CalculateFingerprint(StubFingerprintType, "super-secret"); again != fp {
		t.Errorf("fingerprint not deterministic: %q != %q", again, fp)
	}
	if other := CalculateFingerprint(StubFingerprintType, "other-secret"); other == fp {
		t.Error("distinct secrets produced the same fingerprint")
	}
}

func TestCalculateFingerprintUnknownTypeFallsBack(t *testing.T) {
	if fp := CalculateFingerprint("no-such-source", "secret"); fp != "(n/a)" {
		t.Errorf("fingerprint = %q, want (n/a) fallback", fp)
	}
}
