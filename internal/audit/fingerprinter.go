package audit

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/keylease/keylease/internal/core"
)

const (
	DefaultFingerprintType  = "default"
	StubFingerprintType     = "stub"
	GCPKeyFingerprintType   = "gcp-key"
	GCPTokenFingerprintType = "gcp-token"
)

var fingerprintRegistry = map[string]core.Fingerprinter{
	DefaultFingerprintType: func(_ string) string {
		return "(n/a)"
	},
}

func RegisterFingerprinter(sourceType string, fn core.Fingerprinter) {
	fingerprintRegistry[sourceType] = fn
}

// CalculateFingerprint derives a non-reversible identifier for a secret
// so audit entries can be correlated without ever logging the material.
func CalculateFingerprint(sourceType, secret string) string {
	fn, ok := fingerprintRegistry[sourceType]
	if !ok {
		fn = fingerprintRegistry[DefaultFingerprintType]
	}
	return fn(secret)
}

func RegisteredFingerprinterTypes() []string {
	types := make([]string, 0, len(fingerprintRegistry))
	for k := range fingerprintRegistry {
		types = append(types, k)
	}
	return types
}

func init() {
	RegisterFingerprinter(StubFingerprintType, sha256Fingerprint)
	RegisterFingerprinter(GCPKeyFingerprintType, sha256Fingerprint)
	RegisterFingerprinter(GCPTokenFingerprintType, sha256Fingerprint)
}

func sha256Fingerprint(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(hash[:])
}
