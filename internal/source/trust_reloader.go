package source

import (
	"context"
	"fmt"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/logging"
	"github.com/keylease/keylease/internal/verifier"
)

// TrustReloader re-reads the broker configuration file and rebuilds the
// verifier registry from its issuers section. A load or build failure
// keeps the previous registry serving, the same posture the policy syncer
// takes: a broken config edit never takes verification down.
type TrustReloader struct {
	configPath string
	trust      *verifier.Store
}

func NewTrustReloader(configPath string, trust *verifier.Store) *TrustReloader {
	return &TrustReloader{
		configPath: configPath,
		trust:      trust,
	}
}

// Reload runs one load-build-swap cycle. Shaped as a tasks.TaskFunc.
func (r *TrustReloader) Reload(ctx context.Context, logger logging.InternalLogger) error {
	cfg, err := config.Load(r.configPath)
	if err != nil {
		logger.Error("Config reload failed, keeping current trust config: %v", err)
		return fmt.Errorf("reloading config: %w", err)
	}

	reg, err := verifier.BuildRegistry(ctx, cfg.Issuers)
	if err != nil {
		logger.Error("Verifier rebuild failed, keeping current trust config: %v", err)
		return fmt.Errorf("rebuilding verifier registry: %w", err)
	}

	r.trust.Swap(reg)
	logger.Info("Trust config reloaded: %d issuer(s)", len(cfg.Issuers))
	return nil
}
