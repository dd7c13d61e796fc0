package source

import (
	"context"
	"fmt"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/logging"
	"github.com/keylease/keylease/internal/policy"
	"github.com/keylease/keylease/internal/validation"
	"github.com/keylease/keylease/internal/verifier"
)

// Syncer fetches the policy document, validates it and swaps it into the
// store. A fetch or validation failure leaves the previous snapshot
// serving; a broken policy push never takes the broker down.
// Issuer names are read off the trust store at sync time so bindings are
// validated against the reloaded trust config, not the startup one.
type Syncer struct {
	fetcher Fetcher
	store   *policy.Store
	trust   *verifier.Store

	knownSources map[string]struct{}
}

func NewSyncer(fetcher Fetcher, store *policy.Store, trust *verifier.Store, knownSources map[string]struct{}) *Syncer {
	return &Syncer{
		fetcher:      fetcher,
		store:        store,
		trust:        trust,
		knownSources: knownSources,
	}
}

// Sync runs one fetch-validate-swap cycle. Shaped as a tasks.TaskFunc.
func (s *Syncer) Sync(ctx context.Context, logger logging.InternalLogger) error {
	doc, err := s.fetcher.Fetch(ctx, logger)
	if err != nil {
		logger.Error("Policy fetch failed, keeping current snapshot: %v", err)
		return fmt.Errorf("fetching policy document: %w", err)
	}

	knownIssuers := make(map[string]struct{})
	for _, name := range s.trust.Current().Names() {
		knownIssuers[name] = struct{}{}
	}

	set, err := validation.ValidatePolicySet(
		doc.Bindings, doc.Policies, doc.Roles, knownIssuers, s.knownSources)
	if err != nil {
		logger.Error("Policy validation failed, keeping current snapshot: %v", err)
		return fmt.Errorf("validating policy document: %w", err)
	}

	s.store.Swap(policy.NewSnapshot(set))
	logger.Info("Policy snapshot swapped: %d binding(s), %d policy(ies), %d role(s)",
		len(set.Bindings), len(set.Policies), len(set.Roles))
	return nil
}

// BuildFetcher constructs the configured fetcher.
func BuildFetcher(cfg *config.PolicySource) (Fetcher, error) {
	switch {
	case cfg.GitHub != nil:
		return NewGitHubFetcher(*cfg.GitHub)
	case cfg.Dir != nil:
		return NewDirFetcher(*cfg.Dir)
	default:
		return nil, fmt.Errorf("no policy source configured")
	}
}
