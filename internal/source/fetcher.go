package source

import (
	"context"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/logging"
)

// Fetcher retrieves the reloadable policy document (bindings, policies,
// roles) from an external source.
type Fetcher interface {
	Fetch(ctx context.Context, log logging.InternalLogger) (*config.PolicyDocument, error)
}
