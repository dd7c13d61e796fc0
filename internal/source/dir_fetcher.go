package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/logging"
)

// DirFetcher reads policy documents from a local directory. Useful for
// development and for deployments that sync policies out-of-band.
type DirFetcher struct {
	cfg config.DirSourceConfig
}

func NewDirFetcher(cfg config.DirSourceConfig) (*DirFetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dir source config: %w", err)
	}
	return &DirFetcher{cfg: cfg}, nil
}

func (f *DirFetcher) Fetch(_ context.Context, logger logging.InternalLogger) (*config.PolicyDocument, error) {
	entries, err := os.ReadDir(f.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("reading policy dir: %w", err)
	}

	var targetFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			targetFiles = append(targetFiles, filepath.Join(f.cfg.Path, name))
		}
	}
	if len(targetFiles) == 0 {
		return nil, fmt.Errorf("no policy files found in '%s'", f.cfg.Path)
	}
	slices.Sort(targetFiles)

	var doc config.PolicyDocument
	for _, path := range targetFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var partial config.PolicyDocument
		if err := yaml.Unmarshal(data, &partial); err != nil {
			logger.Error("Failed to parse YAML in %s: %v", path, err)
			return nil, fmt.Errorf("syntax error in %s: %w", path, err)
		}
		doc.Bindings = append(doc.Bindings, partial.Bindings...)
		doc.Policies = append(doc.Policies, partial.Policies...)
		doc.Roles = append(doc.Roles, partial.Roles...)
	}

	logger.Info("Loaded %d binding(s), %d policy(ies), %d role(s) from %s",
		len(doc.Bindings), len(doc.Policies), len(doc.Roles), f.cfg.Path)
	return &doc, nil
}
