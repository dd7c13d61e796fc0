package source

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/go-github/v80/github"

	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/logging"
)

// GitHubFetcher reads policy documents from a git repository, so policy
// changes flow through normal code review instead of server edits.
type GitHubFetcher struct {
	cfg config.GitHubSourceConfig
}

func NewGitHubFetcher(cfg config.GitHubSourceConfig) (*GitHubFetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid GitHub source config: %w", err)
	}
	return &GitHubFetcher{cfg: cfg}, nil
}

func (f *GitHubFetcher) Fetch(ctx context.Context, logger logging.InternalLogger) (*config.PolicyDocument, error) {
	logger.Info("Starting GitHub policy sync for repo %s/%s (ref: %s)", f.cfg.Owner, f.cfg.Repo, f.cfg.Ref)

	gh, err := f.client()
	if err != nil {
		return nil, err
	}

	ref := f.cfg.Ref
	if ref == "" {
		ref = "main"
	}

	tree, _, err := gh.Git.GetTree(ctx, f.cfg.Owner, f.cfg.Repo, ref, true)
	if err != nil {
		return nil, fmt.Errorf("get tree failed: %w", err)
	}

	var targetFiles []string
	for _, entry := range tree.Entries {
		path := entry.GetPath()

		if entry.GetType() != "blob" {
			continue
		}
		if f.cfg.Path != "" && !strings.HasPrefix(path, f.cfg.Path) {
			continue
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			targetFiles = append(targetFiles, path)
		}
	}
	if len(targetFiles) == 0 {
		logger.Warn("No policy files found in %s @ %s", f.cfg.Path, ref)
		return nil, fmt.Errorf("no policy files found in %s/%s path '%s'", f.cfg.Owner, f.cfg.Repo, f.cfg.Path)
	}

	// file order decides binding order, so keep it stable
	slices.Sort(targetFiles)

	var doc config.PolicyDocument
	for i, path := range targetFiles {
		logger.Info("Downloading %d/%d: %s", i+1, len(targetFiles), path)

		fileContent, _, _, err := gh.Repositories.GetContents(ctx, f.cfg.Owner, f.cfg.Repo, path, &github.RepositoryContentGetOptions{
			Ref: ref,
		})
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", path, err)
		}

		content, err := fileContent.GetContent()
		if err != nil {
			return nil, fmt.Errorf("decode content %s: %w", path, err)
		}

		var partial config.PolicyDocument
		if err := yaml.Unmarshal([]byte(content), &partial); err != nil {
			logger.Error("Failed to parse YAML in %s: %v", path, err)
			return nil, fmt.Errorf("syntax error in %s: %w", path, err)
		}

		doc.Bindings = append(doc.Bindings, partial.Bindings...)
		doc.Policies = append(doc.Policies, partial.Policies...)
		doc.Roles = append(doc.Roles, partial.Roles...)
	}

	logger.Info("Fetch complete: %d binding(s), %d policy(ies), %d role(s)",
		len(doc.Bindings), len(doc.Policies), len(doc.Roles))
	return &doc, nil
}

func (f *GitHubFetcher) client() (*github.Client, error) {
	gh := github.NewClient(nil).WithAuthToken(f.cfg.Token)
	if f.cfg.ServerURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(f.cfg.ServerURL, f.cfg.ServerURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise server URL: %w", err)
		}
	}
	return gh, nil
}
