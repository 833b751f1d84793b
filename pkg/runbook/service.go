// Package runbook resolves team troubleshooting guidance that is appended to
// the investigation system prompt.
package runbook

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// cacheSize bounds the number of cached runbook URLs.
const cacheSize = 16

// Service orchestrates runbook resolution and delivery.
type Service struct {
	github *GitHubClient
	cache  *expirable.LRU[string, string]
	cfg    *config.RunbookConfig
}

// NewService creates a new Service. It returns nil when no runbook is
// configured.
func NewService(cfg *config.RunbookConfig) *Service {
	if cfg == nil || (cfg.URL == "" && strings.TrimSpace(cfg.Content) == "") {
		return nil
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = config.DefaultRunbookCacheTTL
	}
	return &Service{
		github: NewGitHubClient(cfg.Token()),
		cache:  expirable.NewLRU[string, string](cacheSize, nil, ttl),
		cfg:    cfg,
	}
}

// Resolve returns the runbook content: the configured URL when set,
// otherwise the inline content.
//
// URL-based runbooks are fetched with caching. On fetch failure an error
// is returned and the caller applies its fail-open policy.
func (s *Service) Resolve(ctx context.Context) (string, error) {
	if s.cfg.URL == "" {
		return s.cfg.Content, nil
	}
	content, err := s.fetchWithCache(ctx, s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("fetch runbook %s: %w", s.cfg.URL, err)
	}
	return content, nil
}

func (s *Service) fetchWithCache(ctx context.Context, rawURL string) (string, error) {
	if err := ValidateRunbookURL(rawURL, s.cfg.AllowedDomains); err != nil {
		return "", err
	}

	key := ConvertToRawURL(rawURL)
	if content, ok := s.cache.Get(key); ok {
		return content, nil
	}

	content, err := s.github.DownloadContent(ctx, rawURL)
	if err != nil {
		return "", err
	}
	s.cache.Add(key, content)
	return content, nil
}

// AppendToPrompt returns the system prompt followed by the runbook under a
// heading. Blank runbooks leave the prompt unchanged.
func AppendToPrompt(systemPrompt, runbook string) string {
	runbook = strings.TrimSpace(runbook)
	if runbook == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\n## Team runbook\n\n" + runbook
}
