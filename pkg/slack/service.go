// Package slack announces finished investigation runs in a Slack channel.
package slack

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

const (
	postTimeout = 10 * time.Second

	// Thread timestamps of first-run messages are kept for follow-ups.
	threadCacheSize = 1024
	threadCacheTTL  = 24 * time.Hour
)

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client  *Client
	baseURL string
	threads *expirable.LRU[string, string]
	logger  *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil when notifications are disabled or the token is not set.
func NewService(cfg *config.SlackConfig) *Service {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	token := cfg.Token()
	if token == "" || cfg.Channel == "" {
		slog.Warn("Slack notifications enabled but token or channel missing, disabling",
			"token_env", cfg.TokenEnv, "channel", cfg.Channel)
		return nil
	}
	return NewServiceWithClient(NewClient(token, cfg.Channel), cfg.BaseURL)
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, baseURL string) *Service {
	return &Service{
		client:  client,
		baseURL: baseURL,
		threads: expirable.NewLRU[string, string](threadCacheSize, nil, threadCacheTTL),
		logger:  slog.Default().With("component", "slack-service"),
	}
}

// NotifyRunFinished posts the outcome of the session's current run. The
// first run opens a thread; follow-up runs reply in it.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyRunFinished(ctx context.Context, snap session.Snapshot) {
	if s == nil {
		return
	}

	threadTS := ""
	if snap.Run > 1 {
		threadTS = s.resolveThread(ctx, snap.ID)
	}

	ts, err := s.client.PostMessage(ctx, FallbackText(snap), BuildRunMessage(snap, s.baseURL), threadTS, postTimeout)
	if err != nil {
		s.logger.Error("Failed to send Slack notification",
			"session_id", snap.ID,
			"run", snap.Run,
			"status", snap.Status,
			"error", err)
		return
	}
	if threadTS == "" {
		s.threads.Add(snap.ID, ts)
	}
}

// resolveThread returns the timestamp of the session's first message,
// searching channel history when the cache no longer holds it.
func (s *Service) resolveThread(ctx context.Context, sessionID string) string {
	if ts, ok := s.threads.Get(sessionID); ok {
		return ts
	}
	ts, err := s.client.FindMessageByFingerprint(ctx, sessionFingerprint(sessionID))
	if err != nil {
		s.logger.Warn("Failed to find Slack thread for session",
			"session_id", sessionID,
			"error", err)
		return ""
	}
	if ts != "" {
		s.threads.Add(sessionID, ts)
	}
	return ts
}
