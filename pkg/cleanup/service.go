// Package cleanup provides investigation history retention.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// HistoryPruner deletes history older than a cutoff. Implemented by
// *services.HistoryService.
type HistoryPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically deletes investigation runs past the retention
// period. Pruning is idempotent and safe to run from multiple replicas.
type Service struct {
	config  *config.RetentionConfig
	history HistoryPruner
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, history HistoryPruner) *Service {
	return &Service{
		config:  cfg,
		history: history,
		now:     time.Now,
	}
}

// Start launches the background cleanup loop. It does nothing when
// retention is unlimited.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil || s.config.RetentionDays <= 0 {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"retention_days", s.config.RetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.pruneHistory(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneHistory(ctx)
		}
	}
}

func (s *Service) pruneHistory(ctx context.Context) {
	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	count, err := s.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Retention: history pruning failed", "error", err)
		}
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old investigation runs", "count", count, "cutoff", cutoff)
	}
}
