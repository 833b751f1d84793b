package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/metrics"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

// WorkerPool manages a pool of queue workers. At most
// MaxConcurrentSessions sessions run at once; up to QueueSize more wait.
type WorkerPool struct {
	config          *config.AgentConfig
	sessionExecutor SessionExecutor
	publisher       StatusPublisher
	history         HistoryRecorder
	notifier        RunNotifier
	metrics         *metrics.Metrics

	queue   chan *session.Session
	workers []*Worker
	group   *errgroup.Group

	// Session cancel registry: session_id → cancel function
	activeSessions map[string]context.CancelFunc
	mu             sync.RWMutex
	started        bool
	stopping       bool
	stopOnce       sync.Once
}

// PoolOption configures a WorkerPool.
type PoolOption func(*WorkerPool)

// WithPublisher publishes session.status events on every transition.
func WithPublisher(p StatusPublisher) PoolOption {
	return func(wp *WorkerPool) { wp.publisher = p }
}

// WithHistory records every finished run.
func WithHistory(h HistoryRecorder) PoolOption {
	return func(wp *WorkerPool) { wp.history = h }
}

// WithNotifier announces every finished run.
func WithNotifier(n RunNotifier) PoolOption {
	return func(wp *WorkerPool) { wp.notifier = n }
}

// WithMetrics enables session metrics.
func WithMetrics(m *metrics.Metrics) PoolOption {
	return func(wp *WorkerPool) { wp.metrics = m }
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(cfg *config.AgentConfig, executor SessionExecutor, opts ...PoolOption) *WorkerPool {
	workers := cfg.MaxConcurrentSessions
	if workers <= 0 {
		workers = config.DefaultMaxConcurrentSessions
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = config.DefaultQueueSize
	}
	p := &WorkerPool{
		config:          cfg,
		sessionExecutor: executor,
		queue:           make(chan *session.Session, queueSize),
		workers:         make([]*Worker, 0, workers),
		activeSessions:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start spawns the worker goroutines.
// It is safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	workerCount := cap(p.workers)
	slog.Info("Starting worker pool", "worker_count", workerCount, "queue_size", cap(p.queue))

	group, gctx := errgroup.WithContext(ctx)
	p.group = group
	for i := 0; i < workerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p)
		p.workers = append(p.workers, worker)
		group.Go(func() error {
			worker.run(gctx)
			return nil
		})
	}

	slog.Info("Worker pool started")
}

// Submit queues a pending session. It never blocks: a full queue returns
// ErrQueueFull.
func (p *WorkerPool) Submit(s *session.Session) error {
	// Sends happen under the write lock so the length check below
	// guarantees the send cannot block.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopping {
		return ErrShuttingDown
	}
	if len(p.queue) >= cap(p.queue) {
		return ErrQueueFull
	}
	p.publishStatus(s)
	p.queue <- s
	slog.Debug("Session queued", "session_id", s.ID, "run", s.Run(), "queue_depth", len(p.queue))
	return nil
}

// Stop stops accepting sessions and waits for the workers to exit.
// Running sessions finish first (graceful shutdown); sessions still queued
// are canceled.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		slog.Info("Stopping worker pool gracefully")

		p.mu.Lock()
		p.stopping = true
		close(p.queue)
		group := p.group
		p.mu.Unlock()

		if active := p.getActiveSessionIDs(); len(active) > 0 {
			slog.Info("Waiting for active sessions to complete",
				"count", len(active),
				"session_ids", active)
		}

		if group != nil {
			_ = group.Wait()
		}
		// Without workers nothing drained the queue.
		for s := range p.queue {
			p.abandon(s)
		}

		slog.Info("Worker pool stopped gracefully")
	})
}

// RegisterSession stores a cancel function for a running session.
func (p *WorkerPool) RegisterSession(sessionID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeSessions[sessionID] = cancel
}

// UnregisterSession removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterSession(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeSessions, sessionID)
}

// CancelSession triggers context cancellation for a running session.
// Returns true if the session was found and cancelled.
func (p *WorkerPool) CancelSession(sessionID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeSessions[sessionID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	p.mu.RLock()
	workers := append([]*Worker(nil), p.workers...)
	activeSessions := len(p.activeSessions)
	stopping := p.stopping
	p.mu.RUnlock()

	workerStats := make([]WorkerHealth, len(workers))
	activeWorkers := 0
	for i, worker := range workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	return &PoolHealth{
		IsHealthy:      len(workers) > 0 && !stopping,
		ActiveWorkers:  activeWorkers,
		TotalWorkers:   len(workers),
		ActiveSessions: activeSessions,
		MaxConcurrent:  cap(p.workers),
		QueueDepth:     len(p.queue),
		QueueCapacity:  cap(p.queue),
		WorkerStats:    workerStats,
	}
}

func (p *WorkerPool) isStopping() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopping
}

// abandon cancels a session that was still queued at shutdown.
func (p *WorkerPool) abandon(s *session.Session) {
	if err := s.Cancel(); err != nil {
		return
	}
	slog.Info("Canceled queued session at shutdown", "session_id", s.ID)
	p.publishStatus(s)
}

func (p *WorkerPool) publishStatus(s *session.Session) {
	if p.publisher == nil {
		return
	}
	p.publisher.Publish(StatusEvent(s))
}

// getActiveSessionIDs returns IDs of currently processing sessions (for logging).
func (p *WorkerPool) getActiveSessionIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sessions := make([]string, 0, len(p.activeSessions))
	for id := range p.activeSessions {
		sessions = append(sessions, id)
	}
	return sessions
}
