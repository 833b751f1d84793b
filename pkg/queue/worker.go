package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

const (
	// historyTimeout bounds the write of one history record.
	historyTimeout = 10 * time.Second
	// notifyTimeout bounds the delivery of one run notification.
	notifyTimeout = 15 * time.Second
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker takes sessions off the pool queue and runs them one at a time.
type Worker struct {
	id   string
	pool *WorkerPool

	// Health tracking
	mu                sync.RWMutex
	status            WorkerStatus
	currentSessionID  string
	sessionsProcessed int
	lastActivity      time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(id string, pool *WorkerPool) *Worker {
	return &Worker{
		id:           id,
		pool:         pool,
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            string(w.status),
		CurrentSessionID:  w.currentSessionID,
		SessionsProcessed: w.sessionsProcessed,
		LastActivity:      w.lastActivity,
	}
}

// run is the main worker loop. It returns when the queue is closed or ctx
// is done.
func (w *Worker) run(ctx context.Context) {
	log := slog.With("worker_id", w.id)
	log.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		case s, ok := <-w.pool.queue:
			if !ok {
				log.Info("Worker shutting down")
				return
			}
			if w.pool.isStopping() {
				w.pool.abandon(s)
				continue
			}
			w.process(ctx, s)
		}
	}
}

// process runs one session run and records its outcome.
func (w *Worker) process(ctx context.Context, s *session.Session) {
	p := w.pool
	log := slog.With("session_id", s.ID, "worker_id", w.id, "run", s.Run())

	timeout := p.config.SessionTimeout
	if timeout <= 0 {
		timeout = config.DefaultSessionTimeout
	}
	sessionCtx, cancelSession := context.WithTimeout(ctx, timeout)
	defer cancelSession()

	if !s.Start(cancelSession) {
		log.Info("Session canceled while queued, skipping")
		return
	}

	w.setStatus(WorkerStatusWorking, s.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	p.RegisterSession(s.ID, cancelSession)
	defer p.UnregisterSession(s.ID)

	log.Info("Session started")
	p.metrics.SessionStarted()
	p.publishStatus(s)

	result, err := p.sessionExecutor.Execute(sessionCtx, s)
	status := s.Finish(result, err)

	p.metrics.SessionFinished(string(status))
	p.publishStatus(s)
	if err != nil {
		log.Error("Session failed", "status", status, "error", err)
	} else {
		log.Info("Session processing complete", "status", status)
	}

	if p.history != nil {
		// The session ctx may be done; history is written regardless.
		hctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		if err := p.history.Record(hctx, s.Snapshot()); err != nil {
			log.Error("Failed to record investigation history", "error", err)
		}
		cancel()
	}

	if p.notifier != nil {
		nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		p.notifier.NotifyRunFinished(nctx, s.Snapshot())
		cancel()
	}

	w.mu.Lock()
	w.sessionsProcessed++
	w.mu.Unlock()
}

func (w *Worker) setStatus(status WorkerStatus, sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentSessionID = sessionID
	w.lastActivity = time.Now()
}
