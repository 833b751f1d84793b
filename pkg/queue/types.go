// Package queue runs investigation sessions on a bounded pool of workers.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/events"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

// Sentinel errors for queue operations.
var (
	// ErrQueueFull indicates the submission queue has no free slot.
	ErrQueueFull = errors.New("investigation queue is full")

	// ErrShuttingDown indicates the pool no longer accepts sessions.
	ErrShuttingDown = errors.New("worker pool is shutting down")
)

// SessionExecutor runs one run of a session.
//
// The executor owns everything between "running" and the terminal state:
// tool families, the controller run and teardown. The worker handles
// status transitions, events, metrics and history.
type SessionExecutor interface {
	Execute(ctx context.Context, s *session.Session) (*agent.ExecutionResult, error)
}

// StatusPublisher receives session.status events. Implemented by *events.Broker.
type StatusPublisher interface {
	Publish(ev events.Event) events.Event
}

// HistoryRecorder persists finished runs. Implemented by *services.HistoryService.
type HistoryRecorder interface {
	Record(ctx context.Context, snap session.Snapshot) error
}

// RunNotifier announces finished runs. Implemented by *slack.Service.
// Delivery failures are the notifier's concern and never fail a session.
type RunNotifier interface {
	NotifyRunFinished(ctx context.Context, snap session.Snapshot)
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy      bool           `json:"is_healthy"`
	ActiveWorkers  int            `json:"active_workers"`
	TotalWorkers   int            `json:"total_workers"`
	ActiveSessions int            `json:"active_sessions"`
	MaxConcurrent  int            `json:"max_concurrent"`
	QueueDepth     int            `json:"queue_depth"`
	QueueCapacity  int            `json:"queue_capacity"`
	WorkerStats    []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"` // "idle" or "working"
	CurrentSessionID  string    `json:"current_session_id,omitempty"`
	SessionsProcessed int       `json:"sessions_processed"`
	LastActivity      time.Time `json:"last_activity"`
}

// StatusEvent builds the session.status event for the session's current state.
func StatusEvent(s *session.Session) events.Event {
	snap := s.Snapshot()
	return events.Event{
		Type:      events.EventTypeSessionStatus,
		SessionID: snap.ID,
		Payload: events.SessionStatusPayload{
			Status:    string(snap.Status),
			Run:       snap.Run,
			FinalText: snap.FinalText,
			Error:     snap.Error,
			Turns:     snap.Turns,
		},
	}
}
