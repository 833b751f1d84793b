package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

// SessionStatus represents the current state of a session
type SessionStatus string

const (
	StatusPending          SessionStatus = "pending"
	StatusRunning          SessionStatus = "running"
	StatusCompleted        SessionStatus = "completed"
	StatusCanceled         SessionStatus = "canceled"
	StatusTurnLimitReached SessionStatus = "turn_limit_reached"
	StatusFailed           SessionStatus = "failed"
	StatusTimedOut         SessionStatus = "timed_out"
)

// IsActive reports whether a run is queued or executing.
func (s SessionStatus) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// StatusFromResult maps a controller outcome onto a session status.
func StatusFromResult(result *agent.ExecutionResult, err error) SessionStatus {
	if err != nil || result == nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StatusTimedOut
		}
		return StatusFailed
	}
	switch result.Status {
	case agent.LoopStateCompleted:
		return StatusCompleted
	case agent.LoopStateCanceled:
		return StatusCanceled
	case agent.LoopStateTurnLimitReached:
		return StatusTurnLimitReached
	default:
		return StatusFailed
	}
}

// Session is one investigation and its follow-up runs.
type Session struct {
	ID       string
	Prompt   string // the prompt of the first run
	Profile  string
	MaxTurns int

	mu          sync.RWMutex
	status      SessionStatus
	run         int
	request     string // the user's prompt for the current run
	runPrompt   string // the prompt sent to the model for the current run
	createdAt   time.Time
	updatedAt   time.Time
	startedAt   time.Time
	completedAt time.Time
	finalText   string
	errMsg      string
	turns       int
	tokens      agent.TokenUsage
	lastFinal   string // final text of the last completed run, feeds follow-ups
	cancelFunc  context.CancelFunc
}

// Snapshot is a point-in-time copy of a session, safe to serialize.
type Snapshot struct {
	ID          string           `json:"id"`
	Prompt      string           `json:"prompt"`
	Profile     string           `json:"profile"`
	MaxTurns    int              `json:"max_turns"`
	Status      SessionStatus    `json:"status"`
	Run         int              `json:"run"`
	Request     string           `json:"request"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	FinalText   string           `json:"final_text,omitempty"`
	Error       string           `json:"error,omitempty"`
	Turns       int              `json:"turns"`
	Tokens      agent.TokenUsage `json:"tokens"`
}

// Status returns the current status (thread-safe)
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Run returns the 1-based number of the current run (thread-safe)
func (s *Session) Run() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run
}

// RunPrompt returns the prompt the current run sends to the model.
func (s *Session) RunPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runPrompt
}

// Start moves a pending session to running and stores the function that
// aborts the run. It returns false if the session was canceled while queued.
func (s *Session) Start(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPending {
		return false
	}
	now := time.Now()
	s.status = StatusRunning
	s.startedAt = now
	s.updatedAt = now
	s.cancelFunc = cancel
	return true
}

// Finish records the outcome of the current run. Follow-ups see the final
// text of the last run that produced one.
func (s *Session) Finish(result *agent.ExecutionResult, err error) SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.status = StatusFromResult(result, err)
	s.completedAt = now
	s.updatedAt = now
	s.cancelFunc = nil
	s.errMsg = ""
	s.finalText = ""
	if err != nil {
		s.errMsg = err.Error()
	}
	if result != nil {
		s.finalText = result.FinalText
		s.turns = result.Turns
		s.tokens.Add(result.TokensUsed)
		if s.status == StatusCompleted && result.FinalText != "" {
			s.lastFinal = result.FinalText
		}
	}
	return s.status
}

// Cancel aborts a queued or running session (thread-safe).
// A queued session is marked canceled immediately; a running one is
// marked when the controller returns.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusPending:
		now := time.Now()
		s.status = StatusCanceled
		s.finalText = agent.CanceledText
		s.completedAt = now
		s.updatedAt = now
		return nil
	case StatusRunning:
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
		s.updatedAt = time.Now()
		return nil
	default:
		return ErrNotCancellable
	}
}

// followUp queues another run whose prompt carries the last findings.
func (s *Session) followUp(prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsActive() {
		return ErrSessionActive
	}
	s.run++
	s.request = prompt
	s.runPrompt = FollowUpPrompt(s.lastFinal, prompt)
	s.status = StatusPending
	s.startedAt = time.Time{}
	s.completedAt = time.Time{}
	s.finalText = ""
	s.errMsg = ""
	s.updatedAt = time.Now()
	return nil
}

// FollowUpPrompt builds the user prompt of a follow-up run.
func FollowUpPrompt(previous, prompt string) string {
	previous = strings.TrimSpace(previous)
	if previous == "" {
		return prompt
	}
	var b strings.Builder
	b.WriteString("Previous findings:\n")
	b.WriteString(previous)
	b.WriteString("\n\nFollow-up request:\n")
	b.WriteString(prompt)
	return b.String()
}

// Snapshot creates a safe copy of the session for reading
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:        s.ID,
		Prompt:    s.Prompt,
		Profile:   s.Profile,
		MaxTurns:  s.MaxTurns,
		Status:    s.status,
		Run:       s.run,
		Request:   s.request,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
		FinalText: s.finalText,
		Error:     s.errMsg,
		Turns:     s.turns,
		Tokens:    s.tokens,
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if !s.completedAt.IsZero() {
		t := s.completedAt
		snap.CompletedAt = &t
	}
	return snap
}
