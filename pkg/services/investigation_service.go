package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/queue"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

// maxTurnsLimit caps the per-request max_turns override.
const maxTurnsLimit = 200

// Submitter queues a pending session. Implemented by *queue.WorkerPool.
type Submitter interface {
	Submit(s *session.Session) error
}

// CreateInvestigationRequest starts a new investigation.
type CreateInvestigationRequest struct {
	Prompt   string
	Profile  string
	MaxTurns int
}

// InvestigationService manages the investigation session lifecycle.
type InvestigationService struct {
	cfg       *config.Config
	sessions  *session.Manager
	pool      Submitter
	publisher queue.StatusPublisher
}

// NewInvestigationService creates a new InvestigationService.
// publisher may be nil (events disabled).
func NewInvestigationService(cfg *config.Config, sessions *session.Manager, pool Submitter, publisher queue.StatusPublisher) *InvestigationService {
	return &InvestigationService{
		cfg:       cfg,
		sessions:  sessions,
		pool:      pool,
		publisher: publisher,
	}
}

// Create validates the request, registers a session and queues its first run.
func (s *InvestigationService) Create(req CreateInvestigationRequest) (session.Snapshot, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return session.Snapshot{}, NewValidationError("prompt", "required")
	}
	if req.MaxTurns < 0 || req.MaxTurns > maxTurnsLimit {
		return session.Snapshot{}, NewValidationError("max_turns", fmt.Sprintf("must be between 0 and %d", maxTurnsLimit))
	}
	profile := req.Profile
	if profile == "" {
		profile = s.cfg.Agent.DefaultProfile
	}
	if _, err := s.cfg.GetProfile(profile); err != nil {
		return session.Snapshot{}, NewValidationError("profile", fmt.Sprintf("unknown profile %q", profile))
	}

	sess := s.sessions.Create(session.CreateRequest{
		Prompt:   prompt,
		Profile:  profile,
		MaxTurns: req.MaxTurns,
	})
	if err := s.pool.Submit(sess); err != nil {
		_ = sess.Cancel()
		_ = s.sessions.Delete(sess.ID)
		return session.Snapshot{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	slog.Info("Investigation submitted", "session_id", sess.ID, "profile", profile)
	return sess.Snapshot(), nil
}

// Get returns the current state of a session.
func (s *InvestigationService) Get(sessionID string) (session.Snapshot, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return session.Snapshot{}, mapSessionError(err)
	}
	return sess.Snapshot(), nil
}

// Exists reports whether the session is known.
func (s *InvestigationService) Exists(sessionID string) bool {
	_, err := s.sessions.Get(sessionID)
	return err == nil
}

// List returns all sessions, newest first.
func (s *InvestigationService) List() []session.Snapshot {
	return s.sessions.List()
}

// Cancel aborts the session's queued or running run. A queued run is
// reported as canceled right away; a running one once the loop stops.
func (s *InvestigationService) Cancel(sessionID string) (session.Snapshot, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return session.Snapshot{}, mapSessionError(err)
	}
	wasPending := sess.Status() == session.StatusPending
	if err := sess.Cancel(); err != nil {
		return session.Snapshot{}, mapSessionError(err)
	}
	if wasPending && sess.Status() == session.StatusCanceled && s.publisher != nil {
		s.publisher.Publish(queue.StatusEvent(sess))
	}
	slog.Info("Investigation cancel requested", "session_id", sessionID)
	return sess.Snapshot(), nil
}

// FollowUp queues another run of a finished session. The run's prompt
// carries the session's last findings.
func (s *InvestigationService) FollowUp(sessionID, prompt string) (session.Snapshot, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return session.Snapshot{}, NewValidationError("prompt", "required")
	}
	sess, err := s.sessions.FollowUp(sessionID, prompt)
	if err != nil {
		return session.Snapshot{}, mapSessionError(err)
	}
	if err := s.pool.Submit(sess); err != nil {
		_ = sess.Cancel()
		return session.Snapshot{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	slog.Info("Follow-up submitted", "session_id", sessionID, "run", sess.Run())
	return sess.Snapshot(), nil
}

func mapSessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, session.ErrNotCancellable), errors.Is(err, session.ErrSessionActive):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}
