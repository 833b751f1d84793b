// Package session keeps investigation sessions in memory. Each session
// owns its follow-up state; nothing is shared between sessions.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")

	// ErrNotCancellable is returned when canceling a session that already finished.
	ErrNotCancellable = errors.New("session is not cancellable")

	// ErrSessionActive is returned when a follow-up is requested while a run
	// is still queued or executing.
	ErrSessionActive = errors.New("session has an active run")
)

// CreateRequest describes a new investigation.
type CreateRequest struct {
	Prompt   string
	Profile  string
	MaxTurns int
}

// Manager manages sessions in memory
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates a new session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Create registers a pending session for its first run.
func (m *Manager) Create(req CreateRequest) *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		Prompt:    req.Prompt,
		Profile:   req.Profile,
		MaxTurns:  req.MaxTurns,
		status:    StatusPending,
		run:       1,
		request:   req.Prompt,
		runPrompt: req.Prompt,
		createdAt: now,
		updatedAt: now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	return session
}

// Get retrieves a session by ID
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return session, nil
}

// List returns snapshots of all sessions, newest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	sessions := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions
}

// Cancel aborts the session's queued or running run.
func (m *Manager) Cancel(sessionID string) error {
	session, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return session.Cancel()
}

// FollowUp queues another run of a finished session.
func (m *Manager) FollowUp(sessionID, prompt string) (*Session, error) {
	session, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.followUp(prompt); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes a session that has no active run.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if session.Status().IsActive() {
		return ErrSessionActive
	}
	delete(m.sessions, sessionID)
	return nil
}

// ActiveCount returns the number of queued or running sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.sessions {
		if s.Status().IsActive() {
			n++
		}
	}
	return n
}
