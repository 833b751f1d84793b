package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/buildscout/pkg/database"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

// Paging bounds for history queries.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// InvestigationRecord is one persisted run.
type InvestigationRecord struct {
	ID           int64      `json:"id"`
	SessionID    string     `json:"session_id"`
	Run          int        `json:"run"`
	Prompt       string     `json:"prompt"`
	Request      string     `json:"request"`
	Profile      string     `json:"profile"`
	Status       string     `json:"status"`
	FinalText    string     `json:"final_text,omitempty"`
	Error        string     `json:"error,omitempty"`
	Turns        int        `json:"turns"`
	InputTokens  int        `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
	TotalTokens  int        `json:"total_tokens"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HistoryFilter narrows a history query. Zero values match everything.
type HistoryFilter struct {
	SessionID string
	Status    string
	Search    string // full-text match on request and final text
	Limit     int
	Offset    int
}

// HistoryService persists finished runs in PostgreSQL.
type HistoryService struct {
	db *sql.DB
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(client *database.Client) *HistoryService {
	return &HistoryService{db: client.DB()}
}

// Record stores the outcome of the session's current run. Recording the
// same run twice overwrites the earlier row.
func (s *HistoryService) Record(ctx context.Context, snap session.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investigations (
			session_id, run, prompt, request, profile, status, final_text, error,
			turns, input_tokens, output_tokens, total_tokens, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id, run) DO UPDATE SET
			status = EXCLUDED.status,
			final_text = EXCLUDED.final_text,
			error = EXCLUDED.error,
			turns = EXCLUDED.turns,
			input_tokens = EXCLUDED.input_tokens,
			output_tokens = EXCLUDED.output_tokens,
			total_tokens = EXCLUDED.total_tokens,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at`,
		snap.ID, snap.Run, snap.Prompt, snap.Request, snap.Profile, string(snap.Status),
		snap.FinalText, snap.Error, snap.Turns,
		snap.Tokens.InputTokens, snap.Tokens.OutputTokens, snap.Tokens.TotalTokens,
		snap.StartedAt, snap.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record investigation %s run %d: %w", snap.ID, snap.Run, err)
	}
	return nil
}

// List returns persisted runs, most recently completed first.
func (s *HistoryService) List(ctx context.Context, filter HistoryFilter) ([]InvestigationRecord, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.SessionID != "" {
		where = append(where, "session_id = "+arg(filter.SessionID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.Search != "" {
		where = append(where, "to_tsvector('english', request || ' ' || final_text) @@ plainto_tsquery('english', "+arg(filter.Search)+")")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, session_id, run, prompt, request, profile, status, final_text, error,
		turns, input_tokens, output_tokens, total_tokens, started_at, completed_at, created_at
		FROM investigations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY completed_at DESC NULLS LAST, id DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query investigations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []InvestigationRecord{}
	for rows.Next() {
		var (
			r                      InvestigationRecord
			startedAt, completedAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Run, &r.Prompt, &r.Request, &r.Profile, &r.Status,
			&r.FinalText, &r.Error, &r.Turns, &r.InputTokens, &r.OutputTokens, &r.TotalTokens,
			&startedAt, &completedAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan investigation: %w", err)
		}
		if startedAt.Valid {
			r.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			r.CompletedAt = &completedAt.Time
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate investigations: %w", err)
	}
	return records, nil
}

// DeleteOlderThan removes runs that completed before cutoff. Runs without a
// completion time age from their creation time.
func (s *HistoryService) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM investigations WHERE COALESCE(completed_at, created_at) < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete investigations older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted investigations: %w", err)
	}
	return n, nil
}
