package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/database"
	"github.com/codeready-toolchain/buildscout/pkg/session"
	"github.com/codeready-toolchain/buildscout/test/util"
)

func newTestHistoryService(t *testing.T) *HistoryService {
	db := util.SetupTestDatabase(t)
	require.NoError(t, database.Migrate(db, util.TestDatabaseName))
	return NewHistoryService(database.NewClientFromDB(db))
}

func finishedSnapshot(t *testing.T, m *session.Manager, prompt, final string) *session.Session {
	t.Helper()
	s := m.Create(session.CreateRequest{Prompt: prompt, Profile: "base"})
	require.True(t, s.Start(func() {}))
	s.Finish(&agent.ExecutionResult{
		Status:     agent.LoopStateCompleted,
		FinalText:  final,
		Turns:      3,
		TokensUsed: agent.TokenUsage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
	}, nil)
	return s
}

func TestHistoryService_RecordAndList(t *testing.T) {
	svc := newTestHistoryService(t)
	ctx := context.Background()
	m := session.NewManager()

	a := finishedSnapshot(t, m, "why did build 42 fail?", "The integration stage timed out.")
	require.NoError(t, svc.Record(ctx, a.Snapshot()))
	time.Sleep(10 * time.Millisecond)
	b := finishedSnapshot(t, m, "check release pipeline", "Signing certificate expired.")
	require.NoError(t, svc.Record(ctx, b.Snapshot()))

	records, err := svc.List(ctx, HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, b.ID, records[0].SessionID, "most recent first")
	assert.Equal(t, 1, records[0].Run)
	assert.Equal(t, "completed", records[0].Status)
	assert.Equal(t, 3, records[0].Turns)
	assert.Equal(t, 120, records[0].TotalTokens)
	assert.NotNil(t, records[0].StartedAt)
	assert.NotNil(t, records[0].CompletedAt)

	bySession, err := svc.List(ctx, HistoryFilter{SessionID: a.ID})
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, "why did build 42 fail?", bySession[0].Request)

	search, err := svc.List(ctx, HistoryFilter{Search: "certificate"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, b.ID, search[0].SessionID)

	paged, err := svc.List(ctx, HistoryFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, a.ID, paged[0].SessionID)

	none, err := svc.List(ctx, HistoryFilter{Status: "failed"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryService_RecordIsIdempotentPerRun(t *testing.T) {
	svc := newTestHistoryService(t)
	ctx := context.Background()
	m := session.NewManager()

	s := finishedSnapshot(t, m, "p", "first")
	snap := s.Snapshot()
	require.NoError(t, svc.Record(ctx, snap))
	snap.FinalText = "updated"
	require.NoError(t, svc.Record(ctx, snap))

	_, err := m.FollowUp(s.ID, "more")
	require.NoError(t, err)
	require.True(t, s.Start(func() {}))
	s.Finish(&agent.ExecutionResult{Status: agent.LoopStateTurnLimitReached, FinalText: agent.MaxTurnsText}, nil)
	require.NoError(t, svc.Record(ctx, s.Snapshot()))

	records, err := svc.List(ctx, HistoryFilter{SessionID: s.ID})
	require.NoError(t, err)
	require.Len(t, records, 2)
	byRun := map[int]InvestigationRecord{}
	for _, r := range records {
		byRun[r.Run] = r
	}
	assert.Equal(t, "updated", byRun[1].FinalText)
	assert.Equal(t, "turn_limit_reached", byRun[2].Status)
	assert.Equal(t, "more", byRun[2].Request)
}

func TestHistoryService_DeleteOlderThan(t *testing.T) {
	svc := newTestHistoryService(t)
	ctx := context.Background()
	m := session.NewManager()

	old := finishedSnapshot(t, m, "last year's failure", "Flaky agent.")
	require.NoError(t, svc.Record(ctx, old.Snapshot()))
	recent := finishedSnapshot(t, m, "today's failure", "Missing secret.")
	require.NoError(t, svc.Record(ctx, recent.Snapshot()))

	_, err := svc.db.ExecContext(ctx,
		`UPDATE investigations SET completed_at = $1 WHERE session_id = $2`,
		time.Now().Add(-400*24*time.Hour), old.ID)
	require.NoError(t, err)

	deleted, err := svc.DeleteOlderThan(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	records, err := svc.List(ctx, HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, recent.ID, records[0].SessionID)

	deleted, err = svc.DeleteOlderThan(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted, "pruning is idempotent")
}
