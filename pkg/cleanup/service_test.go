package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/buildscout/pkg/config"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 1, f.err
}

func (f *fakePruner) calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.cutoffs...)
}

func TestService_PrunesImmediatelyAndOnInterval(t *testing.T) {
	pruner := &fakePruner{}
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	svc := NewService(&config.RetentionConfig{RetentionDays: 30, CleanupInterval: 20 * time.Millisecond}, pruner)
	svc.now = func() time.Time { return now }

	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool { return len(pruner.calls()) >= 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), pruner.calls()[0])
}

func TestService_UnlimitedRetentionDoesNotStart(t *testing.T) {
	pruner := &fakePruner{}
	svc := NewService(&config.RetentionConfig{RetentionDays: 0, CleanupInterval: time.Millisecond}, pruner)

	svc.Start(context.Background())
	svc.Stop()

	assert.Empty(t, pruner.calls())
}

func TestService_ErrorsKeepLoopRunning(t *testing.T) {
	pruner := &fakePruner{err: errors.New("connection refused")}
	svc := NewService(&config.RetentionConfig{RetentionDays: 1, CleanupInterval: 10 * time.Millisecond}, pruner)

	svc.Start(context.Background())
	require.Eventually(t, func() bool { return len(pruner.calls()) >= 3 }, 2*time.Second, 10*time.Millisecond)
	svc.Stop()

	n := len(pruner.calls())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(pruner.calls()), "no pruning after Stop")
}

func TestService_StopWithoutStart(t *testing.T) {
	svc := NewService(&config.RetentionConfig{RetentionDays: 1, CleanupInterval: time.Hour}, &fakePruner{})
	svc.Stop()
}
