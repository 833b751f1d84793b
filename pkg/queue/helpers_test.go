package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/events"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

// mockExecutor runs fn for every session, or blocks until ctx is done when
// fn is nil.
type mockExecutor struct {
	fn func(ctx context.Context, s *session.Session) (*agent.ExecutionResult, error)

	mu       sync.Mutex
	executed []string
	started  chan string
}

func (m *mockExecutor) Execute(ctx context.Context, s *session.Session) (*agent.ExecutionResult, error) {
	m.mu.Lock()
	m.executed = append(m.executed, s.ID)
	m.mu.Unlock()
	if m.started != nil {
		m.started <- s.ID
	}
	if m.fn != nil {
		return m.fn(ctx, s)
	}
	<-ctx.Done()
	return &agent.ExecutionResult{Status: agent.LoopStateCanceled, FinalText: agent.CanceledText}, nil
}

func (m *mockExecutor) executedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executed...)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(ev events.Event) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return ev
}

// statuses returns the session.status values published for a session.
func (r *recordingPublisher) statuses(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.SessionID != sessionID || ev.Type != events.EventTypeSessionStatus {
			continue
		}
		out = append(out, ev.Payload.(events.SessionStatusPayload).Status)
	}
	return out
}

// recordingHistory captures recorded snapshots.
type recordingHistory struct {
	mu    sync.Mutex
	snaps []session.Snapshot
	err   error
}

func (r *recordingHistory) Record(_ context.Context, snap session.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return r.err
}

func (r *recordingHistory) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

type recordingNotifier struct {
	mu    sync.Mutex
	snaps []session.Snapshot
}

func (r *recordingNotifier) NotifyRunFinished(_ context.Context, snap session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

// scriptedLLM replays a fixed list of responses.
type scriptedLLM struct {
	mu        sync.Mutex
	responses [][]agent.Chunk
	calls     int
	inputs    []*agent.GenerateInput
}

func (s *scriptedLLM) Generate(_ context.Context, input *agent.GenerateInput) (<-chan agent.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	s.inputs = append(s.inputs, input)
	if idx >= len(s.responses) {
		return nil, fmt.Errorf("no more scripted responses (call %d)", idx+1)
	}
	ch := make(chan agent.Chunk, len(s.responses[idx]))
	for _, c := range s.responses[idx] {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func textChunks(text string) []agent.Chunk {
	return []agent.Chunk{
		&agent.TextChunk{Content: text},
		&agent.UsageChunk{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		&agent.FinishChunk{Reason: agent.FinishReasonStop},
	}
}

func toolChunks(id, name, args string) []agent.Chunk {
	return []agent.Chunk{
		&agent.ToolCallDeltaChunk{Index: 0, ID: id, Name: name},
		&agent.ToolCallDeltaChunk{Index: 0, Arguments: args},
		&agent.FinishChunk{Reason: agent.FinishReasonToolCalls},
	}
}

// fakeFamily is an in-memory tool family.
type fakeFamily struct {
	prefix string

	mu     sync.Mutex
	calls  []string
	closed int
}

func (f *fakeFamily) Prefix() string { return f.prefix }

func (f *fakeFamily) ListTools(context.Context) ([]agent.ToolDefinition, error) {
	return []agent.ToolDefinition{{Name: "getBuild", Description: "Get a build", ParametersSchema: `{"type":"object"}`}}, nil
}

func (f *fakeFamily) Call(_ context.Context, name string, args map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return fmt.Sprintf("build %v: failed in stage Test", args["buildId"]), nil
}

func (f *fakeFamily) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFamily) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testConfig() *config.Config {
	return &config.Config{
		Agent: &config.AgentConfig{
			DefaultProfile:        "base",
			MaxTurns:              5,
			MaxConcurrentSessions: 2,
			QueueSize:             2,
		},
		Budgets: config.DefaultBudgetConfig(),
		Tools:   &config.ToolsConfig{},
		ProfileRegistry: config.NewProfileRegistry(map[string]*config.ReasoningProfile{
			"base": {Provider: config.ProviderOpenAI, Model: "gpt-test"},
		}),
	}
}
