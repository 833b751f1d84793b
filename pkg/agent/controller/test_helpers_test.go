package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

type mockLLMResponse struct {
	chunks []agent.Chunk
	err    error
}

// mockLLMClient is a test mock for agent.LLMClient.
// NOTE: Not safe for concurrent use: callCount and lastInput are mutated
// without synchronization. Controllers call Generate sequentially.
type mockLLMClient struct {
	responses []mockLLMResponse
	callCount int
	lastInput *agent.GenerateInput

	// capture enables recording all inputs across calls (not just the last one).
	capture        bool
	capturedInputs []*agent.GenerateInput

	// onGenerate is called before processing the response, allowing tests to
	// perform side-effects (e.g. cancel a context) at call time.
	onGenerate func(callIndex int)
}

func (m *mockLLMClient) Generate(_ context.Context, input *agent.GenerateInput) (<-chan agent.Chunk, error) {
	idx := m.callCount
	m.callCount++
	m.lastInput = input
	if m.capture {
		m.capturedInputs = append(m.capturedInputs, input)
	}
	if m.onGenerate != nil {
		m.onGenerate(idx)
	}

	if idx >= len(m.responses) {
		return nil, fmt.Errorf("no more mock responses (call %d)", idx+1)
	}

	r := m.responses[idx]
	if r.err != nil {
		return nil, r.err
	}

	ch := make(chan agent.Chunk, len(r.chunks))
	for _, c := range r.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (m *mockLLMClient) Close() error { return nil }

// blockingLLMClient streams nothing until ctx is done, then closes the stream.
type blockingLLMClient struct {
	started chan struct{}
}

func (b *blockingLLMClient) Generate(ctx context.Context, _ *agent.GenerateInput) (<-chan agent.Chunk, error) {
	ch := make(chan agent.Chunk)
	go func() {
		defer close(ch)
		close(b.started)
		<-ctx.Done()
	}()
	return ch, nil
}

func (b *blockingLLMClient) Close() error { return nil }

// mockToolExecutor is a test mock for agent.ToolExecutor.
type mockToolExecutor struct {
	tools   []agent.ToolDefinition
	results map[string]*agent.ToolResult

	// onExecute is called after a call was recorded, with its zero-based index.
	onExecute func(callIndex int)

	mu       sync.Mutex
	executed []agent.ToolCall
	closed   int
}

func (m *mockToolExecutor) Execute(_ context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
	m.mu.Lock()
	m.executed = append(m.executed, call)
	idx := len(m.executed) - 1
	m.mu.Unlock()
	if m.onExecute != nil {
		m.onExecute(idx)
	}

	result, ok := m.results[call.Name]
	if !ok {
		return nil, fmt.Errorf("unexpected tool call: %s", call.Name)
	}
	return &agent.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: result.Content,
		IsError: result.IsError,
	}, nil
}

func (m *mockToolExecutor) ListTools(_ context.Context) ([]agent.ToolDefinition, error) {
	return m.tools, nil
}

func (m *mockToolExecutor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockToolExecutor) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockToolExecutorFunc is a flexible test mock that allows custom execute functions.
type mockToolExecutorFunc struct {
	tools     []agent.ToolDefinition
	executeFn func(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error)
	listErr   error
}

func (m *mockToolExecutorFunc) Execute(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
	return m.executeFn(ctx, call)
}

func (m *mockToolExecutorFunc) ListTools(_ context.Context) ([]agent.ToolDefinition, error) {
	return m.tools, m.listErr
}

func (m *mockToolExecutorFunc) Close() error { return nil }

// toolCallChunks splits one call into streamed fragments the way providers do:
// the id and name arrive first, arguments follow in pieces.
func toolCallChunks(index int, id, name string, argParts ...string) []agent.Chunk {
	chunks := []agent.Chunk{&agent.ToolCallDeltaChunk{Index: index, ID: id, Name: name}}
	for _, p := range argParts {
		chunks = append(chunks, &agent.ToolCallDeltaChunk{Index: index, Arguments: p})
	}
	return chunks
}

func textResponse(text string) mockLLMResponse {
	return mockLLMResponse{chunks: []agent.Chunk{
		&agent.TextChunk{Content: text},
		&agent.FinishChunk{Reason: agent.FinishReasonStop},
	}}
}

func toolResponse(id, name, args string) mockLLMResponse {
	chunks := toolCallChunks(0, id, name, args)
	chunks = append(chunks, &agent.FinishChunk{Reason: agent.FinishReasonToolCalls})
	return mockLLMResponse{chunks: chunks}
}

// drainEvents collects events from a buffered channel without blocking.
func drainEvents(ch chan agent.Event) []agent.Event {
	var out []agent.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
