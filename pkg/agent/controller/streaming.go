package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

// contextLengthCode is the provider error code for an oversized prompt.
const contextLengthCode = "context_length_exceeded"

// errAssemblerFinalized is returned when chunks arrive after Finalize.
var errAssemblerFinalized = errors.New("stream assembler already finalized")

// LLMResponse holds the fully-collected response from a streaming LLM call.
type LLMResponse struct {
	// Text is the accumulated text. Empty means the model produced no text.
	Text         string
	ToolCalls    []agent.ToolCall
	FinishReason agent.FinishReason
	Usage        *agent.TokenUsage
}

// HasText reports whether the model produced any text.
func (r *LLMResponse) HasText() bool { return r.Text != "" }

// partialCall accumulates the fragments of one indexed tool call.
type partialCall struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// StreamAssembler reconstructs one model response from streamed chunks.
// Tool-call fragments are keyed by index; arguments are concatenated in
// arrival order. Nothing about a tool call is visible until Finalize.
//
// An assembler is scoped to a single response and is not safe for
// concurrent use.
type StreamAssembler struct {
	// OnContent is called with every text fragment as it arrives.
	OnContent func(delta string)
	// OnToolCallCompleted is called once per tool call from Finalize.
	OnToolCallCompleted func(call agent.ToolCall)

	text   strings.Builder
	calls  map[int]*partialCall
	finish agent.FinishReason
	usage  *agent.TokenUsage
	result *LLMResponse
}

// NewStreamAssembler creates an empty assembler.
func NewStreamAssembler() *StreamAssembler {
	return &StreamAssembler{calls: make(map[int]*partialCall)}
}

// Add consumes one chunk. An ErrorChunk is returned as an error; a
// context-length rejection wraps agent.ErrContextLengthExceeded.
func (a *StreamAssembler) Add(chunk agent.Chunk) error {
	if a.result != nil {
		return errAssemblerFinalized
	}

	switch c := chunk.(type) {
	case *agent.TextChunk:
		if c.Content == "" {
			return nil
		}
		a.text.WriteString(c.Content)
		if a.OnContent != nil {
			a.OnContent(c.Content)
		}
	case *agent.ToolCallDeltaChunk:
		pc, ok := a.calls[c.Index]
		if !ok {
			pc = &partialCall{}
			a.calls[c.Index] = pc
		}
		if pc.id == "" && c.ID != "" {
			pc.id = c.ID
		}
		pc.name.WriteString(c.Name)
		pc.args.WriteString(c.Arguments)
	case *agent.FinishChunk:
		if c.Reason != "" {
			a.finish = c.Reason
		}
	case *agent.UsageChunk:
		a.usage = &agent.TokenUsage{
			InputTokens:  c.InputTokens,
			OutputTokens: c.OutputTokens,
			TotalTokens:  c.TotalTokens,
		}
	case *agent.ErrorChunk:
		return chunkError(c)
	}
	return nil
}

// Finalize orders the tool calls by index, reports each through
// OnToolCallCompleted and returns the assembled response. Calls without a
// model-assigned id get a generated one. Finalize is idempotent.
func (a *StreamAssembler) Finalize() *LLMResponse {
	if a.result != nil {
		return a.result
	}

	indices := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indices = append(indices, idx)
	}
	slices.Sort(indices)

	resp := &LLMResponse{
		Text:         a.text.String(),
		FinishReason: a.finish,
		Usage:        a.usage,
	}
	for _, idx := range indices {
		pc := a.calls[idx]
		call := agent.ToolCall{
			ID:        pc.id,
			Name:      pc.name.String(),
			Arguments: pc.args.String(),
		}
		if call.ID == "" {
			call.ID = generateCallID()
		}
		resp.ToolCalls = append(resp.ToolCalls, call)
	}

	a.result = resp
	a.calls = nil
	if a.OnToolCallCompleted != nil {
		for _, call := range resp.ToolCalls {
			a.OnToolCallCompleted(call)
		}
	}
	return resp
}

func chunkError(c *agent.ErrorChunk) error {
	if c.ContextLength || c.Code == contextLengthCode {
		return fmt.Errorf("%w: %s", agent.ErrContextLengthExceeded, c.Message)
	}
	if c.Code != "" {
		return fmt.Errorf("LLM error: %s (code: %s)", c.Message, c.Code)
	}
	return fmt.Errorf("LLM error: %s", c.Message)
}

// collectStream drains an LLM chunk channel through asm.
// Returns an error if an ErrorChunk is received or ctx is done before the
// stream ends.
func collectStream(ctx context.Context, stream <-chan agent.Chunk, asm *StreamAssembler) (*LLMResponse, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				// A producer may close the stream early because ctx ended.
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return asm.Finalize(), nil
			}
			if err := asm.Add(chunk); err != nil {
				return nil, err
			}
		}
	}
}

// callLLM performs a single LLM call with context cancellation support.
// Returns the complete collected response.
func callLLM(
	ctx context.Context,
	llmClient agent.LLMClient,
	input *agent.GenerateInput,
	asm *StreamAssembler,
) (*LLMResponse, error) {
	// Derive a cancellable context so the producer goroutine in Generate
	// is always cleaned up when we return.
	llmCtx, llmCancel := context.WithCancel(ctx)
	defer llmCancel()

	stream, err := llmClient.Generate(llmCtx, input)
	if err != nil {
		return nil, fmt.Errorf("LLM Generate failed: %w", err)
	}

	return collectStream(llmCtx, stream, asm)
}
