// Package controller implements the investigation loop: a multi-turn
// tool-calling conversation with a streaming model.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/agent/budget"
	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/metrics"
)

// RunOptions configure one investigation run.
type RunOptions struct {
	SessionID    string
	MaxTurns     int
	Limits       budget.Limits
	Profile      *config.ReasoningProfile
	SystemPrompt string

	// Events receives progress events. Nil disables reporting.
	Events chan<- agent.Event
}

func (o RunOptions) withDefaults() RunOptions {
	if o.MaxTurns <= 0 {
		o.MaxTurns = config.DefaultMaxTurns
	}
	if o.Limits.MaxTranscriptChars <= 0 {
		o.Limits = budget.DefaultLimits()
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = config.DefaultSystemPrompt
	}
	return o
}

// Option configures an IteratingController.
type Option func(*IteratingController)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *IteratingController) { c.logger = logger }
}

// WithMetrics enables metrics recording.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *IteratingController) { c.metrics = m }
}

// IteratingController implements the multi-turn tool-calling loop.
// Tool calls come as structured ToolCallDeltaChunk values (not parsed from text).
// Completion signal: a response without any tool calls.
//
// A controller may serve many runs, but the LLM client and tool executor it
// holds belong to one session: tool executors own a subprocess that is torn
// down when a run is canceled.
type IteratingController struct {
	llm     agent.LLMClient
	tools   agent.ToolExecutor
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewIteratingController creates a new iterating controller.
func NewIteratingController(llm agent.LLMClient, tools agent.ToolExecutor, opts ...Option) *IteratingController {
	c := &IteratingController{
		llm:    llm,
		tools:  tools,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is the mutable state of one Run call.
type run struct {
	ctx        context.Context
	opts       RunOptions
	logger     *slog.Logger
	transcript *agent.Transcript
	budget     *budget.Manager
	state      agent.LoopState
	turn       int
	usage      agent.TokenUsage
}

func (r *run) transition(to agent.LoopState) {
	from := r.state
	r.state = to
	r.logger.Debug("Loop state changed", "from", from, "to", to, "turn", r.turn)
	agent.Emit(r.ctx, r.opts.Events, agent.StateChangedEvent{From: from, To: to})
}

func (r *run) result(text string, err error) *agent.ExecutionResult {
	return &agent.ExecutionResult{
		Status:     r.state,
		FinalText:  text,
		Turns:      r.turn,
		TokensUsed: r.usage,
		Error:      err,
		Transcript: r.transcript.Messages(),
	}
}

// Run drives one investigation: it seeds the transcript with the system
// prompt and the user prompt, then alternates model calls and tool dispatch
// until the model answers without tool calls, MaxTurns turns have run, or ctx
// is done.
//
// Run returns (result, nil) when the run completed, was canceled or hit the
// turn limit. Fatal failures return (result, err) where result carries the
// transcript gathered so far.
func (c *IteratingController) Run(ctx context.Context, prompt string, opts RunOptions) (*agent.ExecutionResult, error) {
	opts = opts.withDefaults()
	r := &run{
		ctx:        ctx,
		opts:       opts,
		logger:     c.logger.With("session_id", opts.SessionID),
		transcript: agent.NewTranscript(opts.SystemPrompt, prompt),
		budget:     budget.NewManager(opts.Limits),
		state:      agent.LoopStateIdle,
	}
	r.transition(agent.LoopStateRunning)

	tools, err := c.tools.ListTools(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return c.stop(r)
		}
		return c.fail(r, fmt.Errorf("failed to list tools: %w", err))
	}

	for r.turn < opts.MaxTurns {
		// 1. Cancellation
		if ctx.Err() != nil {
			return c.stop(r)
		}
		r.turn++
		c.metrics.ObserveTurn()
		agent.Emit(ctx, opts.Events, agent.TurnStartedEvent{Turn: r.turn, MaxTurns: opts.MaxTurns})

		// 2. Budget
		c.enforceBudget(r)

		// 3. Model call, with one compaction retry
		resp, err := c.generate(r, tools)
		if err != nil {
			if ctx.Err() != nil {
				return c.stop(r)
			}
			return c.fail(r, err)
		}
		accumulateUsage(&r.usage, resp)

		// 5. No tool calls: the text is the answer
		if len(resp.ToolCalls) == 0 {
			r.transcript.Append(agent.ConversationMessage{Role: agent.RoleAssistant, Content: resp.Text})
			r.logger.Info("Investigation completed", "turns", r.turn, "finish_reason", resp.FinishReason)
			r.transition(agent.LoopStateCompleted)
			return r.result(resp.Text, nil), nil
		}

		// 4. Dispatch tool calls in emission order
		r.transcript.Append(agent.ConversationMessage{
			Role:      agent.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		c.dispatchAll(ctx, r, resp.ToolCalls, func(tc agent.ToolCall, result *agent.ToolResult) {
			r.transcript.Append(agent.ConversationMessage{
				Role:       agent.RoleTool,
				Content:    result.Content,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})
			agent.Emit(ctx, opts.Events, agent.ToolResultAppendedEvent{
				Turn:       r.turn,
				CallID:     tc.ID,
				Name:       tc.Name,
				IsError:    result.IsError,
				ContentLen: len(result.Content),
			})
		})
	}

	// 6. Turn limit
	r.logger.Info("Investigation reached the turn limit", "max_turns", opts.MaxTurns)
	r.transition(agent.LoopStateTurnLimitReached)
	return r.result(agent.MaxTurnsText, nil), nil
}

// enforceBudget fits the transcript within the run's limits.
func (c *IteratingController) enforceBudget(r *run) {
	msgs, report := r.budget.Enforce(r.transcript.Messages())
	if !report.Changed() {
		return
	}
	r.transcript.Replace(msgs)
	c.metrics.ObserveBudgetDrops(report.Dropped)
	r.logger.Debug("Transcript budget enforced",
		"turn", r.turn, "clamped", report.Clamped, "dropped", report.Dropped,
		"aggressive", report.Aggressive, "size_before", report.SizeBefore, "size_after", report.SizeAfter)
	agent.Emit(r.ctx, r.opts.Events, agent.BudgetEnforcedEvent{
		Turn:         r.turn,
		Clamped:      report.Clamped,
		Dropped:      report.Dropped,
		Aggressive:   report.Aggressive,
		SizeBefore:   report.SizeBefore,
		SizeAfter:    report.SizeAfter,
		EntriesAfter: report.EntriesAfter,
	})
}

// generate calls the model. A context-length rejection triggers one
// compaction and a retry of the same turn; a second rejection is fatal.
func (c *IteratingController) generate(r *run, tools []agent.ToolDefinition) (*LLMResponse, error) {
	resp, err := c.callModel(r, tools)
	if err == nil || !errors.Is(err, agent.ErrContextLengthExceeded) {
		return resp, err
	}

	before := r.transcript.Len()
	msgs, report := r.budget.Compact(r.transcript.Messages())
	r.transcript.Replace(msgs)
	c.metrics.ObserveCompaction()
	r.logger.Warn("Model rejected the prompt as too large, compacting transcript",
		"turn", r.turn, "entries_before", before, "entries_after", report.EntriesAfter, "size_after", report.SizeAfter)
	agent.Emit(r.ctx, r.opts.Events, agent.CompactedEvent{
		Turn:          r.turn,
		EntriesBefore: before,
		EntriesAfter:  report.EntriesAfter,
		SizeAfter:     report.SizeAfter,
	})

	resp, err = c.callModel(r, tools)
	if err != nil && errors.Is(err, agent.ErrContextLengthExceeded) {
		return nil, fmt.Errorf("prompt still too large after compaction: %w", err)
	}
	return resp, err
}

func (c *IteratingController) callModel(r *run, tools []agent.ToolDefinition) (*LLMResponse, error) {
	asm := NewStreamAssembler()
	asm.OnContent = func(delta string) {
		agent.Emit(r.ctx, r.opts.Events, agent.ContentDeltaEvent{Turn: r.turn, Delta: delta})
	}
	asm.OnToolCallCompleted = func(call agent.ToolCall) {
		agent.Emit(r.ctx, r.opts.Events, agent.ToolCallCompletedEvent{Turn: r.turn, Call: call})
	}

	return callLLM(r.ctx, c.llm, &agent.GenerateInput{
		SessionID: r.opts.SessionID,
		Messages:  r.transcript.Messages(),
		Tools:     tools,
		Profile:   r.opts.Profile,
	}, asm)
}

// dispatchAll runs the calls one after another in emission order. Each
// result is handed to onResult before the next call starts.
func (c *IteratingController) dispatchAll(ctx context.Context, r *run, calls []agent.ToolCall, onResult func(agent.ToolCall, *agent.ToolResult)) {
	for _, tc := range calls {
		onResult(tc, c.executeToolCall(ctx, r, tc))
	}
}

// executeToolCall runs one call. Executor failures become error results so
// every call is answered in the transcript.
func (c *IteratingController) executeToolCall(ctx context.Context, r *run, tc agent.ToolCall) *agent.ToolResult {
	result, err := c.tools.Execute(ctx, tc)
	switch {
	case err != nil:
		result = toolErrorResult(tc, err)
	case result == nil:
		result = toolErrorResult(tc, errors.New("no result"))
	}
	c.metrics.ObserveToolCall(tc.Name, result.IsError)
	r.logger.Debug("Tool call executed",
		"turn", r.turn, "tool", tc.Name, "call_id", tc.ID, "is_error", result.IsError, "result_len", len(result.Content))
	return result
}

// stop ends a run whose context is done. Cancellation by the caller is a
// normal terminal state; a deadline is a failure. Either way the tools (and
// any subprocess behind them) are torn down.
func (c *IteratingController) stop(r *run) (*agent.ExecutionResult, error) {
	if err := c.tools.Close(); err != nil {
		r.logger.Warn("Failed to close tool executor", "error", err)
	}
	if !isCanceled(r.ctx) {
		return c.fail(r, fmt.Errorf("investigation timed out: %w", r.ctx.Err()))
	}
	r.logger.Info("Investigation canceled", "turn", r.turn)
	r.transition(agent.LoopStateCanceled)
	return r.result(agent.CanceledText, nil), nil
}

func (c *IteratingController) fail(r *run, err error) (*agent.ExecutionResult, error) {
	r.logger.Error("Investigation failed", "turn", r.turn, "error", err)
	r.transition(agent.LoopStateFailed)
	return r.result("", err), err
}
