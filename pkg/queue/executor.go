package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/agent/budget"
	"github.com/codeready-toolchain/buildscout/pkg/agent/controller"
	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/mcp"
	"github.com/codeready-toolchain/buildscout/pkg/metrics"
	"github.com/codeready-toolchain/buildscout/pkg/runbook"
	"github.com/codeready-toolchain/buildscout/pkg/session"
	"github.com/codeready-toolchain/buildscout/pkg/tools"
	"github.com/codeready-toolchain/buildscout/pkg/tools/local"
)

// eventBufferSize is the capacity of the per-run progress channel.
const eventBufferSize = 64

// EventForwarder consumes the progress events of one run until the channel
// is closed. Implemented by *events.Broker.
type EventForwarder interface {
	Forward(sessionID string, ch <-chan agent.Event)
}

// FamilyBuilder creates the tool families of one session run. The caller
// closes them through the router.
type FamilyBuilder func(ctx context.Context, logger *slog.Logger) ([]tools.Family, error)

// RealSessionExecutor implements SessionExecutor with the iterating controller.
type RealSessionExecutor struct {
	cfg       *config.Config
	llmClient agent.LLMClient
	families  FamilyBuilder
	forwarder EventForwarder
	metrics   *metrics.Metrics
	masker    tools.Masker
	runbook   RunbookResolver
}

// RunbookResolver supplies guidance appended to the system prompt.
// Implemented by *runbook.Service.
type RunbookResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ExecutorOption configures a RealSessionExecutor.
type ExecutorOption func(*RealSessionExecutor)

// WithEventForwarder streams run progress to f.
func WithEventForwarder(f EventForwarder) ExecutorOption {
	return func(e *RealSessionExecutor) { e.forwarder = f }
}

// WithFamilyBuilder replaces the configured tool families.
func WithFamilyBuilder(b FamilyBuilder) ExecutorOption {
	return func(e *RealSessionExecutor) { e.families = b }
}

// WithExecutorMetrics enables loop metrics.
func WithExecutorMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *RealSessionExecutor) { e.metrics = m }
}

// WithMasker redacts tool results before they reach the transcript.
func WithMasker(m tools.Masker) ExecutorOption {
	return func(e *RealSessionExecutor) { e.masker = m }
}

// WithRunbook appends the resolved runbook to every run's system prompt.
func WithRunbook(r RunbookResolver) ExecutorOption {
	return func(e *RealSessionExecutor) { e.runbook = r }
}

// NewRealSessionExecutor creates a new session executor.
// mcpFactory may be nil (remote tools disabled).
func NewRealSessionExecutor(cfg *config.Config, llmClient agent.LLMClient, mcpFactory *mcp.ClientFactory, opts ...ExecutorOption) *RealSessionExecutor {
	e := &RealSessionExecutor{
		cfg:       cfg,
		llmClient: llmClient,
		families:  ConfiguredFamilies(cfg.Tools, mcpFactory),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the session's current run. Each run gets its own tool
// families; the remote tool server child lives exactly as long as the run.
func (e *RealSessionExecutor) Execute(ctx context.Context, s *session.Session) (*agent.ExecutionResult, error) {
	log := slog.With("session_id", s.ID, "run", s.Run())

	profile, err := e.cfg.GetProfile(s.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reasoning profile: %w", err)
	}

	families, err := e.families(ctx, log)
	if err != nil {
		if ctx.Err() != nil {
			return stoppedBeforeStart(ctx, log)
		}
		return nil, fmt.Errorf("failed to create tool families: %w", err)
	}
	router := tools.NewRouter(log, families...)
	if e.masker != nil {
		router.SetMasker(e.masker)
	}
	defer func() {
		if err := router.Close(); err != nil {
			log.Warn("Failed to close tool families", "error", err)
		}
	}()

	var progress chan agent.Event
	forwarded := make(chan struct{})
	if e.forwarder != nil {
		progress = make(chan agent.Event, eventBufferSize)
		go func() {
			defer close(forwarded)
			e.forwarder.Forward(s.ID, progress)
		}()
	} else {
		close(forwarded)
	}

	maxTurns := s.MaxTurns
	if maxTurns <= 0 {
		maxTurns = e.cfg.Agent.MaxTurns
	}

	systemPrompt := e.cfg.Agent.SystemPrompt
	if e.runbook != nil {
		content, err := e.runbook.Resolve(ctx)
		if err != nil {
			log.Warn("Failed to resolve runbook, continuing without it", "error", err)
		} else {
			systemPrompt = runbook.AppendToPrompt(systemPrompt, content)
		}
	}

	ctrl := controller.NewIteratingController(e.llmClient, router,
		controller.WithLogger(log),
		controller.WithMetrics(e.metrics))
	result, runErr := ctrl.Run(ctx, s.RunPrompt(), controller.RunOptions{
		SessionID:    s.ID,
		MaxTurns:     maxTurns,
		Limits:       budget.LimitsFromConfig(e.cfg.Budgets),
		Profile:      profile,
		SystemPrompt: systemPrompt,
		Events:       progress,
	})

	if progress != nil {
		close(progress)
	}
	<-forwarded
	return result, runErr
}

// ConfiguredFamilies returns a FamilyBuilder for the enabled tool families.
// The remote family spawns its child through factory; a failure to start it
// fails the run.
func ConfiguredFamilies(cfg *config.ToolsConfig, factory *mcp.ClientFactory) FamilyBuilder {
	return func(ctx context.Context, logger *slog.Logger) ([]tools.Family, error) {
		var families []tools.Family
		if cfg == nil {
			return families, nil
		}
		if cfg.Remote.IsEnabled() && factory != nil {
			remote, err := factory.CreateFamily(ctx, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to start remote tools: %w", err)
			}
			families = append(families, remote)
		}
		if cfg.Local.IsEnabled() {
			fs, err := local.New(cfg.Local)
			if err != nil {
				for _, f := range families {
					_ = f.Close()
				}
				return nil, fmt.Errorf("failed to create local tools: %w", err)
			}
			families = append(families, fs)
		}
		return families, nil
	}
}

// stoppedBeforeStart reports a run whose context ended while its tool
// families were starting. Cancellation is a normal terminal state; a
// deadline is a timeout failure.
func stoppedBeforeStart(ctx context.Context, log *slog.Logger) (*agent.ExecutionResult, error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Info("Investigation canceled before tools started")
		return &agent.ExecutionResult{Status: agent.LoopStateCanceled, FinalText: agent.CanceledText}, nil
	}
	err := fmt.Errorf("investigation timed out: %w", ctx.Err())
	return &agent.ExecutionResult{Status: agent.LoopStateFailed, Error: err}, err
}
