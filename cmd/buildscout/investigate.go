package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/llm"
	"github.com/codeready-toolchain/buildscout/pkg/masking"
	"github.com/codeready-toolchain/buildscout/pkg/mcp"
	"github.com/codeready-toolchain/buildscout/pkg/queue"
	"github.com/codeready-toolchain/buildscout/pkg/runbook"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

var (
	investigateProfile  string
	investigateMaxTurns int
	investigateQuiet    bool
)

var investigateCmd = &cobra.Command{
	Use:   "investigate <prompt...>",
	Short: "Run one investigation in the terminal",
	Long: `Run one investigation and stream its progress to the terminal. The final
answer is printed to stdout; progress goes to stderr. Ctrl-C cancels.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInvestigate(cmd.Context(), strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	investigateCmd.Flags().StringVar(&investigateProfile, "profile", "", "Reasoning profile (default: agent.default_profile)")
	investigateCmd.Flags().IntVar(&investigateMaxTurns, "max-turns", 0, "Turn limit (default: agent.max_turns)")
	investigateCmd.Flags().BoolVarP(&investigateQuiet, "quiet", "q", false, "Only print the final answer")
}

func runInvestigate(ctx context.Context, prompt string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if _, err := cfg.GetProfile(investigateProfile); err != nil {
		return err
	}

	var mcpFactory *mcp.ClientFactory
	if cfg.Tools.Remote.IsEnabled() {
		mcpFactory = mcp.NewClientFactory(cfg.Tools.Remote)
	}
	llmClient := llm.NewClient()
	defer func() { _ = llmClient.Close() }()

	masker, err := masking.NewService(cfg.Tools.Masking)
	if err != nil {
		return fmt.Errorf("failed to create masking service: %w", err)
	}

	opts := []queue.ExecutorOption{queue.WithMasker(masker)}
	if rb := runbook.NewService(cfg.Runbook); rb != nil {
		opts = append(opts, queue.WithRunbook(rb))
	}
	if !investigateQuiet {
		opts = append(opts, queue.WithEventForwarder(&terminalPrinter{w: stderr}))
	}
	executor := queue.NewRealSessionExecutor(cfg, llmClient, mcpFactory, opts...)

	s := session.NewManager().Create(session.CreateRequest{
		Prompt:   prompt,
		Profile:  investigateProfile,
		MaxTurns: investigateMaxTurns,
	})
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.Start(cancel)

	result, runErr := executor.Execute(runCtx, s)
	status := s.Finish(result, runErr)
	if runErr != nil {
		return fmt.Errorf("investigation %s: %w", status, runErr)
	}

	snap := s.Snapshot()
	if !investigateQuiet {
		fmt.Fprintf(stderr, "\n--- %s after %d turns (%d tokens) ---\n", status, snap.Turns, snap.Tokens.TotalTokens)
	}
	fmt.Fprintln(stdout, snap.FinalText)
	return nil
}

// terminalPrinter renders controller progress for a human.
type terminalPrinter struct {
	w         io.Writer
	streaming bool // a content delta line is open
}

// Forward prints events until ch is closed.
func (p *terminalPrinter) Forward(_ string, ch <-chan agent.Event) {
	for ev := range ch {
		p.print(ev)
	}
	p.endLine()
}

func (p *terminalPrinter) print(ev agent.Event) {
	switch e := ev.(type) {
	case agent.ContentDeltaEvent:
		p.streaming = true
		fmt.Fprint(p.w, e.Delta)
		return
	case agent.TurnStartedEvent:
		p.endLine()
		fmt.Fprintf(p.w, "== turn %d/%d\n", e.Turn, e.MaxTurns)
	case agent.ToolCallCompletedEvent:
		p.endLine()
		fmt.Fprintf(p.w, "-> %s %s\n", e.Call.Name, truncate(e.Call.Arguments, 200))
	case agent.ToolResultAppendedEvent:
		marker := "<-"
		if e.IsError {
			marker = "<! error"
		}
		fmt.Fprintf(p.w, "%s %s (%d chars)\n", marker, e.Name, e.ContentLen)
	case agent.BudgetEnforcedEvent:
		fmt.Fprintf(p.w, "   budget: clamped %d, dropped %d, %d -> %d chars\n",
			e.Clamped, e.Dropped, e.SizeBefore, e.SizeAfter)
	case agent.CompactedEvent:
		p.endLine()
		fmt.Fprintf(p.w, "   compacted: %d -> %d entries\n", e.EntriesBefore, e.EntriesAfter)
	}
}

func (p *terminalPrinter) endLine() {
	if p.streaming {
		fmt.Fprintln(p.w)
		p.streaming = false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Compile-time check.
var _ queue.EventForwarder = (*terminalPrinter)(nil)
