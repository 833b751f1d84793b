// Package budget keeps an investigation transcript within the model's input
// limits. Sizes are measured in bytes of message content, tool-call names and
// tool-call arguments.
package budget

import (
	"slices"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// Compaction constants.
const (
	// CompactKeepLast is the number of trailing entries kept by Compact.
	CompactKeepLast = 8
	// CompactEntryChars is the ceiling applied to every entry kept by Compact.
	CompactEntryChars = 4000
)

// protectedEntries is the number of leading entries (system and initiating
// user prompt) that are never dropped.
const protectedEntries = 2

// Ceilings are per-role clamp limits. A zero value means "no ceiling".
type Ceilings struct {
	ToolResult int
	Assistant  int
	ToolArgs   int
	User       int
}

// Limits holds the budgets for one session.
type Limits struct {
	MaxTranscriptChars int
	MaxToolResultChars int
	MaxAssistantChars  int
	MaxToolArgsChars   int

	// Aggressive ceilings are used when dropping entries alone could not bring
	// the transcript under MaxTranscriptChars.
	Aggressive Ceilings
}

// LimitsFromConfig converts the resolved budget configuration.
func LimitsFromConfig(cfg *config.BudgetConfig) Limits {
	l := Limits{
		MaxTranscriptChars: cfg.MaxTranscriptChars,
		MaxToolResultChars: cfg.MaxToolResultChars,
		MaxAssistantChars:  cfg.MaxAssistantChars,
		MaxToolArgsChars:   cfg.MaxToolArgsChars,
	}
	if agg := cfg.Aggressive; agg != nil {
		l.Aggressive = Ceilings{
			ToolResult: agg.ToolResultChars,
			Assistant:  agg.AssistantChars,
			ToolArgs:   agg.ToolArgsChars,
			User:       agg.UserChars,
		}
	}
	return l
}

// normal returns the steady-state ceilings.
func (l Limits) normal() Ceilings {
	return Ceilings{
		ToolResult: l.MaxToolResultChars,
		Assistant:  l.MaxAssistantChars,
		ToolArgs:   l.MaxToolArgsChars,
	}
}

// Report describes what a budgeting pass changed.
type Report struct {
	Clamped      int
	Dropped      int
	Aggressive   bool
	SizeBefore   int
	SizeAfter    int
	EntriesAfter int
}

// Changed reports whether the pass modified the transcript.
func (r Report) Changed() bool {
	return r.Clamped > 0 || r.Dropped > 0
}

// Manager applies Limits to transcripts. It is stateless and safe for
// concurrent use.
type Manager struct {
	limits Limits
}

// NewManager creates a Manager for the given limits.
func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

// Limits returns the limits the manager enforces.
func (m *Manager) Limits() Limits { return m.limits }

// Enforce returns a copy of msgs that fits MaxTranscriptChars. It never fails:
// in the worst case entries 0 and 1 are clamped proportionally until they fit.
// Roles of entries 0 and 1 are never changed. The input slice is not modified.
func (m *Manager) Enforce(msgs []agent.ConversationMessage) ([]agent.ConversationMessage, Report) {
	out := cloneMessages(msgs)
	report := Report{SizeBefore: agent.TotalSize(out)}

	// 1. Per-entry ceilings.
	report.Clamped += clampAll(out, m.limits.normal())

	// 2. Drop the oldest unprotected entries.
	limit := m.limits.MaxTranscriptChars
	for agent.TotalSize(out) > limit && len(out) > protectedEntries {
		out = slices.Delete(out, protectedEntries, protectedEntries+1)
		report.Dropped++
		for len(out) > protectedEntries && out[protectedEntries].Role == agent.RoleTool {
			out = slices.Delete(out, protectedEntries, protectedEntries+1)
			report.Dropped++
		}
	}

	// 3. Aggressive ceilings, then a proportional clamp as the last resort.
	if agent.TotalSize(out) > limit {
		report.Aggressive = true
		report.Clamped += clampAll(out, m.limits.Aggressive)
		if agent.TotalSize(out) > limit {
			report.Clamped += clampProportional(out, limit)
		}
	}

	report.SizeAfter = agent.TotalSize(out)
	report.EntriesAfter = len(out)
	return out, report
}

// Compact is the emergency path taken after the provider reported a
// context-length failure. It keeps entries 0 and 1 plus the last
// CompactKeepLast entries, clamps everything but the system entry to
// CompactEntryChars, removes tool entries orphaned at the front of the kept
// tail, and then runs Enforce.
func (m *Manager) Compact(msgs []agent.ConversationMessage) ([]agent.ConversationMessage, Report) {
	before := agent.TotalSize(msgs)
	if len(msgs) <= protectedEntries {
		out, report := m.Enforce(msgs)
		report.SizeBefore = before
		return out, report
	}

	head := cloneMessages(msgs[:protectedEntries])
	rest := msgs[protectedEntries:]
	dropped := 0
	if len(rest) > CompactKeepLast {
		dropped = len(rest) - CompactKeepLast
		rest = rest[dropped:]
	}
	tail := cloneMessages(rest)
	for len(tail) > 0 && tail[0].Role == agent.RoleTool {
		tail = tail[1:]
		dropped++
	}

	out := append(head, tail...)
	compactCeilings := Ceilings{
		ToolResult: CompactEntryChars,
		Assistant:  CompactEntryChars,
		ToolArgs:   CompactEntryChars,
		User:       CompactEntryChars,
	}
	clamped := clampAll(out, compactCeilings)

	out, report := m.Enforce(out)
	report.SizeBefore = before
	report.Dropped += dropped
	report.Clamped += clamped
	return out, report
}

// clampAll applies ceilings in place and returns the number of clamped fields.
// System entries are never clamped here.
func clampAll(msgs []agent.ConversationMessage, c Ceilings) int {
	n := 0
	for i := range msgs {
		msg := &msgs[i]
		var ceiling int
		switch msg.Role {
		case agent.RoleTool:
			ceiling = c.ToolResult
		case agent.RoleAssistant:
			ceiling = c.Assistant
		case agent.RoleUser:
			ceiling = c.User
		}
		if ceiling > 0 && len(msg.Content) > ceiling {
			msg.Content = Clamp(msg.Content, ceiling)
			n++
		}
		if c.ToolArgs > 0 {
			for j := range msg.ToolCalls {
				if len(msg.ToolCalls[j].Arguments) > c.ToolArgs {
					msg.ToolCalls[j].Arguments = Clamp(msg.ToolCalls[j].Arguments, c.ToolArgs)
					n++
				}
			}
		}
	}
	return n
}

// clampProportional shrinks every field so the total fits limit. Each field
// gets a ceiling proportional to its current size; flooring keeps the sum of
// ceilings at or below limit.
func clampProportional(msgs []agent.ConversationMessage, limit int) int {
	total := agent.TotalSize(msgs)
	if total <= limit {
		return 0
	}
	share := func(size int) int {
		return int(int64(size) * int64(limit) / int64(total))
	}

	n := 0
	for i := range msgs {
		msg := &msgs[i]
		if size := len(msg.Content); size > 0 {
			msg.Content = Clamp(msg.Content, share(size))
			n++
		}
		for j := range msg.ToolCalls {
			tc := &msg.ToolCalls[j]
			tc.Name = Clamp(tc.Name, share(len(tc.Name)))
			tc.Arguments = Clamp(tc.Arguments, share(len(tc.Arguments)))
			n++
		}
	}
	return n
}

func cloneMessages(msgs []agent.ConversationMessage) []agent.ConversationMessage {
	out := make([]agent.ConversationMessage, len(msgs))
	for i, m := range msgs {
		m.ToolCalls = slices.Clone(m.ToolCalls)
		out[i] = m
	}
	return out
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return LimitsFromConfig(config.DefaultBudgetConfig())
}
