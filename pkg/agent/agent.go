// Package agent provides the core types shared by the buildscout investigation loop.
// The loop itself lives in pkg/agent/controller; budgeting lives in pkg/agent/budget.
package agent

import "errors"

// LoopState is the state of one investigation run.
type LoopState string

const (
	LoopStateIdle             LoopState = "idle"
	LoopStateRunning          LoopState = "running"
	LoopStateCompleted        LoopState = "completed"
	LoopStateCanceled         LoopState = "canceled"
	LoopStateTurnLimitReached LoopState = "turn_limit_reached"
	LoopStateFailed           LoopState = "failed"
)

// IsTerminal reports whether no further transitions are possible from s.
func (s LoopState) IsTerminal() bool {
	switch s {
	case LoopStateCompleted, LoopStateCanceled, LoopStateTurnLimitReached, LoopStateFailed:
		return true
	default:
		return false
	}
}

// Fixed result texts for the non-answer terminal states.
const (
	CanceledText = "canceled by user"
	MaxTurnsText = "maximum turns reached"
)

// ErrContextLengthExceeded is reported by an LLMClient when the provider
// rejected the request because the prompt is too large.
var ErrContextLengthExceeded = errors.New("context length exceeded")

// ExecutionResult is returned by the controller when a run ends.
//
// Run returns (result, nil) for Completed, Canceled and TurnLimitReached.
// For Failed it returns (result, err) with result.Error == err, so the
// transcript gathered so far is never lost.
type ExecutionResult struct {
	Status     LoopState
	FinalText  string
	Turns      int
	TokensUsed TokenUsage
	Error      error
	Transcript []ConversationMessage
}

// TokenUsage aggregates token consumption across multiple LLM calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}
