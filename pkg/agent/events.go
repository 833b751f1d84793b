package agent

import "context"

// EventType identifies a progress event variant.
type EventType string

const (
	EventTypeTurnStarted        EventType = "turn.started"
	EventTypeContentDelta       EventType = "content.delta"
	EventTypeToolCallCompleted  EventType = "tool_call.completed"
	EventTypeToolResultAppended EventType = "tool_result.appended"
	EventTypeBudgetEnforced     EventType = "budget.enforced"
	EventTypeCompacted          EventType = "transcript.compacted"
	EventTypeStateChanged       EventType = "state.changed"
)

// Event is a progress notification emitted by the controller.
// Consumers switch on the concrete type.
type Event interface {
	Type() EventType
}

// TurnStartedEvent is emitted at the top of every turn.
type TurnStartedEvent struct {
	Turn     int `json:"turn"`
	MaxTurns int `json:"max_turns"`
}

// ContentDeltaEvent carries a streamed text fragment.
type ContentDeltaEvent struct {
	Turn  int    `json:"turn"`
	Delta string `json:"delta"`
}

// ToolCallCompletedEvent is emitted once per fully assembled tool call.
type ToolCallCompletedEvent struct {
	Turn int      `json:"turn"`
	Call ToolCall `json:"call"`
}

// ToolResultAppendedEvent is emitted after a tool result joined the transcript.
type ToolResultAppendedEvent struct {
	Turn       int    `json:"turn"`
	CallID     string `json:"call_id"`
	Name       string `json:"name"`
	IsError    bool   `json:"is_error"`
	ContentLen int    `json:"content_len"`
}

// BudgetEnforcedEvent is emitted when budgeting changed the transcript.
type BudgetEnforcedEvent struct {
	Turn         int  `json:"turn"`
	Clamped      int  `json:"clamped"`
	Dropped      int  `json:"dropped"`
	Aggressive   bool `json:"aggressive"`
	SizeBefore   int  `json:"size_before"`
	SizeAfter    int  `json:"size_after"`
	EntriesAfter int  `json:"entries_after"`
}

// CompactedEvent is emitted after an emergency compaction.
type CompactedEvent struct {
	Turn          int `json:"turn"`
	EntriesBefore int `json:"entries_before"`
	EntriesAfter  int `json:"entries_after"`
	SizeAfter     int `json:"size_after"`
}

// StateChangedEvent reports a loop state transition.
type StateChangedEvent struct {
	From LoopState `json:"from"`
	To   LoopState `json:"to"`
}

func (TurnStartedEvent) Type() EventType        { return EventTypeTurnStarted }
func (ContentDeltaEvent) Type() EventType       { return EventTypeContentDelta }
func (ToolCallCompletedEvent) Type() EventType  { return EventTypeToolCallCompleted }
func (ToolResultAppendedEvent) Type() EventType { return EventTypeToolResultAppended }
func (BudgetEnforcedEvent) Type() EventType     { return EventTypeBudgetEnforced }
func (CompactedEvent) Type() EventType          { return EventTypeCompacted }
func (StateChangedEvent) Type() EventType       { return EventTypeStateChanged }

// Emit sends ev on ch. A nil channel discards the event.
// The send blocks until the consumer is ready or ctx is done; once ctx is
// done, the event is only delivered if the channel has buffer space.
func Emit(ctx context.Context, ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
		return
	default:
	}
	if ctx.Err() != nil {
		return
	}
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
