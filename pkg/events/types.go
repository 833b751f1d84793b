// Package events delivers investigation progress to HTTP clients over
// Server-Sent Events and WebSocket.
//
// Every published event gets a per-session sequence number (ID). Clients
// that reconnect pass the last ID they saw and receive the missed events
// from the in-memory history before live delivery resumes.
//
// Two delivery classes exist:
//
//	persistent  kept in the session history and replayed on catch-up
//	transient   live only (content.delta); the full text arrives later
//	            in the session.status event of the finished run
package events

import "github.com/codeready-toolchain/buildscout/pkg/agent"

// Event types published by the broker. Agent loop events keep the names
// of agent.EventType.
const (
	EventTypeSessionStatus = "session.status"

	EventTypeTurnStarted        = string(agent.EventTypeTurnStarted)
	EventTypeContentDelta       = string(agent.EventTypeContentDelta)
	EventTypeToolCallCompleted  = string(agent.EventTypeToolCallCompleted)
	EventTypeToolResultAppended = string(agent.EventTypeToolResultAppended)
	EventTypeBudgetEnforced     = string(agent.EventTypeBudgetEnforced)
	EventTypeCompacted          = string(agent.EventTypeCompacted)
	EventTypeStateChanged       = string(agent.EventTypeStateChanged)
)

// Control message types sent on the WebSocket only.
const (
	MessageTypeConnectionEstablished = "connection.established"
	MessageTypeCatchupOverflow       = "catchup.overflow"
	MessageTypePong                  = "pong"
	MessageTypeError                 = "error"
)

// isTransient reports whether events of this type skip the history.
func isTransient(eventType string) bool {
	return eventType == EventTypeContentDelta
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action      string `json:"action"`                  // "catchup", "ping"
	LastEventID *int64 `json:"last_event_id,omitempty"` // For catchup
}
