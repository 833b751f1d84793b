package events

import (
	"encoding/json"
	"time"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

// Event is one published event. On the wire the payload fields are
// flattened next to the envelope fields:
//
//	{"id":3,"type":"turn.started","session_id":"...","timestamp":"...","turn":2,"max_turns":25}
type Event struct {
	ID        int64  // per-session sequence, starting at 1; 0 for transient events
	Type      string // one of the EventType* constants
	SessionID string
	Timestamp time.Time
	Payload   any // JSON object payload
}

// MarshalJSON flattens the payload into the envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	fields := map[string]any{}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	if e.ID > 0 {
		fields["id"] = e.ID
	}
	fields["type"] = e.Type
	fields["session_id"] = e.SessionID
	fields["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(fields)
}

// SessionStatusPayload is the payload for session.status events.
// Published when a session transitions between lifecycle states.
type SessionStatusPayload struct {
	Status    string `json:"status"`               // pending, running, completed, canceled, ...
	Run       int    `json:"run"`                  // 1 for the first run, incremented per follow-up
	FinalText string `json:"final_text,omitempty"` // set on terminal states
	Error     string `json:"error,omitempty"`
	Turns     int    `json:"turns,omitempty"`
}

// FromAgentEvent wraps a controller progress event.
func FromAgentEvent(sessionID string, ev agent.Event) Event {
	return Event{
		Type:      string(ev.Type()),
		SessionID: sessionID,
		Timestamp: time.Now(),
		Payload:   ev,
	}
}
