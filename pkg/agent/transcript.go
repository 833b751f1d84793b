package agent

import "slices"

// Transcript is the ordered conversation of one run.
// Entry 0 is the system entry and entry 1 the initiating user entry.
// It is owned by a single controller run and is not safe for concurrent use.
type Transcript struct {
	msgs []ConversationMessage
}

// NewTranscript seeds a transcript with the system and user entries.
func NewTranscript(systemPrompt, userPrompt string) *Transcript {
	return &Transcript{msgs: []ConversationMessage{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: userPrompt},
	}}
}

// Append adds entries to the end of the transcript.
// Tool call slices are copied so later mutation by the caller is not observed.
func (t *Transcript) Append(msgs ...ConversationMessage) {
	for _, m := range msgs {
		m.ToolCalls = slices.Clone(m.ToolCalls)
		t.msgs = append(t.msgs, m)
	}
}

// Messages returns a copy of the entries.
func (t *Transcript) Messages() []ConversationMessage {
	out := make([]ConversationMessage, len(t.msgs))
	for i, m := range t.msgs {
		m.ToolCalls = slices.Clone(m.ToolCalls)
		out[i] = m
	}
	return out
}

// Replace swaps in a budgeted version of the transcript.
// Only the budget manager's output is expected here; it keeps entries 0 and 1.
func (t *Transcript) Replace(msgs []ConversationMessage) {
	t.msgs = make([]ConversationMessage, 0, len(msgs))
	t.Append(msgs...)
}

// Len returns the number of entries.
func (t *Transcript) Len() int { return len(t.msgs) }

// Size returns the total character footprint of the transcript.
func (t *Transcript) Size() int { return TotalSize(t.msgs) }

// TotalSize sums ConversationMessage.Size over msgs.
func TotalSize(msgs []ConversationMessage) int {
	n := 0
	for _, m := range msgs {
		n += m.Size()
	}
	return n
}
