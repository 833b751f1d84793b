package slack

import (
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase", input: "Investigation ABC-1", expected: "investigation abc-1"},
		{name: "collapse whitespace", input: "investigation \t abc\n\n(run 2)", expected: "investigation abc (run 2)"},
		{name: "trim", input: "  hello  ", expected: "hello"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeText(tt.input))
		})
	}
}

func TestCollectMessageText(t *testing.T) {
	tests := []struct {
		name     string
		msg      goslack.Message
		expected string
	}{
		{
			name:     "text only",
			msg:      goslack.Message{Msg: goslack.Msg{Text: "investigation s1 (run 1): completed"}},
			expected: "investigation s1 (run 1): completed",
		},
		{
			name: "text with attachment text and fallback",
			msg: goslack.Message{Msg: goslack.Msg{
				Text:        "build 42",
				Attachments: []goslack.Attachment{{Text: "stage Test failed", Fallback: "fallback"}},
			}},
			expected: "build 42 stage Test failed fallback",
		},
		{
			name:     "empty message",
			msg:      goslack.Message{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, collectMessageText(tt.msg))
		})
	}
}

func TestFallbackTextCarriesFingerprint(t *testing.T) {
	snap := testSnapshot("s-42", 2, "completed")
	text := normalizeText(FallbackText(snap))
	assert.Contains(t, text, normalizeText(sessionFingerprint("s-42")))
	assert.Contains(t, text, "run 2")
}
