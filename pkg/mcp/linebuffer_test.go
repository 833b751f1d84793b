package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineBuffer(t *testing.T) {
	var lb lineBuffer

	assert.Empty(t, lb.Write([]byte(`{"id":1,`)))
	assert.Equal(t, 7, lb.Pending())

	lines := lb.Write([]byte("\"result\":{}}\r\n{\"id\":2}\n{\"id\""))
	assert.Equal(t, [][]byte{[]byte(`{"id":1,"result":{}}`), []byte(`{"id":2}`)}, lines)
	assert.Equal(t, 5, lb.Pending())

	lines = lb.Write([]byte(":3}\n\n"))
	assert.Equal(t, [][]byte{[]byte(`{"id":3}`), {}}, lines)
	assert.Zero(t, lb.Pending())
}

func TestLineBuffer_LinesSurviveLaterWrites(t *testing.T) {
	var lb lineBuffer
	first := lb.Write([]byte("abc\ndef"))
	lb.Write([]byte("ghi\n"))
	assert.Equal(t, "abc", string(first[0]))
}

func TestMessageResponseID(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{raw: `7`, want: 7, wantOK: true},
		{raw: `"12"`, want: 12, wantOK: true},
		{raw: `"abc"`, wantOK: false},
		{raw: `null`, wantOK: false},
		{raw: ``, wantOK: false},
		{raw: `1.5`, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m := message{ID: []byte(tt.raw)}
			got, ok := m.responseID()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCallToolResultText(t *testing.T) {
	r := callToolResult{Content: []contentBlock{
		{Type: "text", Text: "a"},
		{Type: "image"},
		{Type: "text", Text: "b"},
	}}
	assert.Equal(t, "a\nb", r.text())
	assert.Empty(t, (&callToolResult{}).text())
}
