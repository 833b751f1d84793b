package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/buildscout/pkg/events"
)

// sseFrame is one parsed Server-Sent Events frame.
type sseFrame struct {
	id    string
	event string
	data  map[string]any
}

// readFrame reads lines until a complete frame with data arrives. Comment
// lines (keepalives) are skipped.
func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var f sseFrame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if f.data != nil {
				return f
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			f.id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			f.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			f.data = map[string]any{}
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &f.data))
		}
	}
}

func statusEvent(sessionID, status string) events.Event {
	return events.Event{
		Type:      events.EventTypeSessionStatus,
		SessionID: sessionID,
		Payload:   events.SessionStatusPayload{Status: status, Run: 1},
	}
}

func createSession(t *testing.T, env *testEnv) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v1/investigations", CreateInvestigationRequest{Prompt: "p"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	return decode[InvestigationResponse](t, rec).SessionID
}

func TestEventsHandler_CatchupThenLive(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)
	env.broker.Publish(statusEvent(id, "pending"))
	env.broker.Publish(statusEvent(id, "running"))

	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/investigations/"+id+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)

	f := readFrame(t, r)
	assert.Equal(t, "2", f.id, "events up to Last-Event-ID are skipped")
	assert.Equal(t, events.EventTypeSessionStatus, f.event)
	assert.Equal(t, "running", f.data["status"])
	assert.Equal(t, id, f.data["session_id"])

	env.broker.Publish(statusEvent(id, "completed"))
	f = readFrame(t, r)
	assert.Equal(t, "3", f.id)
	assert.Equal(t, "completed", f.data["status"])
}

func TestEventsHandler_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/investigations/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/investigations/"+id+"/events?last_event_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "invalid last event id")
}

func TestWSHandler(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)
	env.broker.Publish(statusEvent(id, "pending"))

	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("unknown session is rejected before upgrade", func(t *testing.T) {
		_, resp, err := websocket.Dial(ctx, base+"/api/v1/investigations/missing/ws", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("catch-up then live", func(t *testing.T) {
		conn, _, err := websocket.Dial(ctx, base+"/api/v1/investigations/"+id+"/ws", nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

		read := func() map[string]any {
			_, data, err := conn.Read(ctx)
			require.NoError(t, err)
			var msg map[string]any
			require.NoError(t, json.Unmarshal(data, &msg))
			return msg
		}

		assert.Equal(t, events.MessageTypeConnectionEstablished, read()["type"])
		msg := read()
		assert.Equal(t, "pending", msg["status"])
		assert.EqualValues(t, 1, msg["id"])

		env.broker.Publish(statusEvent(id, "running"))
		msg = read()
		assert.Equal(t, "running", msg["status"])
		assert.EqualValues(t, 2, msg["id"])
	})
}
