package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/buildscout/pkg/events"
)

// lastEventID reads the resume point from the Last-Event-ID header (set by
// EventSource on reconnect) or the last_event_id query parameter.
func lastEventID(c *gin.Context) (int64, *HTTPError) {
	raw := c.GetHeader("Last-Event-ID")
	if raw == "" {
		raw = c.Query("last_event_id")
	}
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, newHTTPError(http.StatusBadRequest, "invalid last event id: "+raw)
	}
	return id, nil
}

// eventsHandler handles GET /api/v1/investigations/:id/events as a
// Server-Sent Events stream: missed events first, then live ones until the
// client goes away.
func (s *Server) eventsHandler(c *gin.Context) {
	sessionID := c.Param("id")
	if !s.investigations.Exists(sessionID) {
		abortWithError(c, newHTTPError(http.StatusNotFound, "resource not found"))
		return
	}
	since, he := lastEventID(c)
	if he != nil {
		abortWithError(c, he)
		return
	}

	catchup, sub, overflow := s.broker.Subscribe(sessionID, since)
	defer sub.Close()

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if overflow {
		c.SSEvent(events.MessageTypeCatchupOverflow, gin.H{"session_id": sessionID})
	}
	for _, ev := range catchup {
		renderEvent(c, ev)
	}
	c.Writer.Flush()

	keepAlive := time.NewTicker(s.sseKeepAlive)
	defer keepAlive.Stop()
	done := c.Request.Context().Done()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			renderEvent(c, ev)
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		}
	})
}

func renderEvent(c *gin.Context, ev events.Event) {
	out := sse.Event{Event: ev.Type, Data: ev}
	if ev.ID > 0 {
		out.Id = strconv.FormatInt(ev.ID, 10)
	}
	c.Render(-1, out)
}
