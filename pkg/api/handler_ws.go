package api

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to ConnectionManager.
func (s *Server) wsHandler(c *gin.Context) {
	if s.connManager == nil {
		abortWithError(c, newHTTPError(http.StatusServiceUnavailable, "WebSocket not available"))
		return
	}
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

	// With no patterns configured only same-host origins are accepted.
	var origins []string
	if s.cfg != nil && s.cfg.Server != nil {
		origins = s.cfg.Server.AllowedWSOrigins
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	// HandleConnection blocks until the WebSocket closes.
	s.connManager.HandleConnection(c.Request.Context(), conn, sessionID, since)
}
