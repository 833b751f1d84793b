package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ConnectionManager streams session events to WebSocket clients.
// Each process has one ConnectionManager instance.
type ConnectionManager struct {
	broker *Broker

	// Active connections: connection_id → *Connection
	connections map[string]*Connection
	mu          sync.RWMutex

	// Write timeout for WebSocket sends
	writeTimeout time.Duration
}

// Connection represents a single WebSocket client following one session.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn

	writeMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager(broker *Broker, writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		broker:       broker,
		connections:  make(map[string]*Connection),
		writeTimeout: writeTimeout,
	}
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Called by the WebSocket HTTP handler after upgrade. It sends the events
// after lastEventID, then live events, until the client disconnects or
// parentCtx is done.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn, sessionID string, lastEventID int64) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Conn:      conn,
		ctx:       ctx,
		cancel:    cancel,
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	catchup, sub, overflow := m.broker.Subscribe(sessionID, lastEventID)
	defer sub.Close()

	m.sendJSON(c, map[string]string{
		"type":          MessageTypeConnectionEstablished,
		"connection_id": c.ID,
		"session_id":    sessionID,
	})
	if overflow {
		m.sendJSON(c, map[string]any{"type": MessageTypeCatchupOverflow, "session_id": sessionID})
	}
	for _, ev := range catchup {
		m.sendJSON(c, ev)
	}

	// Read loop in the background: client pings and explicit catch-up.
	go m.readLoop(c)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := m.sendEvent(c, ev); err != nil {
				slog.Warn("Failed to send to WebSocket client",
					"connection_id", c.ID, "session_id", sessionID, "error", err)
				return
			}
		}
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *ConnectionManager) readLoop(c *Connection) {
	defer c.cancel()
	for {
		_, data, err := c.Conn.Read(c.ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message", "connection_id", c.ID, "error", err)
			continue
		}
		m.handleClientMessage(c, &msg)
	}
}

// handleClientMessage dispatches a client message to the appropriate handler.
func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "ping":
		m.sendJSON(c, map[string]string{"type": MessageTypePong})
	case "catchup":
		var since int64
		if msg.LastEventID != nil {
			since = *msg.LastEventID
		}
		for _, ev := range m.broker.History(c.SessionID) {
			if ev.ID > since {
				m.sendJSON(c, ev)
			}
		}
	default:
		m.sendJSON(c, map[string]string{"type": MessageTypeError, "message": "unknown action: " + msg.Action})
	}
}

// registerConnection adds a connection to the tracking map.
func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

// unregisterConnection removes a connection and closes it.
func (m *ConnectionManager) unregisterConnection(c *Connection) {
	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

func (m *ConnectionManager) sendEvent(c *Connection, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return m.sendRaw(c, data)
}

// sendJSON marshals and sends a JSON message to a single connection.
func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send WebSocket message",
			"connection_id", c.ID, "error", err)
	}
}

// sendRaw sends raw bytes to a single connection with a write timeout.
// Writes from the event loop and the read loop are serialized.
func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
