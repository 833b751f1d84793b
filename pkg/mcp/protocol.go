package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ProtocolVersion is the protocol revision sent in the initialize request.
const ProtocolVersion = "2024-11-05"

const jsonrpcVersion = "2.0"

// Method names used on the wire.
const (
	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodToolsList   = "tools/list"
	methodToolsCall   = "tools/call"
	methodPing        = "ping"
)

// JSON-RPC error codes sent back for server-initiated requests.
const (
	codeMethodNotFound = -32601
)

var (
	// ErrRequestTimeout is returned when no response arrives before the
	// per-request deadline.
	ErrRequestTimeout = errors.New("tool server request timed out")

	// ErrClientClosed is returned for requests issued on, or pending when,
	// the client is closed.
	ErrClientClosed = errors.New("tool server client is closed")

	// ErrProcessExited is returned while starting when the child exits
	// before completing the handshake.
	ErrProcessExited = errors.New("tool server process exited")
)

// RPCError is a JSON-RPC error response returned by the tool server.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("tool server error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("tool server error %d: %s", e.Code, e.Message)
}

// ToolError is a tool result flagged with isError. Message carries the
// joined text content of the result.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// Tool is one catalogue entry from tools/list.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ServerInfo identifies the tool server, as reported in the initialize result.
type ServerInfo struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ProtocolVersion string `json:"-"`
}

// request is an outgoing request or notification. Notifications have no id.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// outgoingResponse answers a server-initiated request.
type outgoingResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// message is any incoming line: a response, a notification or a
// server-initiated request.
type message struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// responseID extracts a numeric id. Ids are accepted as JSON numbers or as
// numeric strings; anything else does not correlate.
func (m *message) responseID() (int64, bool) {
	if len(m.ID) == 0 || string(m.ID) == "null" {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(m.ID, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(m.ID, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

type listToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type callToolResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// text joins the text blocks of a tool result with newlines. Non-text
// blocks (images, resources) are skipped.
func (r *callToolResult) text() string {
	var out []byte
	first := true
	for _, b := range r.Content {
		if b.Type != "text" {
			continue
		}
		if !first {
			out = append(out, '\n')
		}
		out = append(out, b.Text...)
		first = false
	}
	return string(out)
}
