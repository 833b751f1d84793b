// Package mcp talks to the remote build-tracking tool server: a child
// process speaking line-delimited JSON-RPC 2.0 over its stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/version"
)

const (
	// DefaultRequestTimeout bounds every request when Options.RequestTimeout is unset.
	DefaultRequestTimeout = 30 * time.Second

	// readChunkSize is the stdout read size.
	readChunkSize = 64 * 1024

	// exitWaitTimeout bounds how long Close waits for the child to exit
	// after it was killed.
	exitWaitTimeout = 5 * time.Second
)

// Options configures a Client.
type Options struct {
	Command        string
	Args           []string
	Env            map[string]string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// OptionsFromConfig converts the remote tools configuration.
func OptionsFromConfig(cfg *config.RemoteToolsConfig) Options {
	return Options{
		Command:        cfg.Command,
		Args:           cfg.Args,
		Env:            cfg.Env,
		RequestTimeout: cfg.RequestTimeout,
	}
}

// pendingResult resolves one request.
type pendingResult struct {
	msg *message
	err error
}

// Client owns one tool server child process. It is not shared between
// sessions.
type Client struct {
	opts    Options
	timeout time.Duration
	logger  *slog.Logger

	nextID  atomic.Int64
	writeMu sync.Mutex
	stdin   io.WriteCloser
	cmd     *exec.Cmd

	mu         sync.Mutex
	pending    map[int64]chan pendingResult
	started    bool
	closed     bool
	tools      []Tool
	serverInfo ServerInfo

	readers   sync.WaitGroup
	exited    chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client. The child is not spawned until Start.
func NewClient(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:    opts,
		timeout: timeout,
		logger:  logger.With("tool_server", opts.Command),
		pending: make(map[int64]chan pendingResult),
		exited:  make(chan struct{}),
	}
}

// Start spawns the child and performs the initialize handshake. A child that
// exits before answering fails Start with ErrProcessExited.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("tool server already started")
	}
	c.started = true
	c.mu.Unlock()

	cmd, err := newCommand(c.opts)
	if err != nil {
		return err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start tool server %q: %w", c.opts.Command, err)
	}

	c.logger = c.logger.With("pid", cmd.Process.Pid)
	c.mu.Lock()
	c.cmd = cmd
	c.stdin = stdin
	closed := c.closed
	c.mu.Unlock()
	if closed {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return ErrClientClosed
	}

	c.readers.Add(2)
	go c.readStdout(stdout)
	go c.readStderr(stderr)
	go c.wait()

	if err := c.handshake(ctx); err != nil {
		_ = c.Close()
		if c.exitedOnItsOwn() && !errors.Is(err, ErrProcessExited) {
			err = fmt.Errorf("%w: %v", ErrProcessExited, err)
		}
		return fmt.Errorf("tool server handshake failed: %w", err)
	}
	c.logger.Info("Tool server started",
		"server_name", c.serverInfo.Name,
		"server_version", c.serverInfo.Version,
		"protocol_version", c.serverInfo.ProtocolVersion)
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	raw, err := c.call(ctx, methodInitialize, initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: version.AppName, Version: version.GitCommit},
	}, c.exited)
	if err != nil {
		return err
	}
	var res initializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("invalid initialize result: %w", err)
	}
	info := res.ServerInfo
	info.ProtocolVersion = res.ProtocolVersion

	c.mu.Lock()
	c.serverInfo = info
	c.mu.Unlock()

	return c.notify(methodInitialized, nil)
}

// ServerInfo returns the identity reported by the server during the handshake.
func (c *Client) ServerInfo() ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// ListTools fetches the full tool catalogue, following pagination cursors,
// and stores it on the client.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	cursor := ""
	for {
		raw, err := c.call(ctx, methodToolsList, listToolsParams{Cursor: cursor}, nil)
		if err != nil {
			return nil, fmt.Errorf("tools/list failed: %w", err)
		}
		var res listToolsResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("invalid tools/list result: %w", err)
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" || res.NextCursor == cursor {
			break
		}
		cursor = res.NextCursor
	}

	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()

	c.logger.Debug("Tool catalogue loaded", "tools", len(tools))
	return append([]Tool(nil), tools...), nil
}

// Tools returns the catalogue stored by the last ListTools call.
func (c *Client) Tools() []Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Tool(nil), c.tools...)
}

// CallTool invokes a tool and returns its text content joined with
// newlines. A result flagged isError is returned as a *ToolError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := c.call(ctx, methodToolsCall, callToolParams{Name: name, Arguments: args}, nil)
	if err != nil {
		return "", err
	}
	var res callToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("invalid tools/call result for %s: %w", name, err)
	}
	text := res.text()
	if res.IsError {
		return "", &ToolError{Tool: name, Message: text}
	}
	return text, nil
}

// Close shuts the child down: stdin is closed, the process is killed and
// the reader goroutines are awaited. Pending requests fail with
// ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		pending := c.pending
		c.pending = make(map[int64]chan pendingResult)
		started := c.cmd != nil
		c.mu.Unlock()

		for _, ch := range pending {
			ch <- pendingResult{err: ErrClientClosed}
		}

		if !started {
			return
		}
		_ = c.stdin.Close()
		if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			c.logger.Debug("Failed to kill tool server", "error", err)
		}
		select {
		case <-c.exited:
		case <-time.After(exitWaitTimeout):
			c.logger.Warn("Tool server did not exit after kill")
		}
	})
	return nil
}

// call sends a request and waits for its resolution. abort, when non-nil,
// fails the wait early with ErrProcessExited.
func (c *Client) call(ctx context.Context, method string, params any, abort <-chan struct{}) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan pendingResult, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	if c.cmd == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("tool server not started")
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(request{JSONRPC: jsonrpcVersion, ID: &id, Method: method, Params: params}); err != nil {
		if c.removePending(id) {
			return nil, fmt.Errorf("failed to send %s: %w", method, err)
		}
		return resolve(<-ch)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var cause error
	select {
	case res := <-ch:
		return resolve(res)
	case <-timer.C:
		cause = fmt.Errorf("%s after %s: %w", method, c.timeout, ErrRequestTimeout)
	case <-ctx.Done():
		cause = ctx.Err()
	case <-abort:
		cause = ErrProcessExited
	}

	// Whoever removes the pending entry owns the resolution. If the reader
	// got there first its response is already in the channel.
	if c.removePending(id) {
		return nil, cause
	}
	return resolve(<-ch)
}

func resolve(res pendingResult) (json.RawMessage, error) {
	if res.err != nil {
		return nil, res.err
	}
	if res.msg.Error != nil {
		return nil, res.msg.Error
	}
	return res.msg.Result, nil
}

// removePending deletes the entry for id and reports whether it was present.
func (c *Client) removePending(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

// pendingCount reports the number of unresolved requests.
func (c *Client) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) notify(method string, params any) error {
	return c.write(request{JSONRPC: jsonrpcVersion, Method: method, Params: params})
}

func (c *Client) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.stdin.Write(data)
	return err
}

func (c *Client) readStdout(r io.Reader) {
	defer c.readers.Done()
	var lb lineBuffer
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range lb.Write(buf[:n]) {
				c.handleLine(line)
			}
		}
		if err != nil {
			if lb.Pending() > 0 {
				c.logger.Debug("Discarding unterminated output", "bytes", lb.Pending())
			}
			return
		}
	}
}

func (c *Client) handleLine(line []byte) {
	if len(line) == 0 {
		return
	}
	var msg message
	if err := json.Unmarshal(line, &msg); err != nil {
		c.logger.Debug("Skipping malformed line", "error", err)
		return
	}

	if msg.Method != "" {
		c.handleServerMessage(&msg)
		return
	}

	id, ok := msg.responseID()
	if !ok {
		c.logger.Debug("Skipping response without a usable id")
		return
	}

	c.mu.Lock()
	ch, found := c.pending[id]
	if found {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !found {
		c.logger.Debug("Dropping response for unknown request", "id", id)
		return
	}
	ch <- pendingResult{msg: &msg}
}

// handleServerMessage answers server-initiated requests. Notifications are
// ignored.
func (c *Client) handleServerMessage(msg *message) {
	if len(msg.ID) == 0 {
		c.logger.Debug("Ignoring server notification", "method", msg.Method)
		return
	}
	resp := outgoingResponse{JSONRPC: jsonrpcVersion, ID: msg.ID}
	if msg.Method == methodPing {
		resp.Result = struct{}{}
	} else {
		resp.Error = &RPCError{Code: codeMethodNotFound, Message: "method not found: " + msg.Method}
	}
	if err := c.write(resp); err != nil {
		c.logger.Debug("Failed to answer server request", "method", msg.Method, "error", err)
	}
}

func (c *Client) readStderr(r io.Reader) {
	defer c.readers.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		c.logger.Debug("Tool server stderr", "line", scanner.Text())
	}
	// Keep draining so the child never blocks on a full stderr pipe.
	_, _ = io.Copy(io.Discard, r)
}

// exitedOnItsOwn reports whether the child has been reaped with an exit
// status rather than by a signal.
func (c *Client) exitedOnItsOwn() bool {
	select {
	case <-c.exited:
	default:
		return false
	}
	return c.cmd.ProcessState != nil && c.cmd.ProcessState.ExitCode() >= 0
}

// wait reaps the child once both pipes reached EOF.
func (c *Client) wait() {
	defer close(c.exited)
	c.readers.Wait()
	err := c.cmd.Wait()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		c.logger.Debug("Tool server exited")
	case errors.As(err, &exitErr) && exitErr.ExitCode() > 0:
		c.logger.Warn("Tool server exited with non-zero status", "exit_code", exitErr.ExitCode())
	default:
		c.logger.Debug("Tool server terminated", "error", err)
	}
}
