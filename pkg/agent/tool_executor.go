package agent

import "context"

// ToolExecutor abstracts tool execution for the controller.
type ToolExecutor interface {
	// Execute runs a single tool call and returns the result.
	// Implementations report tool failures through ToolResult.IsError;
	// a non-nil error is reserved for infrastructure failures.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)

	// ListTools returns available tool definitions for the current session.
	// Returns nil if no tools are configured.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// Close releases resources (subprocesses, open files).
	Close() error
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	CallID  string // Matches the ToolCall.ID
	Name    string // Tool name (<prefix>_<tool> format)
	Content string // Tool output (text)
	IsError bool   // Whether the tool returned an error
}
