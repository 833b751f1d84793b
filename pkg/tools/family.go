// Package tools routes model tool calls to tool families. Every family
// exposes its tools under "<prefix>_<tool>" names.
package tools

import (
	"context"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

// Family is a group of tools sharing a name prefix, such as the remote
// build-tracking server or the local filesystem tools.
type Family interface {
	// Prefix returns the name prefix, without the trailing underscore.
	Prefix() string
	// ListTools returns the family's tools with unprefixed names.
	ListTools(ctx context.Context) ([]agent.ToolDefinition, error)
	// Call invokes a tool by its unprefixed name. A returned error is
	// reported to the model as the tool's output.
	Call(ctx context.Context, name string, args map[string]any) (string, error)
	// Close releases the family's resources.
	Close() error
}

// QualifiedName joins a family prefix and a tool name.
func QualifiedName(prefix, tool string) string {
	return prefix + "_" + tool
}
