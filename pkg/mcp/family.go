package mcp

import (
	"context"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// RemoteFamily exposes a tool server's catalogue as a tool family.
type RemoteFamily struct {
	prefix string
	client *Client
}

// NewRemoteFamily wraps a started client. An empty prefix selects the default.
func NewRemoteFamily(prefix string, client *Client) *RemoteFamily {
	if prefix == "" {
		prefix = config.DefaultRemotePrefix
	}
	return &RemoteFamily{prefix: prefix, client: client}
}

// Prefix returns the tool name prefix of the family.
func (f *RemoteFamily) Prefix() string { return f.prefix }

// ListTools returns the stored catalogue, fetching it on first use.
func (f *RemoteFamily) ListTools(ctx context.Context) ([]agent.ToolDefinition, error) {
	tools := f.client.Tools()
	if len(tools) == 0 {
		var err error
		if tools, err = f.client.ListTools(ctx); err != nil {
			return nil, err
		}
	}
	defs := make([]agent.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, agent.ToolDefinition{
			Name:             t.Name,
			Description:      t.Description,
			ParametersSchema: string(t.InputSchema),
		})
	}
	return defs, nil
}

// Call invokes a tool by its unprefixed name.
func (f *RemoteFamily) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	return f.client.CallTool(ctx, name, args)
}

// Close terminates the tool server child.
func (f *RemoteFamily) Close() error {
	return f.client.Close()
}
