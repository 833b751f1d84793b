package local

import (
	"context"
	"encoding/json"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/buildscout/pkg/version"
)

// NewServer builds an MCP server exposing the family's tools under their
// unprefixed names.
func NewServer(f *Family) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    version.AppName + "-local-tools",
		Version: version.GitCommit,
	}, nil)

	defs, _ := f.ListTools(context.Background())
	for _, d := range defs {
		name := d.Name
		server.AddTool(&mcpsdk.Tool{
			Name:        name,
			Description: d.Description,
			InputSchema: f.schemaOf(name),
		}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			args := map[string]any{}
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return errorResult("invalid arguments: " + err.Error()), nil
				}
			}
			out, err := f.Call(ctx, name, args)
			if err != nil {
				return errorResult(err.Error()), nil
			}
			return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}}}, nil
		})
	}
	return server
}

// Serve runs the family as an MCP server on the given transport until ctx
// is done or the peer disconnects.
func Serve(ctx context.Context, f *Family, transport mcpsdk.Transport) error {
	slog.Info("Serving local tools", "root", f.Root(), "transport", "stdio")
	return NewServer(f).Run(ctx, transport)
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}
