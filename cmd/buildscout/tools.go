package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/mcp"
	"github.com/codeready-toolchain/buildscout/pkg/queue"
	"github.com/codeready-toolchain/buildscout/pkg/tools"
	"github.com/codeready-toolchain/buildscout/pkg/tools/local"
)

var serveToolsRoot string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalogue offered to the model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		var mcpFactory *mcp.ClientFactory
		if cfg.Tools.Remote.IsEnabled() {
			mcpFactory = mcp.NewClientFactory(cfg.Tools.Remote)
		}
		families, err := queue.ConfiguredFamilies(cfg.Tools, mcpFactory)(ctx, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to create tool families: %w", err)
		}
		router := tools.NewRouter(slog.Default(), families...)
		defer func() { _ = router.Close() }()

		defs, err := router.ListTools(ctx)
		if err != nil {
			return err
		}
		return printCatalogue(cmd.OutOrStdout(), defs)
	},
}

var serveToolsCmd = &cobra.Command{
	Use:   "serve-tools",
	Short: "Serve the local filesystem tools as an MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		localCfg := *cfg.Tools.Local
		if serveToolsRoot != "" {
			localCfg.Root = serveToolsRoot
		}
		family, err := local.New(&localCfg)
		if err != nil {
			return err
		}
		return local.Serve(ctx, family, &mcpsdk.StdioTransport{})
	},
}

func init() {
	serveToolsCmd.Flags().StringVar(&serveToolsRoot, "root", "", "Directory the tools are confined to (default: tools.local.root)")
}

func printCatalogue(w io.Writer, defs []agent.ToolDefinition) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, d := range defs {
		desc, _, _ := strings.Cut(d.Description, "\n")
		fmt.Fprintf(tw, "%s\t%s\n", d.Name, desc)
	}
	return tw.Flush()
}
