// buildscout investigates build failures with an LLM-driven tool-calling
// agent. It runs as an HTTP service (serve), as a one-shot terminal
// command (investigate), or as an MCP stdio server exposing the local
// filesystem tools (serve-tools).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
