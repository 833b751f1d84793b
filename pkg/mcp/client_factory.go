package mcp

import (
	"context"
	"log/slog"

	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// ClientFactory creates started Client instances for sessions.
type ClientFactory struct {
	cfg    *config.RemoteToolsConfig
	logger *slog.Logger
}

// NewClientFactory creates a new factory for the configured tool server.
func NewClientFactory(cfg *config.RemoteToolsConfig) *ClientFactory {
	return &ClientFactory{cfg: cfg, logger: slog.Default()}
}

// CreateClient spawns a tool server child and completes the handshake.
// The caller is responsible for calling Close() when done.
func (f *ClientFactory) CreateClient(ctx context.Context, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = f.logger
	}
	opts := OptionsFromConfig(f.cfg)
	opts.Logger = logger
	client := NewClient(opts)
	if err := client.Start(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// CreateFamily starts a client, loads its catalogue and wraps it as the
// remote tool family for one session.
func (f *ClientFactory) CreateFamily(ctx context.Context, logger *slog.Logger) (*RemoteFamily, error) {
	client, err := f.CreateClient(ctx, logger)
	if err != nil {
		return nil, err
	}
	if _, err := client.ListTools(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRemoteFamily(f.cfg.Prefix, client), nil
}
