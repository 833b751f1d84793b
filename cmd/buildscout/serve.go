package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/buildscout/pkg/api"
	"github.com/codeready-toolchain/buildscout/pkg/cleanup"
	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/database"
	"github.com/codeready-toolchain/buildscout/pkg/events"
	"github.com/codeready-toolchain/buildscout/pkg/llm"
	"github.com/codeready-toolchain/buildscout/pkg/masking"
	"github.com/codeready-toolchain/buildscout/pkg/mcp"
	"github.com/codeready-toolchain/buildscout/pkg/metrics"
	"github.com/codeready-toolchain/buildscout/pkg/queue"
	"github.com/codeready-toolchain/buildscout/pkg/runbook"
	"github.com/codeready-toolchain/buildscout/pkg/services"
	"github.com/codeready-toolchain/buildscout/pkg/session"
	"github.com/codeready-toolchain/buildscout/pkg/slack"
	"github.com/codeready-toolchain/buildscout/pkg/version"
)

const (
	// wsWriteTimeout bounds a single WebSocket write.
	wsWriteTimeout = 10 * time.Second
	// shutdownTimeout bounds waiting for running investigations on shutdown.
	shutdownTimeout = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	slog.Info("Starting buildscout", "version", version.GitCommit, "config_dir", configDir)

	// 1. Configuration
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	// 3. Optional investigation history
	var (
		dbClient       *database.Client
		historyService *services.HistoryService
	)
	if cfg.Database != nil && cfg.Database.Enabled {
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load database config: %w", err)
		}
		dbClient, err = database.NewClient(ctx, dbConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		historyService = services.NewHistoryService(dbClient)
		slog.Info("Connected to PostgreSQL database", "host", dbConfig.Host, "database", dbConfig.Database)

		cleanupService := cleanup.NewService(cfg.Database.Retention, historyService)
		cleanupService.Start(ctx)
		defer cleanupService.Stop()
	}

	// 4. Remote tool server: validate eagerly so a broken config fails fast.
	var (
		mcpFactory    *mcp.ClientFactory
		healthMonitor *mcp.HealthMonitor
	)
	if cfg.Tools.Remote.IsEnabled() {
		mcpFactory = mcp.NewClientFactory(cfg.Tools.Remote)
		probeCtx, cancel := context.WithTimeout(ctx, mcp.HealthProbeTimeout)
		status := mcp.Probe(probeCtx, mcpFactory)
		cancel()
		if !status.Healthy {
			return fmt.Errorf("remote tool server startup validation failed: %s", status.Error)
		}
		slog.Info("Remote tool server validated", "server", status.ServerName, "tools", status.ToolCount)

		healthMonitor = mcp.NewHealthMonitor(mcpFactory)
		healthMonitor.Start(ctx)
		defer healthMonitor.Stop()
	}

	// 5. Streaming infrastructure
	broker := events.NewBroker(cfg.Server.EventHistorySessions, cfg.Server.EventHistoryTTL)
	connManager := events.NewConnectionManager(broker, wsWriteTimeout)

	// 6. LLM client, executor and worker pool
	llmClient := llm.NewClient()
	defer func() { _ = llmClient.Close() }()

	masker, err := masking.NewService(cfg.Tools.Masking)
	if err != nil {
		return fmt.Errorf("failed to create masking service: %w", err)
	}

	execOpts := []queue.ExecutorOption{
		queue.WithEventForwarder(broker),
		queue.WithExecutorMetrics(m),
		queue.WithMasker(masker),
	}
	if rb := runbook.NewService(cfg.Runbook); rb != nil {
		execOpts = append(execOpts, queue.WithRunbook(rb))
	}
	executor := queue.NewRealSessionExecutor(cfg, llmClient, mcpFactory, execOpts...)

	poolOpts := []queue.PoolOption{queue.WithPublisher(broker), queue.WithMetrics(m)}
	if historyService != nil {
		poolOpts = append(poolOpts, queue.WithHistory(historyService))
	}
	if notifier := slack.NewService(cfg.Notifications.Slack); notifier != nil {
		poolOpts = append(poolOpts, queue.WithNotifier(notifier))
		slog.Info("Slack notifications enabled", "channel", cfg.Notifications.Slack.Channel)
	}
	workerPool := queue.NewWorkerPool(cfg.Agent, executor, poolOpts...)
	// Running investigations outlive the shutdown signal until the
	// shutdown timeout expires.
	poolCtx, cancelPool := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelPool()
	workerPool.Start(poolCtx)

	// 7. HTTP server
	investigations := services.NewInvestigationService(cfg, session.NewManager(), workerPool, broker)
	httpServer := api.NewServer(cfg, investigations, broker, connManager)
	httpServer.SetWorkerPool(workerPool)
	httpServer.SetMetricsGatherer(reg)
	if healthMonitor != nil {
		httpServer.SetHealthMonitor(healthMonitor)
	}
	if historyService != nil {
		httpServer.SetHistory(dbClient, historyService)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.Start(cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logStarted(cfg)

	// 8. Wait for shutdown signal or server error
	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case serveErr = <-errCh:
		slog.Error("Server error triggered shutdown", "error", serveErr)
	}

	// 9. Graceful shutdown: stop accepting requests, then drain the pool.
	httpShutdownCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-time.After(shutdownTimeout):
		slog.Warn("Shutdown timeout exceeded, canceling running investigations")
		cancelPool()
		<-done
	}

	slog.Info("Shutdown complete")
	return serveErr
}

func logStarted(cfg *config.Config) {
	stats := cfg.Stats()
	slog.Info("buildscout started successfully",
		"listen_addr", cfg.Server.ListenAddr,
		"max_concurrent_sessions", cfg.Agent.MaxConcurrentSessions,
		"profiles", stats.Profiles,
		"remote_tools", stats.RemoteTools,
		"local_tools", stats.LocalTools,
		"history", stats.Database)
}
