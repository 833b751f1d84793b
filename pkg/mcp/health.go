package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// HealthInterval is the period between background probes.
	HealthInterval = 5 * time.Minute
	// HealthProbeTimeout bounds a single probe, spawn to close.
	HealthProbeTimeout = 30 * time.Second
)

// HealthStatus captures the result of the last tool server probe.
type HealthStatus struct {
	Healthy    bool      `json:"healthy"`
	LastCheck  time.Time `json:"last_check"`
	Error      string    `json:"error,omitempty"`
	ToolCount  int       `json:"tool_count"`
	ServerName string    `json:"server_name,omitempty"`
}

// Probe spawns a throwaway tool server, handshakes, lists its tools and
// closes it.
func Probe(ctx context.Context, factory *ClientFactory) HealthStatus {
	status := HealthStatus{LastCheck: time.Now()}

	client, err := factory.CreateClient(ctx, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer func() { _ = client.Close() }()

	tools, err := client.ListTools(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = true
	status.ToolCount = len(tools)
	status.ServerName = client.ServerInfo().Name
	return status
}

// HealthMonitor periodically probes the tool server and caches the result
// for the health endpoint.
type HealthMonitor struct {
	factory *ClientFactory

	checkInterval time.Duration
	probeTimeout  time.Duration

	mu     sync.RWMutex
	status *HealthStatus

	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// NewHealthMonitor creates a new health monitor.
func NewHealthMonitor(factory *ClientFactory) *HealthMonitor {
	return &HealthMonitor{
		factory:       factory,
		checkInterval: HealthInterval,
		probeTimeout:  HealthProbeTimeout,
		logger:        slog.Default(),
	}
}

// Start launches the background probe loop. The first probe runs
// immediately. Calling Start on a running monitor is a no-op.
func (m *HealthMonitor) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop shuts down the probe loop. After Stop returns, Start may be called again.
func (m *HealthMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
	m.cancel = nil
	m.done = nil
}

func (m *HealthMonitor) loop(ctx context.Context) {
	defer close(m.done)

	m.Check(ctx)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe now and caches its result.
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	status := Probe(probeCtx, m.factory)
	if status.Healthy {
		m.logger.Debug("Tool server probe succeeded", "tools", status.ToolCount)
	} else {
		m.logger.Warn("Tool server probe failed", "error", status.Error)
	}

	m.mu.Lock()
	m.status = &status
	m.mu.Unlock()
	return status
}

// Status returns the cached result of the last probe, or nil before the
// first probe completed.
func (m *HealthMonitor) Status() *HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == nil {
		return nil
	}
	cp := *m.status
	return &cp
}
