// Package api exposes investigations over HTTP: submission, status,
// cancellation, follow-ups, live progress (SSE and WebSocket), persisted
// history, health and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/database"
	"github.com/codeready-toolchain/buildscout/pkg/events"
	"github.com/codeready-toolchain/buildscout/pkg/mcp"
	"github.com/codeready-toolchain/buildscout/pkg/queue"
	"github.com/codeready-toolchain/buildscout/pkg/services"
)

// Server is the HTTP API server.
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	httpServer *http.Server

	investigations *services.InvestigationService
	broker         *events.Broker
	connManager    *events.ConnectionManager

	// Optional components, wired by the caller.
	historyService *services.HistoryService
	dbClient       *database.Client
	workerPool     *queue.WorkerPool
	healthMonitor  *mcp.HealthMonitor
	gatherer       prometheus.Gatherer

	sseKeepAlive time.Duration
}

// NewServer creates the API server and registers its routes.
func NewServer(
	cfg *config.Config,
	investigations *services.InvestigationService,
	broker *events.Broker,
	connManager *events.ConnectionManager,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), securityHeaders())

	s := &Server{
		cfg:            cfg,
		engine:         engine,
		investigations: investigations,
		broker:         broker,
		connManager:    connManager,
		gatherer:       prometheus.DefaultGatherer,
		sseKeepAlive:   15 * time.Second,
	}
	s.setupRoutes()
	return s
}

// SetHistory enables GET /api/v1/history and the database health check.
func (s *Server) SetHistory(dbClient *database.Client, history *services.HistoryService) {
	s.dbClient = dbClient
	s.historyService = history
}

// SetWorkerPool adds the worker pool to the health report.
func (s *Server) SetWorkerPool(pool *queue.WorkerPool) {
	s.workerPool = pool
}

// SetHealthMonitor adds the remote tool server probe to the health report.
func (s *Server) SetHealthMonitor(monitor *mcp.HealthMonitor) {
	s.healthMonitor = monitor
}

// SetMetricsGatherer sets the registry served on /metrics.
func (s *Server) SetMetricsGatherer(g prometheus.Gatherer) {
	s.gatherer = g
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/metrics", func(c *gin.Context) {
		promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
	})

	v1 := s.engine.Group("/api/v1")
	v1.POST("/investigations", s.createInvestigationHandler)
	v1.GET("/investigations", s.listInvestigationsHandler)
	v1.GET("/investigations/:id", s.getInvestigationHandler)
	v1.POST("/investigations/:id/cancel", s.cancelInvestigationHandler)
	v1.POST("/investigations/:id/followup", s.followUpHandler)
	v1.GET("/investigations/:id/events", s.eventsHandler)
	v1.GET("/investigations/:id/ws", s.wsHandler)
	v1.GET("/history", s.historyHandler)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP on addr. It blocks until the server stops and returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
