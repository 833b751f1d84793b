package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/buildscout/pkg/database"
	"github.com/codeready-toolchain/buildscout/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Only the database makes the service unhealthy (503). An unhealthy worker
// pool or a failing tool server probe degrades the status but keeps 200, so
// an orchestrator does not restart buildscout over an external outage.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := &HealthResponse{
		Status:  healthStatusHealthy,
		Version: version.GitCommit,
		Checks:  make(map[string]HealthCheck),
	}
	if s.cfg != nil {
		stats := s.cfg.Stats()
		resp.Configuration = ConfigurationStats{
			Profiles:    stats.Profiles,
			RemoteTools: stats.RemoteTools,
			LocalTools:  stats.LocalTools,
			Database:    stats.Database,
		}
	}

	degrade := func() {
		if resp.Status == healthStatusHealthy {
			resp.Status = healthStatusDegraded
		}
	}

	if s.dbClient != nil {
		dbHealth, err := database.Health(reqCtx, s.dbClient.DB())
		resp.Database = dbHealth
		if err != nil {
			resp.Status = healthStatusUnhealthy
			resp.Checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			resp.Checks["database"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.workerPool != nil {
		poolHealth := s.workerPool.Health()
		resp.WorkerPool = poolHealth
		if poolHealth != nil && !poolHealth.IsHealthy {
			degrade()
			resp.Checks["worker_pool"] = HealthCheck{Status: healthStatusDegraded, Message: "no workers accepting sessions"}
		} else {
			resp.Checks["worker_pool"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.healthMonitor != nil {
		probe := s.healthMonitor.Status()
		resp.RemoteTools = probe
		switch {
		case probe == nil:
			resp.Checks["remote_tools"] = HealthCheck{Status: healthStatusDegraded, Message: "probe pending"}
		case !probe.Healthy:
			degrade()
			resp.Checks["remote_tools"] = HealthCheck{Status: healthStatusDegraded, Message: probe.Error}
		default:
			resp.Checks["remote_tools"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	httpStatus := http.StatusOK
	if resp.Status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, resp)
}
