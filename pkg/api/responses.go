package api

import (
	"github.com/codeready-toolchain/buildscout/pkg/database"
	"github.com/codeready-toolchain/buildscout/pkg/mcp"
	"github.com/codeready-toolchain/buildscout/pkg/queue"
	"github.com/codeready-toolchain/buildscout/pkg/services"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// InvestigationResponse is returned by POST /api/v1/investigations and
// POST /api/v1/investigations/:id/followup.
type InvestigationResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Run       int    `json:"run"`
}

// InvestigationListResponse is returned by GET /api/v1/investigations.
type InvestigationListResponse struct {
	Investigations []session.Snapshot `json:"investigations"`
}

// CancelResponse is returned by POST /api/v1/investigations/:id/cancel.
type CancelResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// HistoryResponse is returned by GET /api/v1/history.
type HistoryResponse struct {
	Records []services.InvestigationRecord `json:"records"`
	Limit   int                            `json:"limit"`
	Offset  int                            `json:"offset"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	Configuration ConfigurationStats     `json:"configuration"`
	Checks        map[string]HealthCheck `json:"checks"`
	Database      *database.HealthStatus `json:"database,omitempty"`
	WorkerPool    *queue.PoolHealth      `json:"worker_pool,omitempty"`
	RemoteTools   *mcp.HealthStatus      `json:"remote_tools,omitempty"`
}

// HealthCheck is the outcome of one component check.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ConfigurationStats contains counts of loaded configuration items.
type ConfigurationStats struct {
	Profiles    int  `json:"profiles"`
	RemoteTools bool `json:"remote_tools"`
	LocalTools  bool `json:"local_tools"`
	Database    bool `json:"database"`
}
