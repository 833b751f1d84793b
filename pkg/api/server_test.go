package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/config"
	"github.com/codeready-toolchain/buildscout/pkg/events"
	"github.com/codeready-toolchain/buildscout/pkg/metrics"
	"github.com/codeready-toolchain/buildscout/pkg/queue"
	"github.com/codeready-toolchain/buildscout/pkg/services"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

// stubPool stands in for the worker pool: it keeps submitted sessions
// pending, or rejects them with err.
type stubPool struct {
	mu        sync.Mutex
	submitted []*session.Session
	err       error
}

func (p *stubPool) Submit(s *session.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.submitted = append(p.submitted, s)
	return nil
}

func (p *stubPool) last() *session.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitted[len(p.submitted)-1]
}

type testEnv struct {
	server *Server
	pool   *stubPool
	broker *events.Broker
}

func testAPIConfig() *config.Config {
	return &config.Config{
		Agent:  &config.AgentConfig{DefaultProfile: "base", MaxTurns: 10, MaxConcurrentSessions: 2, QueueSize: 4},
		Server: &config.ServerConfig{},
		ProfileRegistry: config.NewProfileRegistry(map[string]*config.ReasoningProfile{
			"base": {Provider: config.ProviderOpenAI, Model: "gpt-test"},
		}),
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testAPIConfig()
	pool := &stubPool{}
	broker := events.NewBroker(16, time.Hour)
	svc := services.NewInvestigationService(cfg, session.NewManager(), pool, broker)
	srv := NewServer(cfg, svc, broker, events.NewConnectionManager(broker, 5*time.Second))
	srv.sseKeepAlive = 50 * time.Millisecond
	return &testEnv{server: srv, pool: pool, broker: broker}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// finishRun moves the last submitted session through a completed run.
func (e *testEnv) finishRun(t *testing.T, finalText string) {
	t.Helper()
	s := e.pool.last()
	require.True(t, s.Start(func() {}))
	s.Finish(&agent.ExecutionResult{Status: agent.LoopStateCompleted, FinalText: finalText, Turns: 2}, nil)
}

func TestCreateInvestigationHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		poolErr    error
		wantCode   int
		wantErrMsg string
	}{
		{name: "accepted", body: CreateInvestigationRequest{Prompt: "why did build 42 fail?"}, wantCode: http.StatusAccepted},
		{name: "explicit profile and turns", body: CreateInvestigationRequest{Prompt: "p", Profile: "base", MaxTurns: 3}, wantCode: http.StatusAccepted},
		{name: "malformed body", body: "{not json", wantCode: http.StatusBadRequest, wantErrMsg: "invalid request body"},
		{name: "missing prompt", body: CreateInvestigationRequest{}, wantCode: http.StatusBadRequest, wantErrMsg: "prompt"},
		{name: "unknown profile", body: CreateInvestigationRequest{Prompt: "p", Profile: "nope"}, wantCode: http.StatusBadRequest, wantErrMsg: "unknown profile"},
		{name: "queue full", body: CreateInvestigationRequest{Prompt: "p"}, poolErr: queue.ErrQueueFull, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.pool.err = tt.poolErr

			rec := env.do(t, http.MethodPost, "/api/v1/investigations", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusAccepted {
				resp := decode[InvestigationResponse](t, rec)
				assert.NotEmpty(t, resp.SessionID)
				assert.Equal(t, "pending", resp.Status)
				assert.Equal(t, 1, resp.Run)
				return
			}
			resp := decode[ErrorResponse](t, rec)
			assert.Contains(t, resp.Error, tt.wantErrMsg)
		})
	}
}

func TestInvestigationLifecycleHandlers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/investigations/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/investigations", CreateInvestigationRequest{Prompt: "build 42"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[InvestigationResponse](t, rec).SessionID

	rec = env.do(t, http.MethodGet, "/api/v1/investigations/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[session.Snapshot](t, rec)
	assert.Equal(t, "build 42", snap.Prompt)
	assert.Equal(t, session.StatusPending, snap.Status)

	rec = env.do(t, http.MethodGet, "/api/v1/investigations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[InvestigationListResponse](t, rec).Investigations, 1)

	t.Run("follow-up while queued conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/investigations/"+id+"/followup", FollowUpRequest{Prompt: "more"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("follow-up after completion starts run 2", func(t *testing.T) {
		env.finishRun(t, "flaky test")
		rec := env.do(t, http.MethodPost, "/api/v1/investigations/"+id+"/followup", FollowUpRequest{Prompt: "and build 43?"})
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		resp := decode[InvestigationResponse](t, rec)
		assert.Equal(t, 2, resp.Run)
		assert.Contains(t, env.pool.last().RunPrompt(), "flaky test")
	})

	t.Run("cancel queued run", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/investigations/"+id+"/cancel", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "canceled", decode[CancelResponse](t, rec).Status)

		history := env.broker.History(id)
		require.NotEmpty(t, history)
		assert.Equal(t, events.EventTypeSessionStatus, history[len(history)-1].Type)
	})

	t.Run("cancel finished run conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/investigations/"+id+"/cancel", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("cancel unknown session", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/investigations/missing/cancel", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHistoryHandler(t *testing.T) {
	t.Run("disabled without database", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/v1/history", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Error, "disabled")
	})

	// Parameter validation answers before the database is queried.
	tests := []struct {
		name   string
		query  string
		errMsg string
	}{
		{name: "limit not a number", query: "limit=abc", errMsg: "invalid limit"},
		{name: "limit too large", query: "limit=501", errMsg: "invalid limit"},
		{name: "negative offset", query: "offset=-1", errMsg: "invalid offset"},
		{name: "unknown status", query: "status=bogus", errMsg: "invalid status"},
		{name: "active status", query: "status=running", errMsg: "invalid status"},
		{name: "search too short", query: "search=ab", errMsg: "at least 3 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.server.historyService = &services.HistoryService{}
			rec := env.do(t, http.MethodGet, "/api/v1/history?"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[ErrorResponse](t, rec).Error, tt.errMsg)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy without optional components", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[HealthResponse](t, rec)
		assert.Equal(t, healthStatusHealthy, resp.Status)
		assert.NotEmpty(t, resp.Version)
		assert.Equal(t, 1, resp.Configuration.Profiles)
		assert.Nil(t, resp.Database)
	})

	t.Run("stopped worker pool degrades", func(t *testing.T) {
		env := newTestEnv(t)
		env.server.SetWorkerPool(queue.NewWorkerPool(env.server.cfg.Agent, nil))
		rec := env.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[HealthResponse](t, rec)
		assert.Equal(t, healthStatusDegraded, resp.Status)
		assert.Equal(t, healthStatusDegraded, resp.Checks["worker_pool"].Status)
		require.NotNil(t, resp.WorkerPool)
		assert.Equal(t, 4, resp.WorkerPool.QueueCapacity)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.SessionStarted()
	env.server.SetMetricsGatherer(reg)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "buildscout_active_sessions 1")
}
