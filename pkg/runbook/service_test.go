package runbook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/buildscout/pkg/config"
)

func TestNewService_NothingConfigured(t *testing.T) {
	assert.Nil(t, NewService(nil))
	assert.Nil(t, NewService(&config.RunbookConfig{Content: "  \n"}))
}

func TestService_ResolveInlineContent(t *testing.T) {
	svc := NewService(&config.RunbookConfig{Content: "# Builds\nRetry flaky agents once."})
	require.NotNil(t, svc)

	content, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Builds\nRetry flaky agents once.", content)
}

func TestService_ResolveURL(t *testing.T) {
	var hits atomic.Int32
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("# Fetched Runbook"))
	}))
	defer server.Close()

	t.Setenv("BUILDSCOUT_TEST_GH_TOKEN", "gh-123")
	svc := NewService(&config.RunbookConfig{
		URL:      server.URL + "/builds.md",
		Content:  "ignored when a URL is set",
		CacheTTL: time.Minute,
		TokenEnv: "BUILDSCOUT_TEST_GH_TOKEN",
	})

	for range 3 {
		content, err := svc.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "# Fetched Runbook", content)
	}
	assert.Equal(t, int32(1), hits.Load(), "later resolves hit the cache")
	assert.Equal(t, "Bearer gh-123", gotAuth)
}

func TestService_ResolveErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	t.Run("http error", func(t *testing.T) {
		svc := NewService(&config.RunbookConfig{URL: server.URL + "/missing.md", CacheTTL: time.Minute})
		_, err := svc.Resolve(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
	})

	t.Run("domain not allowed", func(t *testing.T) {
		svc := NewService(&config.RunbookConfig{
			URL:            server.URL + "/builds.md",
			AllowedDomains: []string{"github.com"},
			CacheTTL:       time.Minute,
		})
		_, err := svc.Resolve(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not in allowed list")
	})
}

func TestGitHubClient_DownloadCapsSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", maxRunbookBytes+10)))
	}))
	defer server.Close()

	content, err := NewGitHubClient("").DownloadContent(context.Background(), server.URL+"/big.md")
	require.NoError(t, err)
	assert.Len(t, content, maxRunbookBytes)
}

func TestAppendToPrompt(t *testing.T) {
	assert.Equal(t, "base", AppendToPrompt("base", " \n"))
	assert.Equal(t, "base\n\n## Team runbook\n\nstep 1", AppendToPrompt("base", "\nstep 1\n"))
}
