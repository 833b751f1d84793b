package mcp

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/config"
)

func helperConfig(mode string) *config.RemoteToolsConfig {
	enabled := true
	return &config.RemoteToolsConfig{
		Enabled:        &enabled,
		Prefix:         "ado",
		Command:        os.Args[0],
		Args:           []string{"-test.run=^$"},
		Env:            map[string]string{helperEnv: mode},
		RequestTimeout: 5 * time.Second,
	}
}

func TestProbe(t *testing.T) {
	status := Probe(context.Background(), NewClientFactory(helperConfig("sdk")))
	assert.True(t, status.Healthy)
	assert.Equal(t, 3, status.ToolCount)
	assert.Equal(t, "fake-ado", status.ServerName)
	assert.Empty(t, status.Error)

	status = Probe(context.Background(), NewClientFactory(helperConfig("crash")))
	assert.False(t, status.Healthy)
	assert.NotEmpty(t, status.Error)
}

func TestHealthMonitor(t *testing.T) {
	m := NewHealthMonitor(NewClientFactory(helperConfig("sdk")))
	assert.Nil(t, m.Status())

	m.Start(context.Background())
	require.Eventually(t, func() bool { return m.Status() != nil }, 10*time.Second, 20*time.Millisecond)
	m.Stop()

	status := m.Status()
	assert.True(t, status.Healthy)
	assert.Equal(t, 3, status.ToolCount)

	// Stop is safe to repeat.
	m.Stop()
}

func TestRemoteFamily(t *testing.T) {
	fam, err := NewClientFactory(helperConfig("sdk")).CreateFamily(context.Background(), nil)
	require.NoError(t, err)
	defer func() { _ = fam.Close() }()

	assert.Equal(t, "ado", fam.Prefix())

	defs, err := fam.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 3)
	var echo agent.ToolDefinition
	for _, d := range defs {
		if d.Name == "echo" {
			echo = d
		}
	}
	assert.Equal(t, "Echo the message argument", echo.Description)
	assert.Contains(t, echo.ParametersSchema, `"type":"object"`)

	out, err := fam.Call(context.Background(), "echo", map[string]any{"message": "timeline"})
	require.NoError(t, err)
	assert.Equal(t, "echo: timeline", out)

	require.NoError(t, fam.Close())
	_, err = fam.Call(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestNewRemoteFamily_DefaultPrefix(t *testing.T) {
	fam := NewRemoteFamily("", NewClient(Options{}))
	assert.Equal(t, config.DefaultRemotePrefix, fam.Prefix())
	require.NoError(t, fam.Close())
}
