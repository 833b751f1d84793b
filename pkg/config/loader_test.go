package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))
	return dir
}

func TestInitialize(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("ADO_PAT", "pat-123")
	root := t.TempDir()

	dir := writeConfig(t, `
agent:
  max_turns: 12
  session_timeout: 5m
budgets:
  max_transcript_chars: 100000
  aggressive:
    tool_result_chars: 2000
tools:
  remote:
    enabled: true
    command: node
    args: ["ado-mcp/index.js"]
    env:
      ADO_PAT: "{{.ADO_PAT}}"
  local:
    root: `+root+`
profiles:
  fast:
    provider: openai
    endpoint: http://localhost:11434/v1
    model: llama3
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ConfigDir())
	assert.Equal(t, 12, cfg.Agent.MaxTurns)
	assert.Equal(t, 5*time.Minute, cfg.Agent.SessionTimeout)
	assert.Equal(t, DefaultProfileName, cfg.Agent.DefaultProfile)
	assert.Equal(t, DefaultSystemPrompt, cfg.Agent.SystemPrompt)

	assert.Equal(t, 100000, cfg.Budgets.MaxTranscriptChars)
	assert.Equal(t, DefaultMaxToolResultChars, cfg.Budgets.MaxToolResultChars)
	assert.Equal(t, 2000, cfg.Budgets.Aggressive.ToolResultChars)
	assert.Equal(t, 4000, cfg.Budgets.Aggressive.AssistantChars, "unset aggressive values keep defaults")

	require.True(t, cfg.Tools.Remote.IsEnabled())
	assert.Equal(t, DefaultRemotePrefix, cfg.Tools.Remote.Prefix)
	assert.Equal(t, "pat-123", cfg.Tools.Remote.Env["ADO_PAT"])
	assert.Equal(t, DefaultRemoteRequestTimeout, cfg.Tools.Remote.RequestTimeout)
	assert.True(t, cfg.Tools.Local.IsEnabled())
	assert.Equal(t, root, cfg.Tools.Local.Root)

	assert.Equal(t, []string{"base", "expert", "fast"}, cfg.ProfileRegistry.Names())
	base, err := cfg.GetProfile("")
	require.NoError(t, err)
	assert.Equal(t, "base", base.Name)
	assert.Equal(t, "https://example.openai.azure.com", base.Endpoint)

	stats := cfg.Stats()
	assert.Equal(t, 3, stats.Profiles)
	assert.True(t, stats.RemoteTools)
	assert.False(t, stats.Database)
}

func TestInitialize_ExplicitFalseOverridesBuiltin(t *testing.T) {
	dir := writeConfig(t, `
tools:
  local:
    enabled: false
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, cfg.Tools.Local.IsEnabled())
}

func TestInitialize_Masking(t *testing.T) {
	dir := writeConfig(t, `
tools:
  local:
    enabled: false
  masking:
    patterns: [password, json_secret_fields]
    custom_patterns:
      - pattern: "build-agent-[0-9]+"
        replacement: "__AGENT__"
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	m := cfg.Tools.Masking
	assert.True(t, m.IsEnabled(), "masking stays on unless disabled")
	assert.Equal(t, []string{"password", JSONSecretFieldsMasker}, m.Patterns)
	require.Len(t, m.CustomPatterns, 1)
	assert.Equal(t, "__AGENT__", m.CustomPatterns[0].Replacement)
}

func TestInitialize_DatabaseRetention(t *testing.T) {
	dir := writeConfig(t, `
tools:
  local:
    enabled: false
database:
  enabled: true
  retention:
    retention_days: 30
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 30, cfg.Database.Retention.RetentionDays)
	assert.Equal(t, DefaultCleanupInterval, cfg.Database.Retention.CleanupInterval)
}

func TestInitialize_SlackNotifications(t *testing.T) {
	t.Setenv(DefaultSlackTokenEnv, "xoxb-test")
	dir := writeConfig(t, `
tools:
  local:
    enabled: false
notifications:
  slack:
    enabled: true
    channel: C0123
    base_url: https://buildscout.example.com
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	s := cfg.Notifications.Slack
	assert.True(t, s.Enabled)
	assert.Equal(t, "C0123", s.Channel)
	assert.Equal(t, DefaultSlackTokenEnv, s.TokenEnv)
	assert.Equal(t, "xoxb-test", s.Token())
}

func TestInitializeConfigNotFound(t *testing.T) {
	_, err := Initialize(context.Background(), "/nonexistent/directory")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ConfigFileName, loadErr.File)
}

func TestInitializeInvalidYAML(t *testing.T) {
	dir := writeConfig(t, "agent: [unclosed")
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidYAML))
}

func TestInitializeValidationFailure(t *testing.T) {
	dir := writeConfig(t, `
agent:
  default_profile: missing
`)
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.True(t, errors.Is(err, ErrProfileNotFound))
}

func TestUserProfileReplacesBuiltin(t *testing.T) {
	dir := writeConfig(t, `
profiles:
  base:
    provider: openai
    model: gpt-4o-mini
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	base, err := cfg.GetProfile("base")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, base.Provider)
	assert.Equal(t, "gpt-4o-mini", base.Model)
	assert.Empty(t, base.APIVersion)
}

func TestProfileRegistry_GetReturnsCopy(t *testing.T) {
	reg := NewProfileRegistry(map[string]*ReasoningProfile{
		"base": {Provider: ProviderOpenAI, Model: "m"},
	})
	p, err := reg.Get("base")
	require.NoError(t, err)
	p.Model = "mutated"

	again, err := reg.Get("base")
	require.NoError(t, err)
	assert.Equal(t, "m", again.Model)

	_, err = reg.Get("nope")
	assert.True(t, errors.Is(err, ErrProfileNotFound))
}

func TestReasoningProfile_APIKey(t *testing.T) {
	t.Setenv("TEST_BUILDSCOUT_KEY", "k-1")
	p := &ReasoningProfile{APIKeyEnv: "TEST_BUILDSCOUT_KEY"}
	assert.Equal(t, "k-1", p.APIKey())
	assert.Empty(t, (&ReasoningProfile{}).APIKey())
}
