package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := resolve(t.TempDir(), &BuildscoutYAMLConfig{
		Tools: &ToolsConfig{Local: &LocalToolsConfig{Root: t.TempDir()}},
	})
	require.NoError(t, err)
	return cfg
}

func TestValidateAll(t *testing.T) {
	enabled := true

	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantErr   error
		component string
		field     string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "invalid provider",
			mutate: func(cfg *Config) {
				cfg.ProfileRegistry = NewProfileRegistry(map[string]*ReasoningProfile{
					"base": {Provider: "vertex", Model: "m"},
				})
			},
			wantErr: ErrInvalidValue, component: "profile", field: "provider",
		},
		{
			name: "azure profile without api version",
			mutate: func(cfg *Config) {
				cfg.ProfileRegistry = NewProfileRegistry(map[string]*ReasoningProfile{
					"base": {Provider: ProviderAzure, Model: "gpt-4o"},
				})
			},
			wantErr: ErrMissingRequiredField, component: "profile", field: "api_version",
		},
		{
			name:    "zero max turns",
			mutate:  func(cfg *Config) { cfg.Agent.MaxTurns = 0 },
			wantErr: ErrInvalidValue, component: "agent", field: "max_turns",
		},
		{
			name:    "unknown default profile",
			mutate:  func(cfg *Config) { cfg.Agent.DefaultProfile = "nope" },
			wantErr: ErrProfileNotFound, component: "agent", field: "default_profile",
		},
		{
			name:    "negative transcript budget",
			mutate:  func(cfg *Config) { cfg.Budgets.MaxTranscriptChars = -1 },
			wantErr: ErrInvalidValue, component: "budgets",
		},
		{
			name: "tool result ceiling above transcript ceiling",
			mutate: func(cfg *Config) {
				cfg.Budgets.MaxTranscriptChars = 1000
				cfg.Budgets.MaxToolResultChars = 2000
			},
			wantErr: ErrInvalidValue, component: "budgets", field: "max_tool_result_chars",
		},
		{
			name:    "aggressive ceiling above normal",
			mutate:  func(cfg *Config) { cfg.Budgets.Aggressive.AssistantChars = cfg.Budgets.MaxAssistantChars + 1 },
			wantErr: ErrInvalidValue, component: "budgets", field: "aggressive",
		},
		{
			name: "remote enabled without command",
			mutate: func(cfg *Config) {
				cfg.Tools.Remote.Enabled = &enabled
			},
			wantErr: ErrMissingRequiredField, component: "tools.remote", field: "command",
		},
		{
			name: "remote prefix with underscore",
			mutate: func(cfg *Config) {
				cfg.Tools.Remote.Enabled = &enabled
				cfg.Tools.Remote.Command = "node"
				cfg.Tools.Remote.Prefix = "ado_x"
			},
			wantErr: ErrInvalidValue, component: "tools.remote", field: "prefix",
		},
		{
			name:    "local root missing",
			mutate:  func(cfg *Config) { cfg.Tools.Local.Root = "/does/not/exist" },
			wantErr: ErrInvalidValue, component: "tools.local", field: "root",
		},
		{
			name: "families share a prefix",
			mutate: func(cfg *Config) {
				cfg.Tools.Remote.Enabled = &enabled
				cfg.Tools.Remote.Command = "node"
				cfg.Tools.Remote.Prefix = "local"
			},
			wantErr: ErrInvalidValue, component: "tools", field: "prefix",
		},
		{
			name:    "unknown masking pattern",
			mutate:  func(cfg *Config) { cfg.Tools.Masking.Patterns = []string{"password", "ssn"} },
			wantErr: ErrInvalidValue, component: "tools.masking", field: "patterns",
		},
		{
			name: "custom masking pattern does not compile",
			mutate: func(cfg *Config) {
				cfg.Tools.Masking.CustomPatterns = []MaskingPattern{{Pattern: "([a-z", Replacement: "x"}}
			},
			wantErr: ErrInvalidValue, component: "tools.masking", field: "custom_patterns[0].pattern",
		},
		{
			name: "custom masking pattern without replacement",
			mutate: func(cfg *Config) {
				cfg.Tools.Masking.CustomPatterns = []MaskingPattern{{Pattern: "x"}}
			},
			wantErr: ErrMissingRequiredField, component: "tools.masking", field: "custom_patterns[0].replacement",
		},
		{
			name: "negative retention",
			mutate: func(cfg *Config) {
				cfg.Database.Enabled = true
				cfg.Database.Retention.RetentionDays = -1
			},
			wantErr: ErrInvalidValue, component: "database", field: "retention.retention_days",
		},
		{
			name: "retention without cleanup interval",
			mutate: func(cfg *Config) {
				cfg.Database.Enabled = true
				cfg.Database.Retention.CleanupInterval = 0
			},
			wantErr: ErrInvalidValue, component: "database", field: "retention.cleanup_interval",
		},
		{
			name:    "runbook url without scheme",
			mutate:  func(cfg *Config) { cfg.Runbook.URL = "github.com/org/repo/blob/main/builds.md" },
			wantErr: ErrInvalidValue, component: "runbook", field: "url",
		},
		{
			name:    "slack without channel",
			mutate:  func(cfg *Config) { cfg.Notifications.Slack.Enabled = true },
			wantErr: ErrMissingRequiredField, component: "notifications.slack", field: "channel",
		},
		{
			name: "disabled masking skips pattern checks",
			mutate: func(cfg *Config) {
				disabled := false
				cfg.Tools.Masking.Enabled = &disabled
				cfg.Tools.Masking.Patterns = []string{"ssn"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := NewValidator(cfg).ValidateAll()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.component, vErr.Component)
			if tt.field != "" {
				assert.Equal(t, tt.field, vErr.Field)
			}
		})
	}
}
