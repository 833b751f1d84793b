package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
)

// prefixRegex restricts tool family prefixes so "<prefix>_<tool>" stays a
// valid function name for every provider.
var prefixRegex = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// ConfigValidator validates configuration with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateProfiles(); err != nil {
		return fmt.Errorf("profile validation failed: %w", err)
	}
	if err := v.validateAgent(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := v.validateBudgets(); err != nil {
		return fmt.Errorf("budget validation failed: %w", err)
	}
	if err := v.validateTools(); err != nil {
		return fmt.Errorf("tools validation failed: %w", err)
	}
	if err := v.validateDatabase(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if err := v.validateRunbook(); err != nil {
		return fmt.Errorf("runbook validation failed: %w", err)
	}
	if err := v.validateNotifications(); err != nil {
		return fmt.Errorf("notifications validation failed: %w", err)
	}
	return nil
}

func (v *ConfigValidator) validateProfiles() error {
	if v.cfg.ProfileRegistry == nil || v.cfg.ProfileRegistry.Len() == 0 {
		return NewValidationError("profile", "", "", fmt.Errorf("%w: at least one profile required", ErrMissingRequiredField))
	}
	for name, p := range v.cfg.ProfileRegistry.GetAll() {
		if !p.Provider.IsValid() {
			return NewValidationError("profile", name, "provider", fmt.Errorf("%w: %q", ErrInvalidValue, p.Provider))
		}
		if p.Model == "" {
			return NewValidationError("profile", name, "model", ErrMissingRequiredField)
		}
		if p.Provider == ProviderAzure && p.APIVersion == "" {
			return NewValidationError("profile", name, "api_version", ErrMissingRequiredField)
		}
	}
	return nil
}

func (v *ConfigValidator) validateAgent() error {
	a := v.cfg.Agent
	if a.MaxTurns < 1 {
		return NewValidationError("agent", "", "max_turns", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if a.MaxConcurrentSessions < 1 {
		return NewValidationError("agent", "", "max_concurrent_sessions", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if a.SessionTimeout <= 0 {
		return NewValidationError("agent", "", "session_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if !v.cfg.ProfileRegistry.Has(a.DefaultProfile) {
		return NewValidationError("agent", "", "default_profile", fmt.Errorf("%w: %s", ErrProfileNotFound, a.DefaultProfile))
	}
	return nil
}

func (v *ConfigValidator) validateBudgets() error {
	b := v.cfg.Budgets
	positive := map[string]int{
		"max_transcript_chars":  b.MaxTranscriptChars,
		"max_tool_result_chars": b.MaxToolResultChars,
		"max_assistant_chars":   b.MaxAssistantChars,
		"max_tool_args_chars":   b.MaxToolArgsChars,
	}
	for field, val := range positive {
		if val <= 0 {
			return NewValidationError("budgets", "", field, fmt.Errorf("%w: must be positive", ErrInvalidValue))
		}
	}
	if b.MaxToolResultChars > b.MaxTranscriptChars {
		return NewValidationError("budgets", "", "max_tool_result_chars",
			fmt.Errorf("%w: exceeds max_transcript_chars", ErrInvalidValue))
	}
	if agg := b.Aggressive; agg != nil {
		if agg.ToolResultChars > b.MaxToolResultChars || agg.AssistantChars > b.MaxAssistantChars ||
			agg.ToolArgsChars > b.MaxToolArgsChars {
			return NewValidationError("budgets", "", "aggressive",
				fmt.Errorf("%w: aggressive ceilings must not exceed the normal ones", ErrInvalidValue))
		}
	}
	return nil
}

func (v *ConfigValidator) validateTools() error {
	remote, local := v.cfg.Tools.Remote, v.cfg.Tools.Local

	if remote.IsEnabled() {
		if !prefixRegex.MatchString(remote.Prefix) {
			return NewValidationError("tools.remote", "", "prefix", fmt.Errorf("%w: %q", ErrInvalidValue, remote.Prefix))
		}
		if remote.Command == "" {
			return NewValidationError("tools.remote", "", "command", ErrMissingRequiredField)
		}
		if remote.RequestTimeout <= 0 {
			return NewValidationError("tools.remote", "", "request_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
		}
	}

	if local.IsEnabled() {
		if !prefixRegex.MatchString(local.Prefix) {
			return NewValidationError("tools.local", "", "prefix", fmt.Errorf("%w: %q", ErrInvalidValue, local.Prefix))
		}
		info, err := os.Stat(local.Root)
		if err != nil || !info.IsDir() {
			return NewValidationError("tools.local", "", "root", fmt.Errorf("%w: %s is not a directory", ErrInvalidValue, local.Root))
		}
	}

	if remote.IsEnabled() && local.IsEnabled() && remote.Prefix == local.Prefix {
		return NewValidationError("tools", "", "prefix", fmt.Errorf("%w: remote and local families share prefix %q", ErrInvalidValue, local.Prefix))
	}
	return v.validateMasking()
}

func (v *ConfigValidator) validateDatabase() error {
	d := v.cfg.Database
	if d == nil || !d.Enabled || d.Retention == nil {
		return nil
	}
	if d.Retention.RetentionDays < 0 {
		return NewValidationError("database", "", "retention.retention_days", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if d.Retention.RetentionDays > 0 && d.Retention.CleanupInterval <= 0 {
		return NewValidationError("database", "", "retention.cleanup_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateRunbook() error {
	r := v.cfg.Runbook
	if r == nil || r.URL == "" {
		return nil
	}
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewValidationError("runbook", "", "url", fmt.Errorf("%w: %q must be an http(s) URL", ErrInvalidValue, r.URL))
	}
	if r.CacheTTL <= 0 {
		return NewValidationError("runbook", "", "cache_ttl", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateNotifications() error {
	n := v.cfg.Notifications
	if n == nil || n.Slack == nil || !n.Slack.Enabled {
		return nil
	}
	if n.Slack.Channel == "" {
		return NewValidationError("notifications.slack", "", "channel", ErrMissingRequiredField)
	}
	if n.Slack.TokenEnv == "" {
		return NewValidationError("notifications.slack", "", "token_env", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateMasking() error {
	m := v.cfg.Tools.Masking
	if !m.IsEnabled() {
		return nil
	}
	builtin := BuiltinMaskingPatterns()
	for _, name := range m.Patterns {
		if _, ok := builtin[name]; ok || slices.Contains(BuiltinCodeMaskers(), name) {
			continue
		}
		return NewValidationError("tools.masking", "", "patterns", fmt.Errorf("%w: unknown pattern %q", ErrInvalidValue, name))
	}
	for i, p := range m.CustomPatterns {
		field := fmt.Sprintf("custom_patterns[%d]", i)
		if p.Pattern == "" {
			return NewValidationError("tools.masking", "", field+".pattern", ErrMissingRequiredField)
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return NewValidationError("tools.masking", "", field+".pattern", fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		if p.Replacement == "" {
			return NewValidationError("tools.masking", "", field+".replacement", ErrMissingRequiredField)
		}
	}
	return nil
}
