package config

import (
	"os"
	"time"
)

// BuildscoutYAMLConfig represents the complete buildscout.yaml file structure
type BuildscoutYAMLConfig struct {
	Agent    *AgentConfig                `yaml:"agent"`
	Profiles map[string]ReasoningProfile `yaml:"profiles"`
	Budgets  *BudgetConfig               `yaml:"budgets"`
	Tools    *ToolsConfig                `yaml:"tools"`
	Server   *ServerConfig               `yaml:"server"`
	Database *DatabaseConfig             `yaml:"database"`

	Runbook       *RunbookConfig       `yaml:"runbook"`
	Notifications *NotificationsConfig `yaml:"notifications"`
}

// AgentConfig controls the investigation loop.
type AgentConfig struct {
	DefaultProfile        string        `yaml:"default_profile,omitempty"`
	MaxTurns              int           `yaml:"max_turns,omitempty"`
	SystemPrompt          string        `yaml:"system_prompt,omitempty"`
	MaxConcurrentSessions int           `yaml:"max_concurrent_sessions,omitempty"`
	QueueSize             int           `yaml:"queue_size,omitempty"`
	SessionTimeout        time.Duration `yaml:"session_timeout,omitempty"`
}

// BudgetConfig holds the character ceilings applied to the transcript.
// Values are byte counts of the UTF-8 text.
type BudgetConfig struct {
	MaxTranscriptChars int `yaml:"max_transcript_chars,omitempty"`
	MaxToolResultChars int `yaml:"max_tool_result_chars,omitempty"`
	MaxAssistantChars  int `yaml:"max_assistant_chars,omitempty"`
	MaxToolArgsChars   int `yaml:"max_tool_args_chars,omitempty"`

	// Aggressive ceilings are used when dropping old entries alone cannot
	// bring the transcript under MaxTranscriptChars.
	Aggressive *AggressiveBudgetConfig `yaml:"aggressive,omitempty"`
}

// AggressiveBudgetConfig holds the tighter second-pass ceilings.
type AggressiveBudgetConfig struct {
	ToolResultChars int `yaml:"tool_result_chars,omitempty"`
	AssistantChars  int `yaml:"assistant_chars,omitempty"`
	ToolArgsChars   int `yaml:"tool_args_chars,omitempty"`
	UserChars       int `yaml:"user_chars,omitempty"`
}

// ToolsConfig groups the tool family settings.
type ToolsConfig struct {
	Remote  *RemoteToolsConfig `yaml:"remote"`
	Local   *LocalToolsConfig  `yaml:"local"`
	Masking *MaskingConfig     `yaml:"masking"`
}

// RemoteToolsConfig describes the child process serving the remote
// (build-tracking) tool family over line-delimited JSON-RPC.
type RemoteToolsConfig struct {
	Enabled        *bool             `yaml:"enabled,omitempty"`
	Prefix         string            `yaml:"prefix,omitempty"`
	Command        string            `yaml:"command,omitempty"`
	Args           []string          `yaml:"args,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
	RequestTimeout time.Duration     `yaml:"request_timeout,omitempty"`
}

// IsEnabled reports whether the remote family should be started.
func (r *RemoteToolsConfig) IsEnabled() bool {
	return r != nil && r.Enabled != nil && *r.Enabled
}

// LocalToolsConfig describes the in-process filesystem tool family.
type LocalToolsConfig struct {
	Enabled      *bool  `yaml:"enabled,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
	Root         string `yaml:"root,omitempty"`
	MaxFileBytes int    `yaml:"max_file_bytes,omitempty"`
	MaxMatches   int    `yaml:"max_matches,omitempty"`
}

// IsEnabled reports whether the local family should be exposed.
func (l *LocalToolsConfig) IsEnabled() bool {
	return l != nil && l.Enabled != nil && *l.Enabled
}

// MaskingConfig controls redaction of secrets in tool results before they
// are appended to the transcript. Patterns names built-in regex patterns or
// code maskers; an empty list selects all of them.
type MaskingConfig struct {
	Enabled        *bool            `yaml:"enabled,omitempty"`
	Patterns       []string         `yaml:"patterns,omitempty"`
	CustomPatterns []MaskingPattern `yaml:"custom_patterns,omitempty"`
}

// IsEnabled reports whether tool results are masked.
func (m *MaskingConfig) IsEnabled() bool {
	return m != nil && m.Enabled != nil && *m.Enabled
}

// MaskingPattern defines a regex-based masking pattern
type MaskingPattern struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr           string        `yaml:"listen_addr,omitempty"`
	AllowedWSOrigins     []string      `yaml:"allowed_ws_origins,omitempty"`
	EventHistorySessions int           `yaml:"event_history_sessions,omitempty"`
	EventHistoryTTL      time.Duration `yaml:"event_history_ttl,omitempty"`
}

// DatabaseConfig toggles persistence of investigation history.
// Connection parameters are read from DB_* environment variables.
type DatabaseConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Retention *RetentionConfig `yaml:"retention,omitempty"`
}

// RetentionConfig controls pruning of investigation history.
// RetentionDays of zero keeps history forever.
type RetentionConfig struct {
	RetentionDays   int           `yaml:"retention_days,omitempty"`
	CleanupInterval time.Duration `yaml:"cleanup_interval,omitempty"`
}

// RunbookConfig points at team troubleshooting guidance appended to the
// system prompt. URL takes precedence over the inline Content.
type RunbookConfig struct {
	URL            string        `yaml:"url,omitempty"`
	Content        string        `yaml:"content,omitempty"`
	AllowedDomains []string      `yaml:"allowed_domains,omitempty"`
	CacheTTL       time.Duration `yaml:"cache_ttl,omitempty"`
	TokenEnv       string        `yaml:"token_env,omitempty"`
}

// Token returns the GitHub token from the environment. Empty means public
// repositories only.
func (r *RunbookConfig) Token() string {
	if r == nil || r.TokenEnv == "" {
		return ""
	}
	return os.Getenv(r.TokenEnv)
}

// NotificationsConfig groups outbound notifications of finished runs.
type NotificationsConfig struct {
	Slack *SlackConfig `yaml:"slack"`
}

// SlackConfig posts every finished run to a channel. Follow-up runs reply in
// the thread of the session's first message.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
	// BaseURL is the externally reachable address of the API server, used
	// for links back to the investigation.
	BaseURL string `yaml:"base_url,omitempty"`
}

// Token returns the bot token from the environment.
func (s *SlackConfig) Token() string {
	if s == nil || s.TokenEnv == "" {
		return ""
	}
	return os.Getenv(s.TokenEnv)
}
