package config

import "time"

// Built-in defaults. Anything set in buildscout.yaml overrides these.
const (
	DefaultProfileName           = "base"
	DefaultMaxTurns              = 25
	DefaultMaxConcurrentSessions = 4
	DefaultQueueSize             = 32
	DefaultSessionTimeout        = 15 * time.Minute

	DefaultMaxTranscriptChars = 400_000
	DefaultMaxToolResultChars = 60_000
	DefaultMaxAssistantChars  = 20_000
	DefaultMaxToolArgsChars   = 8_000

	DefaultRemotePrefix         = "ado"
	DefaultRemoteRequestTimeout = 30 * time.Second
	DefaultLocalPrefix          = "local"
	DefaultLocalMaxFileBytes    = 256 * 1024
	DefaultLocalMaxMatches      = 200

	DefaultRetentionDays   = 90
	DefaultCleanupInterval = 12 * time.Hour

	DefaultSlackTokenEnv = "SLACK_BOT_TOKEN"

	DefaultRunbookCacheTTL = 5 * time.Minute
	DefaultRunbookTokenEnv = "GITHUB_TOKEN"

	DefaultListenAddr           = ":8080"
	DefaultEventHistorySessions = 256
	DefaultEventHistoryTTL      = time.Hour

	defaultAzureAPIVersion = "2024-10-21"
)

// DefaultSystemPrompt is the fixed system entry that opens every transcript.
const DefaultSystemPrompt = `You are a build investigation assistant for Azure DevOps pipelines.
Given a build ID or a description of a failure, use the available tools to gather evidence:
pipeline definitions, build timelines, failed task logs and related source files.
Prefer targeted tool calls over broad ones, and read the log sections around the first error.
When you have enough evidence, answer with: the failing stage and task, the root cause,
the supporting log excerpts, and a concrete fix or next step.`

func builtinAgentConfig() *AgentConfig {
	return &AgentConfig{
		DefaultProfile:        DefaultProfileName,
		MaxTurns:              DefaultMaxTurns,
		SystemPrompt:          DefaultSystemPrompt,
		MaxConcurrentSessions: DefaultMaxConcurrentSessions,
		QueueSize:             DefaultQueueSize,
		SessionTimeout:        DefaultSessionTimeout,
	}
}

// DefaultBudgetConfig returns the built-in budgets.
func DefaultBudgetConfig() *BudgetConfig {
	return builtinBudgetConfig()
}

func builtinBudgetConfig() *BudgetConfig {
	return &BudgetConfig{
		MaxTranscriptChars: DefaultMaxTranscriptChars,
		MaxToolResultChars: DefaultMaxToolResultChars,
		MaxAssistantChars:  DefaultMaxAssistantChars,
		MaxToolArgsChars:   DefaultMaxToolArgsChars,
		Aggressive: &AggressiveBudgetConfig{
			ToolResultChars: 8_000,
			AssistantChars:  4_000,
			ToolArgsChars:   1_000,
			UserChars:       8_000,
		},
	}
}

func builtinToolsConfig() *ToolsConfig {
	enabled := true
	disabled := false
	return &ToolsConfig{
		Remote: &RemoteToolsConfig{
			Enabled:        &disabled,
			Prefix:         DefaultRemotePrefix,
			RequestTimeout: DefaultRemoteRequestTimeout,
		},
		Local: &LocalToolsConfig{
			Enabled:      &enabled,
			Prefix:       DefaultLocalPrefix,
			Root:         ".",
			MaxFileBytes: DefaultLocalMaxFileBytes,
			MaxMatches:   DefaultLocalMaxMatches,
		},
		Masking: &MaskingConfig{
			Enabled: &enabled,
		},
	}
}

// JSONSecretFieldsMasker names the code-based masker that redacts the values
// of secret-looking keys in JSON documents.
const JSONSecretFieldsMasker = "json_secret_fields"

// BuiltinCodeMaskers lists the code-based maskers a MaskingConfig may name.
func BuiltinCodeMaskers() []string {
	return []string{JSONSecretFieldsMasker}
}

// BuiltinMaskingPatterns returns the regex patterns a MaskingConfig may
// name. Replacements may reference capture groups.
func BuiltinMaskingPatterns() map[string]MaskingPattern {
	return map[string]MaskingPattern{
		"authorization_header": {
			Pattern:     `(?i)(authorization\s*[:=]\s*["']?(?:bearer|basic|token)\s+)[A-Za-z0-9._~+/=\-]{8,}`,
			Replacement: `${1}__MASKED_CREDENTIAL__`,
			Description: "Authorization header values",
		},
		"url_credentials": {
			Pattern:     `(https?://)[^\s:/@]+:[^\s@/]+@`,
			Replacement: `${1}__MASKED__@`,
			Description: "user:password embedded in URLs",
		},
		"password": {
			Pattern:     `(?i)((?:password|passwd|pwd)["']?\s*[:=]\s*["']?)[^\s"',;]{4,}`,
			Replacement: `${1}__MASKED_PASSWORD__`,
			Description: "password assignments",
		},
		"api_key": {
			Pattern:     `(?i)((?:api[_-]?key|apikey|access[_-]?key|client[_-]?secret)["']?\s*[:=]\s*["']?)[A-Za-z0-9_\-+/=]{16,}`,
			Replacement: `${1}__MASKED_API_KEY__`,
			Description: "API keys and client secrets",
		},
		"azure_devops_pat": {
			Pattern:     `(?i)((?:pat|personal[_-]?access[_-]?token|system[_.]accesstoken|azure_devops_ext_pat)["']?\s*[:=]\s*["']?)[a-z2-7]{52}\b`,
			Replacement: `${1}__MASKED_PAT__`,
			Description: "Azure DevOps personal access tokens",
		},
		"jwt": {
			Pattern:     `\beyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`,
			Replacement: `__MASKED_JWT__`,
			Description: "JSON Web Tokens",
		},
		"private_key": {
			Pattern:     `(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`,
			Replacement: `__MASKED_PRIVATE_KEY__`,
			Description: "PEM private keys",
		},
		"connection_string_secret": {
			Pattern:     `(?i)((?:AccountKey|SharedAccessKey|SharedAccessSignature)=)[^;\s"']+`,
			Replacement: `${1}__MASKED__`,
			Description: "Azure storage and service bus connection string keys",
		},
	}
}

func builtinServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenAddr:           DefaultListenAddr,
		EventHistorySessions: DefaultEventHistorySessions,
		EventHistoryTTL:      DefaultEventHistoryTTL,
	}
}

func builtinDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Retention: &RetentionConfig{
			RetentionDays:   DefaultRetentionDays,
			CleanupInterval: DefaultCleanupInterval,
		},
	}
}

func builtinRunbookConfig() *RunbookConfig {
	return &RunbookConfig{
		CacheTTL: DefaultRunbookCacheTTL,
		TokenEnv: DefaultRunbookTokenEnv,
	}
}

func builtinNotificationsConfig() *NotificationsConfig {
	return &NotificationsConfig{
		Slack: &SlackConfig{TokenEnv: DefaultSlackTokenEnv},
	}
}

// builtinProfiles returns the base and expert profiles. Both point at an
// Azure OpenAI resource whose endpoint comes from AZURE_OPENAI_ENDPOINT.
func builtinProfiles() map[string]ReasoningProfile {
	return map[string]ReasoningProfile{
		"base": {
			Provider:   ProviderAzure,
			Endpoint:   "{{.AZURE_OPENAI_ENDPOINT}}",
			Model:      "gpt-4o",
			APIVersion: defaultAzureAPIVersion,
			APIKeyEnv:  "AZURE_OPENAI_API_KEY",
		},
		"expert": {
			Provider:   ProviderAzure,
			Endpoint:   "{{.AZURE_OPENAI_ENDPOINT}}",
			Model:      "o3-mini",
			APIVersion: "2025-01-01-preview",
			APIKeyEnv:  "AZURE_OPENAI_API_KEY",
		},
	}
}
