package config

// Config is the umbrella configuration object returned by Initialize and
// passed to every component that needs settings.
type Config struct {
	configDir string

	Agent    *AgentConfig
	Budgets  *BudgetConfig
	Tools    *ToolsConfig
	Server   *ServerConfig
	Database *DatabaseConfig

	Runbook       *RunbookConfig
	Notifications *NotificationsConfig

	ProfileRegistry *ProfileRegistry
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Profiles    int
	RemoteTools bool
	LocalTools  bool
	Database    bool
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.ProfileRegistry != nil {
		s.Profiles = c.ProfileRegistry.Len()
	}
	if c.Tools != nil {
		s.RemoteTools = c.Tools.Remote.IsEnabled()
		s.LocalTools = c.Tools.Local.IsEnabled()
	}
	if c.Database != nil {
		s.Database = c.Database.Enabled
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetProfile retrieves a reasoning profile by name. An empty name selects
// the configured default profile.
func (c *Config) GetProfile(name string) (*ReasoningProfile, error) {
	if name == "" {
		name = c.Agent.DefaultProfile
	}
	return c.ProfileRegistry.Get(name)
}
