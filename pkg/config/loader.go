package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the file Initialize reads from the config directory.
const ConfigFileName = "buildscout.yaml"

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load buildscout.yaml from configDir
//  2. Expand {{.VAR}} environment references
//  3. Parse YAML into structs
//  4. Merge user values over built-in defaults
//  5. Build the profile registry
//  6. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"profiles", stats.Profiles,
		"remote_tools", stats.RemoteTools,
		"local_tools", stats.LocalTools,
		"database", stats.Database)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	userConfig, err := loader.loadBuildscoutYAML()
	if err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}
	return resolve(configDir, userConfig)
}

// resolve merges a parsed user configuration over the built-in defaults.
func resolve(configDir string, user *BuildscoutYAMLConfig) (*Config, error) {
	agentCfg := builtinAgentConfig()
	if user.Agent != nil {
		if err := mergo.Merge(agentCfg, user.Agent, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge agent config: %w", err)
		}
	}

	budgets := builtinBudgetConfig()
	if user.Budgets != nil {
		if err := mergo.Merge(budgets, user.Budgets, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge budgets config: %w", err)
		}
	}

	tools, err := resolveToolsConfig(user.Tools)
	if err != nil {
		return nil, err
	}

	server := builtinServerConfig()
	if user.Server != nil {
		if err := mergo.Merge(server, user.Server, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge server config: %w", err)
		}
	}

	database := builtinDatabaseConfig()
	if user.Database != nil {
		database.Enabled = user.Database.Enabled
		if user.Database.Retention != nil {
			if err := mergo.Merge(database.Retention, user.Database.Retention, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge database.retention config: %w", err)
			}
		}
	}

	runbook := builtinRunbookConfig()
	if user.Runbook != nil {
		if err := mergo.Merge(runbook, user.Runbook, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge runbook config: %w", err)
		}
	}

	notifications := builtinNotificationsConfig()
	if user.Notifications != nil && user.Notifications.Slack != nil {
		if err := mergo.Merge(notifications.Slack, user.Notifications.Slack, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge notifications.slack config: %w", err)
		}
	}

	return &Config{
		configDir:       configDir,
		Agent:           agentCfg,
		Budgets:         budgets,
		Tools:           tools,
		Server:          server,
		Database:        database,
		Runbook:         runbook,
		Notifications:   notifications,
		ProfileRegistry: NewProfileRegistry(mergeProfiles(builtinProfiles(), user.Profiles)),
	}, nil
}

// resolveToolsConfig merges tool family settings. The enabled flags are
// applied by hand because mergo never lets an explicit false override true.
func resolveToolsConfig(user *ToolsConfig) (*ToolsConfig, error) {
	tools := builtinToolsConfig()
	if user == nil {
		return tools, nil
	}
	if user.Remote != nil {
		if err := mergo.Merge(tools.Remote, user.Remote, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge tools.remote config: %w", err)
		}
		if user.Remote.Enabled != nil {
			enabled := *user.Remote.Enabled
			tools.Remote.Enabled = &enabled
		}
	}
	if user.Local != nil {
		if err := mergo.Merge(tools.Local, user.Local, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge tools.local config: %w", err)
		}
		if user.Local.Enabled != nil {
			enabled := *user.Local.Enabled
			tools.Local.Enabled = &enabled
		}
	}
	if user.Masking != nil {
		if user.Masking.Enabled != nil {
			enabled := *user.Masking.Enabled
			tools.Masking.Enabled = &enabled
		}
		if len(user.Masking.Patterns) > 0 {
			tools.Masking.Patterns = user.Masking.Patterns
		}
		tools.Masking.CustomPatterns = user.Masking.CustomPatterns
	}
	return tools, nil
}

// mergeProfiles merges built-in and user-defined profiles.
// A user profile replaces the built-in profile with the same name entirely.
func mergeProfiles(builtin, user map[string]ReasoningProfile) map[string]*ReasoningProfile {
	result := make(map[string]*ReasoningProfile, len(builtin)+len(user))
	for name, p := range builtin {
		cp := p
		cp.Endpoint = expandString(cp.Endpoint)
		result[name] = &cp
	}
	for name, p := range user {
		cp := p
		result[name] = &cp
	}
	return result
}

func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func (l *configLoader) loadBuildscoutYAML() (*BuildscoutYAMLConfig, error) {
	config := BuildscoutYAMLConfig{
		Profiles: make(map[string]ReasoningProfile),
	}
	if err := l.loadYAML(ConfigFileName, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
