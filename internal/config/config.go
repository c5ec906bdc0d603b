// Package config handles configuration loading and management for Quorum.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Quorum.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Deliberation DeliberationConfig `mapstructure:"deliberation"`
	Retry        RetryConfig        `mapstructure:"retry"`
	Weights      map[string]float64 `mapstructure:"weights"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	History      HistoryConfig      `mapstructure:"history"`
	Transcripts  TranscriptsConfig  `mapstructure:"transcripts"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// DeliberationConfig holds default values for deliberation runs.
type DeliberationConfig struct {
	Mode      string        `mapstructure:"mode"`
	MaxRounds int           `mapstructure:"max_rounds"`
	Threshold float64       `mapstructure:"threshold"`
	Epsilon   float64       `mapstructure:"epsilon"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RetryConfig holds retry policy settings for participant invocations.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BaseWait       time.Duration `mapstructure:"base_wait"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	OverallTimeout time.Duration `mapstructure:"overall_timeout"`
}

// RegistryConfig points at the model registry file.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig holds decision history storage settings.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// TranscriptsConfig holds transcript output settings.
type TranscriptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, AWS_REGION, AWS_PROFILE)
// 2. Project config (.quorum.yaml in current directory or parent)
// 3. User config (~/.config/quorum/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")
	v.BindEnv("anthropic.aws_profile", "AWS_PROFILE")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("deliberation.mode", cfg.Deliberation.Mode)
	v.Set("deliberation.max_rounds", cfg.Deliberation.MaxRounds)
	v.Set("deliberation.threshold", cfg.Deliberation.Threshold)
	v.Set("deliberation.epsilon", cfg.Deliberation.Epsilon)
	v.Set("deliberation.max_tokens", cfg.Deliberation.MaxTokens)
	v.Set("deliberation.timeout", cfg.Deliberation.Timeout.String())
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("retry.base_wait", cfg.Retry.BaseWait.String())
	v.Set("retry.max_wait", cfg.Retry.MaxWait.String())
	v.Set("retry.attempt_timeout", cfg.Retry.AttemptTimeout.String())
	v.Set("retry.overall_timeout", cfg.Retry.OverallTimeout.String())
	v.Set("registry.path", cfg.Registry.Path)
	v.Set("history.path", cfg.History.Path)
	v.Set("transcripts.dir", cfg.Transcripts.Dir)
	if len(cfg.Weights) > 0 {
		v.Set("weights", cfg.Weights)
	}

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	// Deliberation defaults
	v.SetDefault("deliberation.mode", "multi-round")
	v.SetDefault("deliberation.max_rounds", 5)
	v.SetDefault("deliberation.threshold", 0.85)
	v.SetDefault("deliberation.epsilon", 0.05)
	v.SetDefault("deliberation.max_tokens", 1024)
	v.SetDefault("deliberation.timeout", "10m")

	// Retry defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_wait", "500ms")
	v.SetDefault("retry.max_wait", "8s")
	v.SetDefault("retry.attempt_timeout", "60s")
	v.SetDefault("retry.overall_timeout", "3m")

	// Storage defaults (empty means package-level defaults apply)
	v.SetDefault("registry.path", "")
	v.SetDefault("history.path", "")
	v.SetDefault("transcripts.dir", "")
}

// getUserConfigDir returns the XDG config directory for Quorum.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quorum")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "quorum")
	}
	return filepath.Join(home, ".config", "quorum")
}

// findProjectConfig searches for .quorum.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".quorum.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Deliberation: DeliberationConfig{
			Mode:      "multi-round",
			MaxRounds: 5,
			Threshold: 0.85,
			Epsilon:   0.05,
			MaxTokens: 1024,
			Timeout:   10 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BaseWait:       500 * time.Millisecond,
			MaxWait:        8 * time.Second,
			AttemptTimeout: 60 * time.Second,
			OverallTimeout: 3 * time.Minute,
		},
	}
}
