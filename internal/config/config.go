// Package config loads convo's configuration from the XDG config directory,
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/convo-sh/convo/internal/session"
)

type Config struct {
	Server       ServerConfig   `mapstructure:"server"`
	WorkingDir   string         `mapstructure:"working_dir"`
	SystemPrompt string         `mapstructure:"system_prompt"` // preset id, resolved by the daemon
	Sessions     session.Config `mapstructure:"sessions"`
	History      HistoryConfig  `mapstructure:"history"`
}

// ServerConfig locates the reasoning agent daemon.
type ServerConfig struct {
	URL       string `mapstructure:"url"`
	SecretKey string `mapstructure:"secret_key"`
}

// HistoryConfig configures the recent-input recorder.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // Override default location
}

// GetConfigDir returns the XDG config directory for convo.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "convo"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "convo"), nil
}

// InputHistoryPath returns the effective recent-input log path.
func (c *Config) InputHistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dataDir, err := session.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "input_history"), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("convo")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.url", "http://127.0.0.1:3000")
	viper.SetDefault("system_prompt", "")
	viper.SetDefault("sessions.enabled", true)
	viper.SetDefault("sessions.max_age_days", 0)
	viper.SetDefault("sessions.max_count", 0)
	viper.SetDefault("history.enabled", true)

	// Read config file (optional - won't error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.WorkingDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.WorkingDir = cwd
		}
	}

	return &cfg, nil
}
