// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// RemoteConfig holds remote store settings.
type RemoteConfig struct {
	URL         string `yaml:"url"`          // row store base URL
	RealtimeURL string `yaml:"realtime_url"` // push channel endpoint (derived from URL when empty)
	Account     string `yaml:"account"`      // owning identity
}

// SyncConfig holds synchronization settings.
type SyncConfig struct {
	DebounceMs     int `yaml:"debounce_ms"`     // quiet period after the last mutation before upload
	RetentionHours int `yaml:"retention_hours"` // recycle bin retention window
}

// Config represents the application configuration.
type Config struct {
	DataDir string       `yaml:"data_dir"`
	Remote  RemoteConfig `yaml:"remote"`
	Sync    SyncConfig   `yaml:"sync"`
	Verbose bool         `yaml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: GetDataDir(),
		Sync: SyncConfig{
			DebounceMs:     1500,
			RetentionHours: 24,
		},
	}
}

// Load loads configuration from the specified path, or the default XDG
// path if empty. A missing config file is not an error: defaults apply,
// and environment variables override either way.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// No file: defaults plus env overrides.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.DataDir == "" {
		cfg.DataDir = GetDataDir()
	}
	cfg.DataDir = ExpandPath(cfg.DataDir)
	if cfg.Sync.DebounceMs <= 0 {
		cfg.Sync.DebounceMs = 1500
	}
	if cfg.Sync.RetentionHours <= 0 {
		cfg.Sync.RetentionHours = 24
	}

	return cfg, cfg.Validate()
}

// applyEnvOverrides lets environment variables win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRIDTASK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GRIDTASK_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("GRIDTASK_REALTIME_URL"); v != "" {
		cfg.Remote.RealtimeURL = v
	}
	if v := os.Getenv("GRIDTASK_ACCOUNT"); v != "" {
		cfg.Remote.Account = v
	}
	if v := os.Getenv("GRIDTASK_SYNC_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.DebounceMs = n
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Sync.DebounceMs < 0 {
		return fmt.Errorf("sync.debounce_ms must not be negative")
	}
	if c.Sync.RetentionHours < 0 {
		return fmt.Errorf("sync.retention_hours must not be negative")
	}
	return nil
}

// Debounce returns the sync debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Sync.DebounceMs) * time.Millisecond
}

// Retention returns the recycle bin retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Sync.RetentionHours) * time.Hour
}

// SyncConfigured reports whether a remote store is configured.
func (c *Config) SyncConfigured() bool {
	return c.Remote.URL != ""
}
