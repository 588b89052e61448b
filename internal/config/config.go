// Package config loads and validates the depot daemon configuration.
//
// Configuration is read from a YAML file, then overridden by environment
// variables, then by CLI flags (handled in cmd/depotd). Every value has a
// documented default in the root config package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kvasst/depot/config"
)

// Config represents the complete daemon configuration.
type Config struct {
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Storage configures the collection store.
	Storage StorageConfig `yaml:"storage"`

	// History configures the audit history store.
	History HistoryConfig `yaml:"history"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Listen is the listen address, e.g. "0.0.0.0:8470".
	Listen string `yaml:"listen"`

	// RequestTimeout bounds a single request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout is the graceful shutdown drain window.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodySize limits request body size in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`
}

// StorageConfig configures the collection store.
type StorageConfig struct {
	// DataDir is the root directory for all storage files.
	DataDir string `yaml:"data_dir"`

	// AutoSaveInterval is how often dirty collections are flushed.
	AutoSaveInterval time.Duration `yaml:"autosave_interval"`
}

// HistoryConfig configures the audit history store.
type HistoryConfig struct {
	// RetentionDays is how long daily partitions are kept.
	RetentionDays int `yaml:"retention_days"`

	// FlushThreshold is the unflushed-entry count that forces a flush.
	FlushThreshold int `yaml:"flush_threshold"`

	// MemoryWindowDays is how many days of partitions are held in memory.
	MemoryWindowDays int `yaml:"memory_window_days"`

	// CleanupInterval is how often retention cleanup runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches output to JSON format.
	JSON bool `yaml:"json"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          config.DefaultListenAddress,
			RequestTimeout:  config.DefaultRequestTimeout,
			ShutdownTimeout: config.DefaultShutdownTimeout,
			MaxBodySize:     config.DefaultMaxBodySize,
		},
		Storage: StorageConfig{
			DataDir:          config.DefaultDataDir,
			AutoSaveInterval: config.DefaultAutoSaveInterval,
		},
		History: HistoryConfig{
			RetentionDays:    config.DefaultRetentionDays,
			FlushThreshold:   config.DefaultFlushThreshold,
			MemoryWindowDays: config.DefaultMemoryWindowDays,
			CleanupInterval:  config.DefaultCleanupInterval,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file and applies environment
// overrides. A missing file is reported via os.IsNotExist so callers can
// fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides configuration values from environment variables.
// Unparseable values are ignored in favor of the configured ones.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DEPOT_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("DEPOT_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("DEPOT_AUTOSAVE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Storage.AutoSaveInterval = d
		}
	}
	if v := os.Getenv("DEPOT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.RetentionDays = n
		}
	}
	if v := os.Getenv("DEPOT_FLUSH_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.FlushThreshold = n
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.AutoSaveInterval <= 0 {
		return fmt.Errorf("storage.autosave_interval must be positive, got %v", c.Storage.AutoSaveInterval)
	}
	if c.History.RetentionDays <= 0 {
		return fmt.Errorf("history.retention_days must be positive, got %d", c.History.RetentionDays)
	}
	if c.History.FlushThreshold <= 0 {
		return fmt.Errorf("history.flush_threshold must be positive, got %d", c.History.FlushThreshold)
	}
	if c.History.MemoryWindowDays <= 0 {
		return fmt.Errorf("history.memory_window_days must be positive, got %d", c.History.MemoryWindowDays)
	}
	if c.History.CleanupInterval <= 0 {
		return fmt.Errorf("history.cleanup_interval must be positive, got %v", c.History.CleanupInterval)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	return nil
}
