package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if cfg.History.RetentionDays != 90 {
		t.Errorf("expected retention 90 days, got %d", cfg.History.RetentionDays)
	}
	if cfg.Storage.AutoSaveInterval != 5*time.Minute {
		t.Errorf("expected autosave 5m, got %v", cfg.Storage.AutoSaveInterval)
	}
	if cfg.History.FlushThreshold != 100 {
		t.Errorf("expected flush threshold 100, got %d", cfg.History.FlushThreshold)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  listen: "127.0.0.1:9999"
storage:
  data_dir: /tmp/depot-test
  autosave_interval: 30s
history:
  retention_days: 14
  flush_threshold: 50
logging:
  level: debug
  json: true
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Listen != "127.0.0.1:9999" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Storage.AutoSaveInterval != 30*time.Second {
		t.Errorf("autosave = %v", cfg.Storage.AutoSaveInterval)
	}
	if cfg.History.RetentionDays != 14 {
		t.Errorf("retention = %d", cfg.History.RetentionDays)
	}
	// Values absent from the file keep their defaults.
	if cfg.History.MemoryWindowDays != 7 {
		t.Errorf("memory window = %d, want default 7", cfg.History.MemoryWindowDays)
	}
	if !cfg.Logging.JSON {
		t.Error("expected JSON logging enabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected IsNotExist error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DEPOT_DATA_DIR", "/srv/depot")
	t.Setenv("DEPOT_RETENTION_DAYS", "30")
	t.Setenv("DEPOT_AUTOSAVE_INTERVAL", "2m")
	t.Setenv("DEPOT_FLUSH_THRESHOLD", "not-a-number")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Storage.DataDir != "/srv/depot" {
		t.Errorf("data dir = %q", cfg.Storage.DataDir)
	}
	if cfg.History.RetentionDays != 30 {
		t.Errorf("retention = %d", cfg.History.RetentionDays)
	}
	if cfg.Storage.AutoSaveInterval != 2*time.Minute {
		t.Errorf("autosave = %v", cfg.Storage.AutoSaveInterval)
	}
	// Unparseable override keeps the configured value.
	if cfg.History.FlushThreshold != 100 {
		t.Errorf("flush threshold = %d", cfg.History.FlushThreshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = "" }, true},
		{"zero retention", func(c *Config) { c.History.RetentionDays = 0 }, true},
		{"negative threshold", func(c *Config) { c.History.FlushThreshold = -1 }, true},
		{"zero autosave", func(c *Config) { c.Storage.AutoSaveInterval = 0 }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"empty listen", func(c *Config) { c.Server.Listen = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
