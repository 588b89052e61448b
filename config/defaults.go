// Package config provides configuration defaults and utilities
// for the depot application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or environment variables.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default HTTP listen address.
	// Override via config: server.listen
	DefaultListenAddress = "0.0.0.0:8470"

	// DefaultRequestTimeout bounds a single HTTP request.
	// Override via config: server.request_timeout
	DefaultRequestTimeout = 30 * time.Second

	// DefaultShutdownTimeout is how long to wait for in-flight requests
	// during shutdown before forcing the listener closed.
	// Override via config: server.shutdown_timeout
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultMaxBodySize limits request body size to prevent OOM.
	// Override via config: server.max_body_size
	DefaultMaxBodySize = 4 * 1024 * 1024
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultDataDir is the root directory for all storage files.
	// Collections live under {DataDir}/base, history under {DataDir}/history.
	// Override via config: storage.data_dir or DEPOT_DATA_DIR
	DefaultDataDir = "/var/lib/depot"

	// DefaultAutoSaveInterval is how often dirty collections and pending
	// history entries are flushed to disk.
	// Override via config: storage.autosave_interval or DEPOT_AUTOSAVE_INTERVAL
	DefaultAutoSaveInterval = 5 * time.Minute

	// DefaultSerialPadWidth is the zero-pad width of generated serial numbers.
	DefaultSerialPadWidth = 6

	// FirstFreeItemCounter is the starting value of the generated item-like
	// serial range. Scanned serials are assigned by operators from the low
	// range; generated ones start here so the two never collide.
	FirstFreeItemCounter = 100000
)

// =============================================================================
// History Defaults
// =============================================================================

const (
	// DefaultRetentionDays is how long daily history partitions are kept
	// before retention cleanup deletes them.
	// Override via config: history.retention_days or DEPOT_RETENTION_DAYS
	DefaultRetentionDays = 90

	// DefaultFlushThreshold is the number of unflushed history entries that
	// triggers an immediate partition flush. Bounds memory under heavy
	// activity at the cost of more frequent small writes.
	// Override via config: history.flush_threshold or DEPOT_FLUSH_THRESHOLD
	DefaultFlushThreshold = 100

	// DefaultMemoryWindowDays is how many days of history partitions are
	// loaded into the in-memory tier at startup. Older partitions within the
	// retention window stay on disk and are scanned on demand.
	// Override via config: history.memory_window_days
	DefaultMemoryWindowDays = 7

	// DefaultCleanupInterval is how often retention cleanup runs.
	// Override via config: history.cleanup_interval
	DefaultCleanupInterval = 24 * time.Hour
)
