// Package storage wires the collection store and the history store into a
// single engine with background snapshot and retention workers.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kvasst/depot/internal/config"
	"github.com/kvasst/depot/internal/logging"
	"github.com/kvasst/depot/internal/storage/collection"
	"github.com/kvasst/depot/internal/storage/history"
	"github.com/kvasst/depot/internal/storage/metrics"
	"github.com/kvasst/depot/internal/storage/stats"
	"github.com/kvasst/depot/internal/storage/types"
)

// ErrClosed is returned by mutating operations after Stop.
var ErrClosed = errors.New("engine closed")

// Engine orchestrates the persistent collections and the audit history.
type Engine struct {
	cfg *config.Config

	collections *collection.Store
	history     *history.Store
	stats       *stats.Recorder
	metrics     *metrics.Metrics

	running   atomic.Bool
	closed    atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	startTime time.Time

	log *slog.Logger
}

// New creates an engine rooted at cfg.Storage.DataDir. Collectors are
// registered on m's registry; pass nil to get an isolated registry.
func New(cfg *config.Config, m *metrics.Metrics) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	dataDir := cfg.Storage.DataDir
	return &Engine{
		cfg:         cfg,
		collections: collection.Open(filepath.Join(dataDir, "base")),
		history: history.New(history.Options{
			Dir:              filepath.Join(dataDir, "history"),
			RetentionDays:    cfg.History.RetentionDays,
			FlushThreshold:   cfg.History.FlushThreshold,
			MemoryWindowDays: cfg.History.MemoryWindowDays,
		}),
		stats:   stats.NewRecorder(),
		metrics: m,
		stopCh:  make(chan struct{}),
		log:     logging.Component("engine"),
	}, nil
}

// Load reads all snapshots and recent history partitions from disk.
func (e *Engine) Load() error {
	results, err := e.collections.Load()
	if err != nil {
		return fmt.Errorf("load collections: %w", err)
	}
	for _, r := range results {
		e.metrics.Records.WithLabelValues(string(r.Kind)).Set(float64(r.Records))
	}

	if err := e.history.Load(); err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return nil
}

// Start launches the autosave and retention workers.
func (e *Engine) Start() error {
	if e.running.Load() {
		return fmt.Errorf("engine already running")
	}
	e.running.Store(true)
	e.startTime = time.Now()

	e.wg.Add(1)
	go e.autosaveWorker()

	e.wg.Add(1)
	go e.cleanupWorker()

	e.log.Info("engine started",
		"data_dir", e.cfg.Storage.DataDir,
		"autosave_interval", e.cfg.Storage.AutoSaveInterval,
		"retention_days", e.history.RetentionPeriod())
	return nil
}

// Stop halts the workers and flushes all pending state to disk.
func (e *Engine) Stop() error {
	if !e.running.Load() {
		return nil
	}
	e.running.Store(false)
	e.closed.Store(true)
	close(e.stopCh)
	e.wg.Wait()

	res := e.Flush()
	if len(res.Errors) > 0 {
		return fmt.Errorf("final flush: %d snapshot writes failed", len(res.Errors))
	}
	e.log.Info("engine stopped")
	return nil
}

// IsRunning reports whether the workers are active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Get returns a detached copy of one record.
func (e *Engine) Get(kind types.Kind, id string) (types.Record, error) {
	defer e.stats.Observe("get")()
	rec, err := e.collections.Get(kind, id)
	e.count(kind, "get", err)
	return rec, err
}

// Put inserts or replaces one record.
func (e *Engine) Put(kind types.Kind, id string, rec types.Record) error {
	if e.closed.Load() {
		return ErrClosed
	}
	defer e.stats.Observe("put")()
	err := e.collections.Put(kind, id, rec)
	e.count(kind, "put", err)
	if err == nil {
		e.metrics.Records.WithLabelValues(string(kind)).Set(float64(e.collections.Count(kind)))
	}
	return err
}

// Delete removes one record.
func (e *Engine) Delete(kind types.Kind, id string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	defer e.stats.Observe("delete")()
	err := e.collections.Delete(kind, id)
	e.count(kind, "delete", err)
	if err == nil {
		e.metrics.Records.WithLabelValues(string(kind)).Set(float64(e.collections.Count(kind)))
	}
	return err
}

// List returns detached copies of every record in a collection.
func (e *Engine) List(kind types.Kind) (map[string]types.Record, error) {
	defer e.stats.Observe("list")()
	recs, err := e.collections.List(kind)
	e.count(kind, "list", err)
	return recs, err
}

// Count returns the number of records in a collection.
func (e *Engine) Count(kind types.Kind) int {
	return e.collections.Count(kind)
}

// GenerateSerial issues the next serial number for a prefix.
func (e *Engine) GenerateSerial(prefix string) (string, error) {
	if e.closed.Load() {
		return "", ErrClosed
	}
	defer e.stats.Observe("serial")()
	id, err := e.collections.GenerateSerial(prefix)
	if err == nil {
		e.metrics.SerialsGenerated.WithLabelValues(prefix).Inc()
	}
	return id, err
}

// SerialCounters returns the current serial counter values.
func (e *Engine) SerialCounters() collection.SerialCounters {
	return e.collections.SerialCounters()
}

// RecordHistory appends one audit entry for a tracked kind.
func (e *Engine) RecordHistory(kind types.Kind, entityID, action string, data map[string]any) error {
	if e.closed.Load() {
		return ErrClosed
	}
	defer e.stats.Observe("history.record")()
	err := e.history.Record(kind, entityID, action, data)
	if err == nil {
		e.metrics.HistoryEntries.WithLabelValues(string(kind)).Inc()
	}
	return err
}

// History queries an entity's audit trail, newest first.
func (e *Engine) History(kind types.Kind, q history.Query) ([]history.Entry, error) {
	defer e.stats.Observe("history.get")()
	return e.history.Get(kind, q)
}

// ExportHistory renders an entity's audit trail to w.
func (e *Engine) ExportHistory(kind types.Kind, q history.Query, format history.Format, w io.Writer) error {
	defer e.stats.Observe("history.export")()
	return e.history.Export(kind, q, format, w)
}

// Flush writes all dirty snapshots and pending history entries to disk.
func (e *Engine) Flush() collection.FlushResult {
	defer e.stats.Observe("flush")()

	res := e.collections.FlushDirty()
	e.metrics.SnapshotFlushes.Inc()
	for range res.Errors {
		e.metrics.SnapshotFlushErrors.Inc()
	}
	e.history.Flush()
	return res
}

// SetRetentionPeriod changes the history retention window in days.
// Values below one day are ignored.
func (e *Engine) SetRetentionPeriod(days int) {
	e.history.SetRetentionPeriod(days)
}

// RetentionPeriod returns the history retention window in days.
func (e *Engine) RetentionPeriod() int {
	return e.history.RetentionPeriod()
}

// RunCleanup deletes history partitions older than the retention period.
func (e *Engine) RunCleanup() []history.CleanupResult {
	defer e.stats.Observe("cleanup")()

	results := e.history.Cleanup()
	for _, r := range results {
		e.metrics.HistoryFilesDeleted.Add(float64(r.FilesDeleted))
	}
	return results
}

// EngineStats is a point-in-time summary exposed on the stats endpoint.
type EngineStats struct {
	Running        bool                      `json:"running"`
	UptimeSeconds  float64                   `json:"uptimeSeconds"`
	Records        map[string]int            `json:"records"`
	Serials        collection.SerialCounters `json:"serials"`
	HistoryPending int                       `json:"historyPending"`
	Operations     []stats.OpResult          `json:"operations"`
}

// Stats returns combined engine statistics.
func (e *Engine) Stats() EngineStats {
	var uptime time.Duration
	if !e.startTime.IsZero() {
		uptime = time.Since(e.startTime)
	}

	records := make(map[string]int)
	for _, kind := range types.AllKinds() {
		records[string(kind)] = e.collections.Count(kind)
	}

	return EngineStats{
		Running:        e.running.Load(),
		UptimeSeconds:  uptime.Seconds(),
		Records:        records,
		Serials:        e.collections.SerialCounters(),
		HistoryPending: e.history.Pending(),
		Operations:     e.stats.Snapshot(),
	}
}

// Metrics returns the Prometheus collectors.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

func (e *Engine) count(kind types.Kind, op string, err error) {
	e.metrics.Operations.WithLabelValues(string(kind), op).Inc()
	if err != nil {
		e.metrics.OperationErrors.WithLabelValues(string(kind), op).Inc()
	}
}

// autosaveWorker periodically flushes dirty snapshots and buffered history.
func (e *Engine) autosaveWorker() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Storage.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			res := e.Flush()
			if len(res.Errors) > 0 {
				e.log.Warn("autosave flush had errors", "errors", len(res.Errors))
			}
		}
	}
}

// cleanupWorker periodically enforces history retention.
func (e *Engine) cleanupWorker() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.History.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			for _, r := range e.RunCleanup() {
				if r.FilesDeleted > 0 || len(r.Errors) > 0 {
					e.log.Info("retention cleanup",
						"kind", r.Kind, "deleted", r.FilesDeleted, "errors", len(r.Errors))
				}
			}
		}
	}
}
