// Package metrics exposes Prometheus instrumentation for the storage engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. All collectors are
// registered against the registry passed to New, so tests can use isolated
// registries.
type Metrics struct {
	registry *prometheus.Registry

	// Operations counts engine operations by kind and op.
	Operations *prometheus.CounterVec

	// OperationErrors counts failed operations by kind and op.
	OperationErrors *prometheus.CounterVec

	// Records tracks the number of live records per collection.
	Records *prometheus.GaugeVec

	// SnapshotFlushes counts snapshot flush passes.
	SnapshotFlushes prometheus.Counter

	// SnapshotFlushErrors counts failed snapshot writes.
	SnapshotFlushErrors prometheus.Counter

	// HistoryEntries counts recorded history entries by kind.
	HistoryEntries *prometheus.CounterVec

	// HistoryFilesDeleted counts partitions removed by retention cleanup.
	HistoryFilesDeleted prometheus.Counter

	// SerialsGenerated counts generated serial numbers by prefix.
	SerialsGenerated *prometheus.CounterVec
}

// New creates the engine collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by collection kind and operation.",
		}, []string{"kind", "op"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "engine",
			Name:      "operation_errors_total",
			Help:      "Failed engine operations by collection kind and operation.",
		}, []string{"kind", "op"}),
		Records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "depot",
			Subsystem: "engine",
			Name:      "records",
			Help:      "Live records per collection.",
		}, []string{"kind"}),
		SnapshotFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "engine",
			Name:      "snapshot_flushes_total",
			Help:      "Snapshot flush passes.",
		}),
		SnapshotFlushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "engine",
			Name:      "snapshot_flush_errors_total",
			Help:      "Failed snapshot writes.",
		}),
		HistoryEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "history",
			Name:      "entries_total",
			Help:      "Recorded history entries by collection kind.",
		}, []string{"kind"}),
		HistoryFilesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "history",
			Name:      "files_deleted_total",
			Help:      "History partitions removed by retention cleanup.",
		}),
		SerialsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "engine",
			Name:      "serials_generated_total",
			Help:      "Generated serial numbers by prefix.",
		}, []string{"prefix"}),
	}

	reg.MustRegister(
		m.Operations,
		m.OperationErrors,
		m.Records,
		m.SnapshotFlushes,
		m.SnapshotFlushErrors,
		m.HistoryEntries,
		m.HistoryFilesDeleted,
		m.SerialsGenerated,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
