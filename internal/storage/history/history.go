// Package history implements the per-kind audit trail: an append-only,
// date-partitioned log with an in-memory recent tier, merged two-tier
// queries, and retention-based cleanup.
//
// Every mutating business operation appends an Entry. Entries buffer in
// memory and are appended to their daily partition file
// ({Dir}/{kind}/{YYYY-MM-DD}.json, one JSON object per line) when the
// unflushed count crosses the flush threshold, on the autosave tick, or
// at shutdown. Partitions older than the retention window are deleted
// whole; no entry is ever mutated or deleted individually.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appcfg "github.com/kvasst/depot/config"
	"github.com/kvasst/depot/internal/logging"
	"github.com/kvasst/depot/internal/storage/codec"
	"github.com/kvasst/depot/internal/storage/types"
)

// dayFormat is the partition filename date layout.
const dayFormat = "2006-01-02"

// Sentinel errors for the history store's invalid-argument taxonomy.
var (
	ErrUntrackedKind = errors.New("kind has no history tracking")
	ErrEmptyEntityID = errors.New("empty entity id")
)

// Entry is one immutable audit record.
type Entry struct {
	ID        string         `json:"id"`
	EntityID  string         `json:"entityId"`
	Timestamp int64          `json:"ts"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
}

// Options configures the history store.
type Options struct {
	// Dir is the history root directory ({DataDir}/history).
	Dir string

	// RetentionDays is the partition retention window.
	RetentionDays int

	// FlushThreshold is the unflushed-entry count forcing a flush.
	FlushThreshold int

	// MemoryWindowDays is how many days of partitions the in-memory tier
	// holds. Older partitions are scanned on demand.
	MemoryWindowDays int

	// Now is the clock; defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

func (o *Options) applyDefaults() {
	if o.RetentionDays <= 0 {
		o.RetentionDays = appcfg.DefaultRetentionDays
	}
	if o.FlushThreshold <= 0 {
		o.FlushThreshold = appcfg.DefaultFlushThreshold
	}
	if o.MemoryWindowDays <= 0 {
		o.MemoryWindowDays = appcfg.DefaultMemoryWindowDays
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// buffer is the in-memory tier for one kind. Entries are held in append
// order (ascending timestamps for live traffic); entries[:persisted] are
// already on disk.
type buffer struct {
	entries   []Entry
	persisted int
}

// Store is the audit history store for all tracked kinds.
type Store struct {
	mu      sync.Mutex
	opts    Options
	buffers map[types.Kind]*buffer
	log     *slog.Logger
}

// New creates a history store. Call Load before recording or querying.
func New(opts Options) *Store {
	opts.applyDefaults()

	s := &Store{
		opts:    opts,
		buffers: make(map[types.Kind]*buffer),
		log:     logging.Component("history"),
	}
	for _, kind := range types.TrackedKinds() {
		s.buffers[kind] = &buffer{}
	}
	return s
}

// Load ensures per-kind directories exist and reads partitions inside
// the memory window into the in-memory tier. Corrupt lines are skipped;
// a failed partition is logged and the rest still load.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	floor := s.memoryFloorLocked()

	for kind, buf := range s.buffers {
		dir := s.kindDir(kind)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create history dir %s: %w", kind, err)
		}

		days, err := listPartitions(dir)
		if err != nil {
			s.log.Error("list partitions failed", "kind", kind, "error", err)
			continue
		}

		for _, day := range days {
			if day.date.Before(floor) {
				continue
			}
			entries, stats, err := readPartition(day.path)
			if err != nil {
				s.log.Error("partition load failed", "kind", kind, "file", day.path, "error", err)
				continue
			}
			if stats.Skipped > 0 {
				s.log.Warn("skipped corrupt history lines", "kind", kind, "file", day.path, "skipped", stats.Skipped)
			}
			buf.entries = append(buf.entries, entries...)
		}

		sort.SliceStable(buf.entries, func(i, j int) bool {
			return buf.entries[i].Timestamp < buf.entries[j].Timestamp
		})
		buf.persisted = len(buf.entries)

		s.log.Info("history loaded", "kind", kind, "entries", len(buf.entries))
	}
	return nil
}

// Record appends an audit entry for an entity. The data snapshot is
// deep-copied before buffering. Crossing the flush threshold triggers an
// immediate flush; a flush failure is logged and retried later, never
// surfaced to the caller (the in-memory append already succeeded).
func (s *Store) Record(kind types.Kind, entityID, action string, data map[string]any) error {
	if entityID == "" {
		return ErrEmptyEntityID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUntrackedKind, kind)
	}

	entry := Entry{
		ID:        uuid.NewString(),
		EntityID:  entityID,
		Timestamp: s.opts.Now().Unix(),
		Action:    action,
		Data:      copyData(data),
	}
	buf.entries = append(buf.entries, entry)

	if len(buf.entries)-buf.persisted >= s.opts.FlushThreshold {
		s.flushKindLocked(kind, buf)
	}
	return nil
}

// Flush appends all pending entries to their partition files and evicts
// entries that have aged out of the memory window.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for kind, buf := range s.buffers {
		s.flushKindLocked(kind, buf)
	}
}

// Pending returns the number of unflushed entries across all kinds.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, buf := range s.buffers {
		total += len(buf.entries) - buf.persisted
	}
	return total
}

// flushKindLocked appends buf's unflushed entries, grouped by day in
// order, to their partition files, then evicts entries older than the
// memory window. On error the remaining entries stay pending for the
// next pass.
func (s *Store) flushKindLocked(kind types.Kind, buf *buffer) {
	for buf.persisted < len(buf.entries) {
		day := dayOf(buf.entries[buf.persisted].Timestamp)
		end := buf.persisted
		for end < len(buf.entries) && dayOf(buf.entries[end].Timestamp) == day {
			end++
		}

		batch := buf.entries[buf.persisted:end]
		if err := appendPartition(filepath.Join(s.kindDir(kind), day+".json"), batch); err != nil {
			s.log.Error("history flush failed", "kind", kind, "day", day, "error", err)
			return
		}
		s.log.Debug("history flushed", "kind", kind, "day", day, "entries", len(batch))
		buf.persisted = end
	}

	s.evictLocked(buf)
}

// evictLocked drops persisted entries older than the memory window.
func (s *Store) evictLocked(buf *buffer) {
	floor := s.memoryFloorLocked().Unix()

	keep := 0
	for keep < buf.persisted && buf.entries[keep].Timestamp < floor {
		keep++
	}
	if keep == 0 {
		return
	}
	buf.entries = append([]Entry(nil), buf.entries[keep:]...)
	buf.persisted -= keep
}

// memoryFloorLocked returns the start of the oldest day the in-memory
// tier covers.
func (s *Store) memoryFloorLocked() time.Time {
	now := s.opts.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -(s.opts.MemoryWindowDays - 1))
}

func (s *Store) kindDir(kind types.Kind) string {
	return filepath.Join(s.opts.Dir, string(kind))
}

func copyData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	return types.Record(data).Clone()
}

func dayOf(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(dayFormat)
}

// partition is one daily file.
type partition struct {
	path string
	date time.Time
}

// listPartitions returns the daily files in dir, oldest first. Files
// whose names do not parse as dates are ignored.
func listPartitions(dir string) ([]partition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []partition
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		date, err := time.ParseInLocation(dayFormat, name[:len(name)-len(".json")], time.UTC)
		if err != nil {
			continue
		}
		out = append(out, partition{path: filepath.Join(dir, name), date: date})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out, nil
}

// readPartition loads all well-formed entries from one daily file.
func readPartition(path string) ([]Entry, codec.Stats, error) {
	var entries []Entry
	stats, err := codec.ScanFile(path, func(line []byte) error {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, stats, err
}

// appendPartition appends entries to a daily file, one JSON line each.
// Partitions are append-only; they are only ever removed whole by
// retention cleanup.
func appendPartition(path string, entries []Entry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open partition: %w", err)
	}
	defer f.Close()

	for _, e := range entries {
		line, err := codec.EncodeLine(e)
		if err != nil {
			return err
		}
		if _, err := f.Write(line); err != nil {
			return fmt.Errorf("append partition: %w", err)
		}
	}
	return nil
}
