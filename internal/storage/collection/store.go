// Package collection implements the authoritative keyed storage for each
// entity kind.
//
// All reads and writes are served synchronously from in-memory maps, one
// per kind. Snapshots are loaded line by line at startup and written back
// whole via atomic temp-then-rename on flush. Writes mark a collection
// dirty; durability is deferred to the next flush (at-least-once, no
// per-write guarantee). The case-insensitive secondary index for item and
// box identifiers is maintained inside the same critical sections as the
// primary maps.
package collection

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kvasst/depot/internal/logging"
	"github.com/kvasst/depot/internal/storage/codec"
	"github.com/kvasst/depot/internal/storage/types"
)

// Sentinel errors for the store's invalid-argument and not-found taxonomy.
var (
	ErrNotFound    = errors.New("record not found")
	ErrEmptyID     = errors.New("empty record id")
	ErrNilRecord   = errors.New("nil record")
	ErrUnknownKind = errors.New("unknown collection kind")
)

// classField is the record field referencing a class record whose fields
// act as defaults for the entity.
const classField = "class"

// Store is the in-memory authority for all entity collections.
type Store struct {
	mu sync.RWMutex

	dir         string
	collections map[types.Kind]map[string]types.Record
	indexes     map[types.Kind]*caseIndex
	dirty       map[types.Kind]bool
	serials     *SerialGenerator

	log *slog.Logger
}

// LoadResult reports the outcome of loading one collection snapshot.
type LoadResult struct {
	Kind    types.Kind
	Records int
	Skipped int64
	Err     error
}

// FlushResult reports the outcome of one FlushDirty pass.
type FlushResult struct {
	Flushed []types.Kind
	Errors  []error
}

// Open creates a Store rooted at dir (the {DataDir}/base directory). The
// store starts empty; call Load to read snapshots and counters.
func Open(dir string) *Store {
	s := &Store{
		dir:         dir,
		collections: make(map[types.Kind]map[string]types.Record),
		indexes:     make(map[types.Kind]*caseIndex),
		dirty:       make(map[types.Kind]bool),
		log:         logging.Component("collection"),
	}
	for _, kind := range types.AllKinds() {
		s.collections[kind] = make(map[string]types.Record)
		if spec, _ := types.Spec(kind); spec.CaseInsensitive {
			s.indexes[kind] = newCaseIndex()
		}
	}
	return s
}

// Load reads every collection snapshot and the serial counters file.
// A failed collection is logged and left empty; the others still load.
// Load only fails outright when the base directory cannot be created or
// the counters file is unreadable.
func (s *Store) Load() ([]LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}

	results := make([]LoadResult, 0, len(types.AllKinds()))
	for _, kind := range types.AllKinds() {
		res := s.loadCollection(kind)
		results = append(results, res)
		if res.Err != nil {
			s.log.Error("collection load failed", "kind", kind, "error", res.Err)
			continue
		}
		if res.Skipped > 0 {
			s.log.Warn("skipped corrupt snapshot lines", "kind", kind, "skipped", res.Skipped)
		}
		s.log.Info("collection loaded", "kind", kind, "records", res.Records)
	}

	s.applyClassDefaults()

	gen, err := newSerialGenerator(filepath.Join(s.dir, CountersFile))
	if err != nil {
		return results, fmt.Errorf("load serial counters: %w", err)
	}
	s.serials = gen

	return results, nil
}

func (s *Store) loadCollection(kind types.Kind) LoadResult {
	records, stats, err := codec.ReadRecords(s.snapshotPath(kind))
	if err != nil {
		return LoadResult{Kind: kind, Err: err}
	}

	coll := s.collections[kind]
	idx := s.indexes[kind]
	for _, rec := range records {
		id := rec.ID()
		coll[id] = rec
		if idx != nil {
			idx.set(id)
		}
	}
	return LoadResult{Kind: kind, Records: len(coll), Skipped: stats.Skipped}
}

// applyClassDefaults copies fields from a referenced class record into
// every entity missing them. This replaces the source system's dynamic
// prototype reparenting with an explicit merge after deserialization.
func (s *Store) applyClassDefaults() {
	classes := s.collections[types.KindClass]
	if len(classes) == 0 {
		return
	}

	for kind, coll := range s.collections {
		if kind == types.KindClass {
			continue
		}
		for _, rec := range coll {
			ref, ok := rec[classField].(string)
			if !ok || ref == "" {
				continue
			}
			class, ok := classes[ref]
			if !ok {
				continue
			}
			for field, v := range class {
				if field == types.KeyField || field == classField {
					continue
				}
				if _, present := rec[field]; !present {
					rec[field] = types.CloneValue(v)
				}
			}
		}
	}
}

// Get returns a copy of the record stored under id. For case-insensitive
// kinds a direct miss falls back to the secondary index. An index entry
// resolving to a vanished key reports not-found rather than failing.
func (s *Store) Get(kind types.Kind, id string) (types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if rec, ok := coll[id]; ok {
		return rec.Clone(), nil
	}
	if idx := s.indexes[kind]; idx != nil {
		if canonical, ok := idx.resolve(id); ok {
			if rec, ok := coll[canonical]; ok {
				return rec.Clone(), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, kind, id)
}

// Put inserts or overwrites the record under id. This is an overwrite,
// not a merge: callers read-modify-write. The stored copy is detached
// from the caller's record, the primary-key field is set when missing,
// and the collection is marked dirty.
func (s *Store) Put(kind types.Kind, id string, rec types.Record) error {
	if id == "" {
		return ErrEmptyID
	}
	if rec == nil {
		return ErrNilRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	stored := rec.Clone()
	if stored.ID() != id {
		created := stored.CreatedAt()
		if created.IsZero() {
			created = now()
		}
		stored.SetKey(id, created)
	}

	coll[id] = stored
	if idx := s.indexes[kind]; idx != nil {
		// Ids that differ only by case share one index slot: the later
		// Put repoints it, so the index resolves to the last writer.
		idx.set(id)
	}
	s.dirty[kind] = true
	return nil
}

// Delete removes the record under id, resolving through the
// case-insensitive index when the direct key is absent. The index entry
// is removed in the same critical section.
func (s *Store) Delete(kind types.Kind, id string) error {
	if id == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	idx := s.indexes[kind]
	canonical := id
	if _, ok := coll[canonical]; !ok {
		if idx == nil {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, kind, id)
		}
		resolved, ok := idx.resolve(id)
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, kind, id)
		}
		if _, ok := coll[resolved]; !ok {
			// Stale index entry; drop it and report not-found.
			idx.remove(id)
			return fmt.Errorf("%w: %s/%s", ErrNotFound, kind, id)
		}
		canonical = resolved
	}

	delete(coll, canonical)
	if idx != nil {
		idx.remove(canonical)
	}
	s.dirty[kind] = true
	return nil
}

// List returns a detached copy of the whole collection, keyed by
// canonical id. Scan-style queries filter over this.
func (s *Store) List(kind types.Kind) (map[string]types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	out := make(map[string]types.Record, len(coll))
	for id, rec := range coll {
		out[id] = rec.Clone()
	}
	return out, nil
}

// Count returns the number of records in a collection.
func (s *Store) Count(kind types.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[kind])
}

// GenerateSerial issues the next identifier for prefix. See
// SerialGenerator.Generate for prefix semantics and durability.
func (s *Store) GenerateSerial(prefix string) (string, error) {
	s.mu.RLock()
	gen := s.serials
	s.mu.RUnlock()

	if gen == nil {
		return "", fmt.Errorf("serial counters not loaded")
	}
	return gen.Generate(prefix)
}

// SerialCounters returns the current counter state, for diagnostics.
func (s *Store) SerialCounters() SerialCounters {
	s.mu.RLock()
	gen := s.serials
	s.mu.RUnlock()

	if gen == nil {
		return SerialCounters{}
	}
	return gen.Counters()
}

// FlushDirty writes every dirty collection to its snapshot file. A failed
// collection stays dirty and is retried on the next pass; its failure
// does not block the others.
func (s *Store) FlushDirty() FlushResult {
	s.mu.Lock()
	pending := make(map[types.Kind][]types.Record)
	for kind, d := range s.dirty {
		if !d {
			continue
		}
		coll := s.collections[kind]
		records := make([]types.Record, 0, len(coll))
		for _, rec := range coll {
			records = append(records, rec)
		}
		pending[kind] = records
		s.dirty[kind] = false
	}
	s.mu.Unlock()

	var result FlushResult
	for kind, records := range pending {
		if err := WriteSnapshot(s.snapshotPath(kind), records); err != nil {
			s.log.Error("snapshot flush failed", "kind", kind, "error", err)
			result.Errors = append(result.Errors, fmt.Errorf("flush %s: %w", kind, err))
			s.mu.Lock()
			s.dirty[kind] = true
			s.mu.Unlock()
			continue
		}
		s.log.Debug("snapshot flushed", "kind", kind, "records", len(records))
		result.Flushed = append(result.Flushed, kind)
	}
	return result
}

// DirtyKinds returns the kinds with unflushed changes.
func (s *Store) DirtyKinds() []types.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Kind
	for kind, d := range s.dirty {
		if d {
			out = append(out, kind)
		}
	}
	return out
}

func (s *Store) snapshotPath(kind types.Kind) string {
	return filepath.Join(s.dir, string(kind)+".json")
}

func now() time.Time {
	return time.Now().UTC()
}
