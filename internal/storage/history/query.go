package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/kvasst/depot/internal/storage/types"
)

// DefaultQueryLimit applies when a query asks for no explicit limit.
const DefaultQueryLimit = 100

// Query defines a filtered, paginated history lookup.
type Query struct {
	// EntityID selects entries for one entity. Required.
	EntityID string

	// Action filters by action tag when non-empty.
	Action string

	// Start and End bound the time window, inclusive. Zero means
	// unbounded on that side.
	Start time.Time
	End   time.Time

	// Limit and Offset paginate the newest-first result.
	Limit  int
	Offset int
}

func (q Query) matches(e Entry) bool {
	if e.EntityID != q.EntityID {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if !q.Start.IsZero() && e.Timestamp < q.Start.Unix() {
		return false
	}
	if !q.End.IsZero() && e.Timestamp > q.End.Unix() {
		return false
	}
	return true
}

// Get returns matching entries newest first.
//
// The in-memory tier is filtered first; when it alone satisfies
// limit+offset the page is cut from it directly. Otherwise partition
// files whose date falls inside the query window, and before the days
// the memory tier covers (so a buffered day always wins over its
// on-disk copy), are scanned and merged in, the union re-sorted
// descending, and the page cut from the merged sequence.
func (s *Store) Get(kind types.Kind, q Query) ([]Entry, error) {
	if q.EntityID == "" {
		return nil, ErrEmptyEntityID
	}
	if q.Limit <= 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUntrackedKind, kind)
	}

	// Memory tier, newest first.
	var matched []Entry
	for i := len(buf.entries) - 1; i >= 0; i-- {
		if q.matches(buf.entries[i]) {
			matched = append(matched, buf.entries[i])
		}
	}

	if len(matched) >= q.Limit+q.Offset {
		return page(matched, q), nil
	}

	// Disk tier: partitions inside the window, older than memory coverage.
	floor := s.memoryFloorLocked()
	days, err := listPartitions(s.kindDir(kind))
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	for _, day := range days {
		if !day.date.Before(floor) {
			continue
		}
		if !q.Start.IsZero() && day.date.Before(dayStart(q.Start)) {
			continue
		}
		if !q.End.IsZero() && day.date.After(dayStart(q.End)) {
			continue
		}

		entries, stats, err := readPartition(day.path)
		if err != nil {
			s.log.Error("partition scan failed", "kind", kind, "file", day.path, "error", err)
			continue
		}
		if stats.Skipped > 0 {
			s.log.Warn("skipped corrupt history lines", "kind", kind, "file", day.path, "skipped", stats.Skipped)
		}
		for _, e := range entries {
			if q.matches(e) {
				matched = append(matched, e)
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp > matched[j].Timestamp
	})
	return page(matched, q), nil
}

func page(entries []Entry, q Query) []Entry {
	if q.Offset >= len(entries) {
		return nil
	}
	entries = entries[q.Offset:]
	if len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
