package history

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/kvasst/depot/internal/storage/types"
)

// writePartitionFile writes a partition for the given day with one entry
// per timestamp, bypassing the store. Used to stage the disk tier.
func writePartitionFile(t *testing.T, dir string, kind types.Kind, day time.Time, entityID string, stamps ...time.Time) {
	t.Helper()
	kindDir := filepath.Join(dir, string(kind))
	if err := os.MkdirAll(kindDir, 0755); err != nil {
		t.Fatal(err)
	}

	var entries []Entry
	for i, ts := range stamps {
		entries = append(entries, Entry{
			ID:        day.Format(dayFormat) + "-" + strconv.Itoa(i),
			EntityID:  entityID,
			Timestamp: ts.Unix(),
			Action:    "update",
		})
	}
	path := filepath.Join(kindDir, day.Format(dayFormat)+".json")
	if err := appendPartition(path, entries); err != nil {
		t.Fatal(err)
	}
}

func TestTwoTierMerge(t *testing.T) {
	clock := newTestClock(testEpoch)
	dir := t.TempDir()

	// Disk tier: a partition 20 days old, well outside the 7-day memory
	// window, with three entries.
	oldDay := dayStart(testEpoch).AddDate(0, 0, -20)
	writePartitionFile(t, dir, types.KindItem, oldDay, "i0001",
		oldDay.Add(1*time.Hour), oldDay.Add(2*time.Hour), oldDay.Add(3*time.Hour))

	s := New(Options{Dir: dir, RetentionDays: 90, FlushThreshold: 100, MemoryWindowDays: 7, Now: clock.Now})
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	// Memory tier: two fresh entries.
	for i := 0; i < 2; i++ {
		if err := s.Record(types.KindItem, "i0001", "update", nil); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Minute)
	}

	// The memory tier alone satisfies a small page: disk is not touched
	// and the newest entries come back.
	got, err := s.Get(types.KindItem, Query{EntityID: "i0001", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	if got[0].Timestamp < testEpoch.Unix() {
		t.Errorf("memory tier entries missing from first page: %+v", got)
	}

	// A larger page forces the disk scan and merges both tiers,
	// newest first across the boundary.
	got, err = s.Get(types.KindItem, Query{EntityID: "i0001", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("merged %d entries, want 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Timestamp < got[i].Timestamp {
			t.Errorf("merged sequence not descending at %d: %v", i, got)
		}
	}
	if got[4].ID != oldDay.Format(dayFormat)+"-0" {
		t.Errorf("oldest entry = %+v", got[4])
	}
}

func TestMergeWindowExcludesDiskOutsideRange(t *testing.T) {
	clock := newTestClock(testEpoch)
	dir := t.TempDir()

	dayA := dayStart(testEpoch).AddDate(0, 0, -30)
	dayB := dayStart(testEpoch).AddDate(0, 0, -20)
	writePartitionFile(t, dir, types.KindItem, dayA, "i0001", dayA.Add(time.Hour))
	writePartitionFile(t, dir, types.KindItem, dayB, "i0001", dayB.Add(time.Hour))

	s := New(Options{Dir: dir, RetentionDays: 90, FlushThreshold: 100, MemoryWindowDays: 7, Now: clock.Now})
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	// Window covering only dayB: dayA's partition is never opened.
	got, err := s.Get(types.KindItem, Query{
		EntityID: "i0001",
		Start:    dayB,
		End:      dayB.Add(24 * time.Hour),
		Limit:    10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].ID != dayB.Format(dayFormat)+"-0" {
		t.Errorf("wrong entry: %+v", got[0])
	}
}

func TestMemoryWinsOverStaleDiskCopy(t *testing.T) {
	clock := newTestClock(testEpoch)
	dir := t.TempDir()

	opts := Options{Dir: dir, RetentionDays: 90, FlushThreshold: 100, MemoryWindowDays: 7, Now: clock.Now}
	s := New(opts)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	// Record and flush: today's entries now exist in memory AND on disk.
	for i := 0; i < 3; i++ {
		if err := s.Record(types.KindItem, "i0001", "update", nil); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Second)
	}
	s.Flush()

	// A page larger than memory triggers the disk branch; today's
	// partition must not be scanned again or the entries would double.
	got, err := s.Get(types.KindItem, Query{EntityID: "i0001", Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d entries, want 3 (no duplicates from disk)", len(got))
	}
}

func TestPagination(t *testing.T) {
	clock := newTestClock(testEpoch)
	s := newTestStore(t, clock)

	for i := 0; i < 10; i++ {
		if err := s.Record(types.KindOrder, "o0001", "status", map[string]any{"seq": float64(i)}); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Second)
	}

	page1, err := s.Get(types.KindOrder, Query{EntityID: "o0001", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	page2, err := s.Get(types.KindOrder, Query{EntityID: "o0001", Limit: 3, Offset: 3})
	if err != nil {
		t.Fatal(err)
	}

	if page1[0].Data["seq"] != 9.0 || page1[2].Data["seq"] != 7.0 {
		t.Errorf("page1 = %v", page1)
	}
	if page2[0].Data["seq"] != 6.0 || page2[2].Data["seq"] != 4.0 {
		t.Errorf("page2 = %v", page2)
	}

	// Offset past the end yields an empty page, not an error.
	empty, err := s.Get(types.KindOrder, Query{EntityID: "o0001", Offset: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %d", len(empty))
	}
}

func TestCleanupRetention(t *testing.T) {
	clock := newTestClock(testEpoch)
	dir := t.TempDir()

	cutoff := dayStart(testEpoch).AddDate(0, 0, -90)
	before := cutoff.AddDate(0, 0, -1)
	after := cutoff.AddDate(0, 0, 1)

	// Files dated cutoff-1, cutoff, cutoff+1.
	for _, day := range []time.Time{before, cutoff, after} {
		writePartitionFile(t, dir, types.KindItem, day, "i0001", day.Add(time.Hour))
	}

	s := New(Options{Dir: dir, RetentionDays: 90, FlushThreshold: 100, MemoryWindowDays: 7, Now: clock.Now})
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	results := s.Cleanup()
	for _, res := range results {
		if res.Kind != types.KindItem {
			continue
		}
		if res.FilesDeleted != 1 {
			t.Errorf("deleted %d files, want 1", res.FilesDeleted)
		}
		if res.FilesKept != 2 {
			t.Errorf("kept %d files, want 2", res.FilesKept)
		}
	}

	days, err := listPartitions(filepath.Join(dir, "item"))
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 2 {
		t.Fatalf("%d partitions remain, want 2", len(days))
	}
	if !days[0].date.Equal(cutoff) || !days[1].date.Equal(after) {
		t.Errorf("wrong partitions survived: %v, %v", days[0].date, days[1].date)
	}
}

func TestSetRetentionPeriod(t *testing.T) {
	s := newTestStore(t, newTestClock(testEpoch))

	s.SetRetentionPeriod(30)
	if got := s.RetentionPeriod(); got != 30 {
		t.Errorf("retention = %d, want 30", got)
	}

	// Out-of-range values are ignored.
	s.SetRetentionPeriod(0)
	if got := s.RetentionPeriod(); got != 30 {
		t.Errorf("retention = %d after invalid set, want 30", got)
	}
}
