package collection

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kvasst/depot/internal/storage/codec"
	"github.com/kvasst/depot/internal/storage/types"
)

func TestWriteSnapshotReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item.json")

	first := []types.Record{types.NewRecord("i0001", time.Unix(1700000000, 0))}
	if err := WriteSnapshot(path, first); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	second := []types.Record{
		types.NewRecord("i0001", time.Unix(1700000000, 0)),
		types.NewRecord("i0002", time.Unix(1700000001, 0)),
	}
	if err := WriteSnapshot(path, second); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	records, _, err := codec.ReadRecords(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}

	// No temp files left behind on the success path.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("orphaned temp file %s", e.Name())
		}
	}
}

func TestInterruptedWriteLeavesPriorSnapshotIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item.json")

	prior := []types.Record{types.NewRecord("i0001", time.Unix(1700000000, 0))}
	if err := WriteSnapshot(path, prior); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash before rename: a fully or partially written temp
	// file exists alongside the real snapshot.
	tmp := filepath.Join(dir, ".item.json.tmp-crashed")
	if err := os.WriteFile(tmp, []byte(`{"pk":["i9999",17`), 0644); err != nil {
		t.Fatal(err)
	}

	records, stats, err := codec.ReadRecords(path)
	if err != nil {
		t.Fatalf("prior snapshot unreadable: %v", err)
	}
	if stats.Skipped != 0 {
		t.Errorf("prior snapshot corrupt: %d skipped lines", stats.Skipped)
	}
	if len(records) != 1 || records[0].ID() != "i0001" {
		t.Errorf("prior snapshot content changed: %v", records)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ini.json")

	if err := writeFileAtomic(path, []byte(`{"serialI":5}`)); err != nil {
		t.Fatalf("writeFileAtomic: %v", err)
	}
	if err := writeFileAtomic(path, []byte(`{"serialI":6}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"serialI":6}` {
		t.Errorf("content = %s", data)
	}
}
