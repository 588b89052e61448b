package codec

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kvasst/depot/internal/storage/types"
)

func TestScanLinesSkipsCorrupt(t *testing.T) {
	input := strings.Join([]string{
		`{"pk":["i0001",1700000000],"name":"drive"}`,
		`{not json`,
		``,
		`{"pk":["i0002",1700000001],"name":"fan"}`,
		`trailing garbage`,
	}, "\n")

	var decoded int
	stats, err := ScanLines(strings.NewReader(input), func(line []byte) error {
		if !bytes.HasPrefix(line, []byte("{")) || !bytes.HasSuffix(line, []byte("}")) {
			return os.ErrInvalid
		}
		decoded++
		return nil
	})
	if err != nil {
		t.Fatalf("ScanLines: %v", err)
	}

	if stats.LinesRead != 4 {
		t.Errorf("LinesRead = %d, want 4 (empty line not counted)", stats.LinesRead)
	}
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", stats.Skipped)
	}
	if decoded != 2 {
		t.Errorf("decoded = %d, want 2", decoded)
	}
}

func TestReadRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item.json")

	content := strings.Join([]string{
		`{"pk":["i0001",1700000000],"name":"drive"}`,
		`oops`,
		`{"name":"no key"}`,
		`{"pk":["i0002",1700000001],"name":"fan"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, stats, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID() != "i0001" || records[1].ID() != "i0002" {
		t.Errorf("record ids = %q, %q", records[0].ID(), records[1].ID())
	}
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2 (bad json and missing key)", stats.Skipped)
	}
}

func TestReadRecordsMissingFile(t *testing.T) {
	records, stats, err := ReadRecords(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file must not error, got %v", err)
	}
	if len(records) != 0 || stats.LinesRead != 0 {
		t.Errorf("expected empty result, got %d records", len(records))
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	in := []types.Record{
		types.NewRecord("i0001", now),
		types.NewRecord("i0002", now),
	}
	in[0]["name"] = "drive"
	in[1]["nested"] = map[string]any{"qty": 3.0}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteRecords(f, in); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}
	f.Close()

	out, stats, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if stats.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", stats.Skipped)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d records, want %d", len(out), len(in))
	}
	if out[0].ID() != "i0001" || out[0]["name"] != "drive" {
		t.Errorf("record 0 mismatch: %v", out[0])
	}
	if out[1]["nested"].(map[string]any)["qty"] != 3.0 {
		t.Errorf("record 1 mismatch: %v", out[1])
	}
}
