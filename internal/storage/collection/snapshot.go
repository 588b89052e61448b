package collection

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kvasst/depot/internal/storage/codec"
	"github.com/kvasst/depot/internal/storage/types"
)

// WriteSnapshot materializes a full collection to path atomically.
//
// All records are written to a temporary file in the same directory, then
// renamed over the target. A crash mid-write leaves the previous snapshot
// intact with only an orphaned temp file; a crash after the rename leaves
// the new snapshot intact. Atomicity is whole-file: concurrent writers to
// the same collection are not supported.
func WriteSnapshot(path string, records []types.Record) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if err := codec.WriteRecords(tmp, records); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write snapshot %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close snapshot %s: %w", base, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot %s: %w", base, err)
	}
	return nil
}

// writeFileAtomic writes data to path via the same temp-then-rename
// sequence. Used for the counters file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", base, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", base, err)
	}
	return nil
}
