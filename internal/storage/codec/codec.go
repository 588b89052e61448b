// Package codec implements the line-delimited JSON snapshot format.
//
// Snapshot and history partition files hold one JSON object per line with
// no envelope. Decoding tolerates corruption at line granularity: a
// malformed line is counted and skipped, and the rest of the file still
// loads. A missing file decodes as an empty record set.
package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kvasst/depot/internal/storage/types"
)

const (
	// maxLineSize is the scanner buffer cap. A record larger than this is
	// treated as a corrupt line.
	maxLineSize = 4 * 1024 * 1024

	initialBufSize = 64 * 1024
)

// Stats holds decode statistics for one file.
type Stats struct {
	LinesRead int64
	Decoded   int64
	Skipped   int64
}

// DecodeFunc consumes one line of a snapshot file. Returning an error
// marks the line corrupt; scanning continues with the next line.
type DecodeFunc func(line []byte) error

// ScanLines feeds every line of r to fn, skipping empty and corrupt lines.
func ScanLines(r io.Reader, fn DecodeFunc) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialBufSize), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.LinesRead++

		if err := fn(line); err != nil {
			stats.Skipped++
			continue
		}
		stats.Decoded++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan lines: %w", err)
	}
	return stats, nil
}

// ScanFile opens path and feeds its lines to fn. A missing file yields
// zero stats and no error.
func ScanFile(path string, fn DecodeFunc) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return ScanLines(f, fn)
}

// ReadRecords loads every well-formed record from a snapshot file.
// Records whose primary key is missing count as corrupt lines.
func ReadRecords(path string) ([]types.Record, Stats, error) {
	var records []types.Record

	stats, err := ScanFile(path, func(line []byte) error {
		var rec types.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		if rec.ID() == "" {
			return fmt.Errorf("record missing primary key")
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return records, stats, nil
}

// EncodeLine serializes v as one snapshot line, newline included.
func EncodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode line: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteRecords serializes records to w, one JSON object per line.
func WriteRecords(w io.Writer, records []types.Record) error {
	bw := bufio.NewWriterSize(w, initialBufSize)
	for _, rec := range records {
		line, err := EncodeLine(rec)
		if err != nil {
			return err
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
