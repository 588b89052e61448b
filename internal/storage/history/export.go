package history

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/kvasst/depot/internal/storage/types"
)

// Format is a history export rendering.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat parses a format name. The empty string means JSON.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/json"
	}
}

// entryRow is the flat Parquet shape of an Entry. The data snapshot is
// carried as compact JSON text.
type entryRow struct {
	ID        string `parquet:"id,zstd"`
	EntityID  string `parquet:"entity_id,zstd"`
	Timestamp int64  `parquet:"ts"`
	Action    string `parquet:"action,zstd"`
	Data      string `parquet:"data,optional,zstd"`
}

// Export runs the query and renders the result to w. Rendering is pure
// formatting over Get: no new query semantics.
func (s *Store) Export(kind types.Kind, q Query, format Format, w io.Writer) error {
	entries, err := s.Get(kind, q)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		return exportJSON(entries, w)
	case FormatCSV:
		return exportCSV(entries, w)
	case FormatParquet:
		return exportParquet(entries, w)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func exportJSON(entries []Entry, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if entries == nil {
		entries = []Entry{}
	}
	return enc.Encode(entries)
}

func exportCSV(entries []Entry, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "entity_id", "timestamp", "action", "data"}); err != nil {
		return err
	}
	for _, e := range entries {
		row, err := csvRow(e)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(e Entry) ([]string, error) {
	data := ""
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return nil, fmt.Errorf("encode data snapshot: %w", err)
		}
		data = string(b)
	}
	return []string{
		e.ID,
		e.EntityID,
		time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339),
		e.Action,
		data,
	}, nil
}

func exportParquet(entries []Entry, w io.Writer) error {
	pw := parquet.NewGenericWriter[entryRow](w, parquet.Compression(&parquet.Zstd))

	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		row := entryRow{
			ID:        e.ID,
			EntityID:  e.EntityID,
			Timestamp: e.Timestamp,
			Action:    e.Action,
		}
		if e.Data != nil {
			b, err := json.Marshal(e.Data)
			if err != nil {
				return fmt.Errorf("encode data snapshot: %w", err)
			}
			row.Data = string(b)
		}
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
