package collection

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	appcfg "github.com/kvasst/depot/config"
)

// CountersFile is the serial counters file name under the base directory.
const CountersFile = "ini.json"

// ErrUnknownPrefix is returned by Generate for a prefix outside the fixed
// set of serial kinds.
var ErrUnknownPrefix = fmt.Errorf("unknown serial prefix")

// SerialCounters is the persisted per-prefix counter state. The field
// names match the on-disk counters file format.
type SerialCounters struct {
	// FirstFree is the item-like generated range ("ii"), used when an item
	// arrives without a scannable serial.
	FirstFree int64 `json:"serialIi"`

	Item  int64 `json:"serialI"`
	Box   int64 `json:"serialB"`
	Place int64 `json:"serialP"`
}

func defaultCounters() SerialCounters {
	return SerialCounters{
		FirstFree: appcfg.FirstFreeItemCounter,
		Item:      1,
		Box:       1,
		Place:     1,
	}
}

// SerialGenerator produces monotonically increasing, zero-padded,
// prefix-tagged identifiers. Counters are persisted synchronously before
// a generated identifier is returned, so an identifier handed to a caller
// is never reissued, even across a crash.
type SerialGenerator struct {
	mu       sync.Mutex
	path     string
	counters SerialCounters
	padWidth int
}

// newSerialGenerator loads the counters file at path, falling back to
// defaults when it is absent. A present-but-unreadable file is an error:
// guessing counter state risks reissuing identifiers.
func newSerialGenerator(path string) (*SerialGenerator, error) {
	g := &SerialGenerator{
		path:     path,
		counters: defaultCounters(),
		padWidth: appcfg.DefaultSerialPadWidth,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return g, nil
		}
		return nil, fmt.Errorf("read counters file: %w", err)
	}
	if err := json.Unmarshal(data, &g.counters); err != nil {
		return nil, fmt.Errorf("parse counters file: %w", err)
	}
	return g, nil
}

// Generate issues the next identifier for prefix ("i", "b", "p", or "ii"
// for the generated item-like range). The incremented counters are written
// to disk before the identifier is returned; if the write fails, no
// identifier is issued and the in-memory counter stays advanced, so the
// failed value is skipped rather than ever reused.
func (g *SerialGenerator) Generate(prefix string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var tag string
	var n int64
	switch prefix {
	case "i":
		g.counters.Item++
		tag, n = "i", g.counters.Item
	case "b":
		g.counters.Box++
		tag, n = "b", g.counters.Box
	case "p":
		g.counters.Place++
		tag, n = "p", g.counters.Place
	case "ii":
		g.counters.FirstFree++
		tag, n = "i", g.counters.FirstFree
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPrefix, prefix)
	}

	if err := g.persist(); err != nil {
		return "", fmt.Errorf("persist counters: %w", err)
	}
	return fmt.Sprintf("%s%0*d", tag, g.padWidth, n), nil
}

// Counters returns a copy of the current counter state.
func (g *SerialGenerator) Counters() SerialCounters {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counters
}

func (g *SerialGenerator) persist() error {
	data, err := json.Marshal(g.counters)
	if err != nil {
		return err
	}
	return writeFileAtomic(g.path, data)
}
