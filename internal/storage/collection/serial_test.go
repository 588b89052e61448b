package collection

import (
	"errors"
	"path/filepath"
	"sort"
	"testing"
)

func TestGenerateMonotonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), CountersFile)
	g, err := newSerialGenerator(path)
	if err != nil {
		t.Fatal(err)
	}

	const n = 20
	seen := make(map[string]bool)
	var ids []string
	for i := 0; i < n; i++ {
		id, err := g.Generate("i")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if !sort.StringsAreSorted(ids) {
		t.Errorf("ids not strictly increasing: %v", ids)
	}
	if ids[0] != "i000002" {
		t.Errorf("first id = %q, want i000002 (counter starts at 1)", ids[0])
	}
}

func TestGenerateSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), CountersFile)

	g1, err := newSerialGenerator(path)
	if err != nil {
		t.Fatal(err)
	}
	var issued []string
	for i := 0; i < 5; i++ {
		id, err := g1.Generate("b")
		if err != nil {
			t.Fatal(err)
		}
		issued = append(issued, id)
	}

	// Counters were persisted before each id was returned, so a fresh
	// generator continues after the last issued value.
	g2, err := newSerialGenerator(path)
	if err != nil {
		t.Fatal(err)
	}
	next, err := g2.Generate("b")
	if err != nil {
		t.Fatal(err)
	}
	for _, old := range issued {
		if next == old {
			t.Fatalf("id %q reissued after restart", next)
		}
	}
	if next <= issued[len(issued)-1] {
		t.Errorf("next id %q not greater than last issued %q", next, issued[len(issued)-1])
	}
}

func TestGeneratePrefixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), CountersFile)
	g, err := newSerialGenerator(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		prefix string
		want   string
	}{
		{"i", "i000002"},
		{"b", "b000002"},
		{"p", "p000002"},
		{"ii", "i100001"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			id, err := g.Generate(tt.prefix)
			if err != nil {
				t.Fatalf("Generate(%q): %v", tt.prefix, err)
			}
			if id != tt.want {
				t.Errorf("Generate(%q) = %q, want %q", tt.prefix, id, tt.want)
			}
		})
	}

	if _, err := g.Generate("x"); !errors.Is(err, ErrUnknownPrefix) {
		t.Errorf("unknown prefix: got %v, want ErrUnknownPrefix", err)
	}
}

func TestCountersFileFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, CountersFile)

	g, err := newSerialGenerator(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate("i"); err != nil {
		t.Fatal(err)
	}

	g2, err := newSerialGenerator(path)
	if err != nil {
		t.Fatal(err)
	}
	c := g2.Counters()
	if c.Item != 2 {
		t.Errorf("serialI = %d, want 2", c.Item)
	}
	if c.FirstFree != 100000 {
		t.Errorf("serialIi = %d, want default 100000", c.FirstFree)
	}
	if c.Box != 1 || c.Place != 1 {
		t.Errorf("untouched counters changed: %+v", c)
	}
}
