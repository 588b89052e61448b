package collection

import "strings"

// caseIndex maps a lowercased identifier to the canonical-case identifier
// the owning record is actually stored under. It exists only for kinds
// whose identifiers arrive from barcode scanners and OCR with unreliable
// casing.
//
// The index is never maintained independently: Put and Delete mutate it in
// the same critical section as the primary map, so it cannot diverge.
type caseIndex struct {
	canonical map[string]string
}

func newCaseIndex() *caseIndex {
	return &caseIndex{canonical: make(map[string]string)}
}

// set maps the lowercase form of id to its canonical spelling.
func (x *caseIndex) set(id string) {
	x.canonical[strings.ToLower(id)] = id
}

// resolve returns the canonical identifier for any casing of id.
func (x *caseIndex) resolve(id string) (string, bool) {
	c, ok := x.canonical[strings.ToLower(id)]
	return c, ok
}

// remove drops the entry for any casing of id.
func (x *caseIndex) remove(id string) {
	delete(x.canonical, strings.ToLower(id))
}

func (x *caseIndex) len() int {
	return len(x.canonical)
}
