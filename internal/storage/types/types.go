// Package types defines the shared data types for the depot storage engine.
package types

import (
	"encoding/json"
	"time"
)

// KeyField is the primary-key field every stored record carries.
// Its value is a two-element array: [id string, createdAt epoch seconds].
const KeyField = "pk"

// Record is an entity document of arbitrary shape. The engine does not
// interpret business fields; the only structural requirement is KeyField.
type Record map[string]any

// NewRecord returns a record carrying the primary-key field for id,
// created at the given time.
func NewRecord(id string, createdAt time.Time) Record {
	return Record{KeyField: []any{id, float64(createdAt.Unix())}}
}

// ID returns the record's primary-key identifier, or "" if the key field
// is absent or malformed.
func (r Record) ID() string {
	key, ok := r[KeyField].([]any)
	if !ok || len(key) < 1 {
		return ""
	}
	id, _ := key[0].(string)
	return id
}

// CreatedAt returns the record's creation time, or the zero time if the
// key field is absent or malformed.
func (r Record) CreatedAt() time.Time {
	key, ok := r[KeyField].([]any)
	if !ok || len(key) < 2 {
		return time.Time{}
	}
	switch v := key[1].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case int64:
		return time.Unix(v, 0).UTC()
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Unix(n, 0).UTC()
		}
	}
	return time.Time{}
}

// SetKey sets the record's primary-key field.
func (r Record) SetKey(id string, createdAt time.Time) {
	r[KeyField] = []any{id, float64(createdAt.Unix())}
}

// Clone returns a deep copy of the record. Nested maps and slices are
// copied; scalar values are shared (they are immutable after decode).
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return cloneMap(r)
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	return cloneValue(v)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// Kind identifies one entity collection.
type Kind string

// The configured entity kinds. Each kind is backed by one snapshot file
// under {DataDir}/base.
const (
	KindItem     Kind = "item"
	KindBox      Kind = "box"
	KindPlace    Kind = "place"
	KindOrder    Kind = "order"
	KindUser     Kind = "user"
	KindClass    Kind = "class"
	KindConfig   Kind = "config"
	KindTemplate Kind = "template"
)

// KindSpec describes per-kind engine behavior.
type KindSpec struct {
	// CaseInsensitive enables lowercase secondary indexing. Item and box
	// identifiers originate from barcode scanners with inconsistent casing.
	CaseInsensitive bool

	// Tracked enables audit history for the kind.
	Tracked bool
}

var kindSpecs = map[Kind]KindSpec{
	KindItem:     {CaseInsensitive: true, Tracked: true},
	KindBox:      {CaseInsensitive: true, Tracked: true},
	KindPlace:    {},
	KindOrder:    {Tracked: true},
	KindUser:     {},
	KindClass:    {},
	KindConfig:   {},
	KindTemplate: {},
}

// AllKinds returns every configured kind in stable order.
func AllKinds() []Kind {
	return []Kind{
		KindItem, KindBox, KindPlace, KindOrder,
		KindUser, KindClass, KindConfig, KindTemplate,
	}
}

// TrackedKinds returns the kinds with audit history enabled.
func TrackedKinds() []Kind {
	var out []Kind
	for _, k := range AllKinds() {
		if kindSpecs[k].Tracked {
			out = append(out, k)
		}
	}
	return out
}

// Spec returns the KindSpec for k. The second return is false for an
// unknown kind.
func Spec(k Kind) (KindSpec, bool) {
	s, ok := kindSpecs[k]
	return s, ok
}

// Valid reports whether k is a configured kind.
func Valid(k Kind) bool {
	_, ok := kindSpecs[k]
	return ok
}
