// Package warehouse implements the typed domain layer over the storage
// engine: items, boxes, places, RMA orders and users. All mutations on
// tracked kinds append an audit entry to the history store.
package warehouse

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kvasst/depot/internal/logging"
	"github.com/kvasst/depot/internal/storage"
	"github.com/kvasst/depot/internal/storage/history"
	"github.com/kvasst/depot/internal/storage/types"
)

var (
	// ErrUnknownLocation is returned when a move target is neither a
	// known box nor a known place.
	ErrUnknownLocation = errors.New("unknown location")

	// ErrInvalidStatus is returned for an order status outside the RMA
	// flow or a transition the flow does not allow.
	ErrInvalidStatus = errors.New("invalid order status")
)

// Service exposes the warehouse operations.
type Service struct {
	engine *storage.Engine
	log    *slog.Logger
	now    func() time.Time
}

// New creates a warehouse service over an engine.
func New(engine *storage.Engine) *Service {
	return &Service{
		engine: engine,
		log:    logging.Component("warehouse"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// History returns an entity's audit trail, newest first.
func (s *Service) History(kind types.Kind, q history.Query) ([]history.Entry, error) {
	return s.engine.History(kind, q)
}

// GenerateSerial issues the next serial number for a prefix.
func (s *Service) GenerateSerial(prefix string) (string, error) {
	return s.engine.GenerateSerial(prefix)
}

// record appends a history entry and logs failures without surfacing them;
// the mutation the entry describes has already succeeded.
func (s *Service) record(kind types.Kind, entityID, action string, data map[string]any) {
	if err := s.engine.RecordHistory(kind, entityID, action, data); err != nil {
		s.log.Warn("history record failed",
			"kind", kind, "entity", entityID, "action", action, "error", err)
	}
}

// locationExists reports whether id names a known box or place.
func (s *Service) locationExists(id string) bool {
	if _, err := s.engine.Get(types.KindBox, id); err == nil {
		return true
	}
	if _, err := s.engine.Get(types.KindPlace, id); err == nil {
		return true
	}
	return false
}

// str reads an optional string field from a record.
func str(rec types.Record, field string) string {
	if v, ok := rec[field].(string); ok {
		return v
	}
	return ""
}

// strs reads an optional string-slice field from a record. Snapshot decoding
// yields []any, so both shapes are accepted.
func strs(rec types.Record, field string) []string {
	switch v := rec[field].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// setIfPresent writes non-nil update values into rec.
func setIfPresent(rec types.Record, field string, val *string) {
	if val != nil {
		rec[field] = *val
	}
}

func wrapOp(op, id string, err error) error {
	return fmt.Errorf("%s %s: %w", op, id, err)
}
