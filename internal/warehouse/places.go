package warehouse

import (
	"time"

	"github.com/kvasst/depot/internal/storage/types"
)

// Place is a fixed storage location (shelf, rack, room). Places are not
// tracked in the history store.
type Place struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Name      string    `json:"name,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// CreatePlaceRequest describes a new place. An empty ID generates a serial.
type CreatePlaceRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Note string `json:"note"`
}

func placeFromRecord(rec types.Record) Place {
	return Place{
		ID:        rec.ID(),
		CreatedAt: rec.CreatedAt(),
		Name:      str(rec, "name"),
		Note:      str(rec, "note"),
	}
}

// CreatePlace creates a place.
func (s *Service) CreatePlace(req CreatePlaceRequest) (Place, error) {
	id := req.ID
	if id == "" {
		var err error
		if id, err = s.engine.GenerateSerial("p"); err != nil {
			return Place{}, wrapOp("create place", "p", err)
		}
	}

	place := Place{ID: id, CreatedAt: s.now(), Name: req.Name, Note: req.Note}
	rec := types.NewRecord(id, place.CreatedAt)
	if place.Name != "" {
		rec["name"] = place.Name
	}
	if place.Note != "" {
		rec["note"] = place.Note
	}
	if err := s.engine.Put(types.KindPlace, id, rec); err != nil {
		return Place{}, wrapOp("create place", id, err)
	}
	return place, nil
}

// GetPlace resolves a place by exact id.
func (s *Service) GetPlace(id string) (Place, error) {
	rec, err := s.engine.Get(types.KindPlace, id)
	if err != nil {
		return Place{}, err
	}
	return placeFromRecord(rec), nil
}

// ListPlaces returns all places.
func (s *Service) ListPlaces() ([]Place, error) {
	recs, err := s.engine.List(types.KindPlace)
	if err != nil {
		return nil, err
	}
	places := make([]Place, 0, len(recs))
	for _, rec := range recs {
		places = append(places, placeFromRecord(rec))
	}
	return places, nil
}

// DeletePlace removes a place.
func (s *Service) DeletePlace(id string) error {
	if err := s.engine.Delete(types.KindPlace, id); err != nil {
		return wrapOp("delete place", id, err)
	}
	return nil
}
