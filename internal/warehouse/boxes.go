package warehouse

import (
	"time"

	"github.com/kvasst/depot/internal/storage/types"
)

// Box is a tracked container. Location is the id of the place holding it.
type Box struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Name      string    `json:"name,omitempty"`
	Location  string    `json:"location,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// CreateBoxRequest describes a new box. An empty ID generates a serial.
type CreateBoxRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Note     string `json:"note"`
}

func boxFromRecord(rec types.Record) Box {
	return Box{
		ID:        rec.ID(),
		CreatedAt: rec.CreatedAt(),
		Name:      str(rec, "name"),
		Location:  str(rec, "place"),
		Note:      str(rec, "note"),
	}
}

func (b Box) toRecord() types.Record {
	rec := types.NewRecord(b.ID, b.CreatedAt)
	if b.Name != "" {
		rec["name"] = b.Name
	}
	if b.Location != "" {
		rec["place"] = b.Location
	}
	if b.Note != "" {
		rec["note"] = b.Note
	}
	return rec
}

// CreateBox creates a box, generating a serial number when no id is given.
func (s *Service) CreateBox(req CreateBoxRequest) (Box, error) {
	id := req.ID
	if id == "" {
		var err error
		if id, err = s.engine.GenerateSerial("b"); err != nil {
			return Box{}, wrapOp("create box", "b", err)
		}
	}

	if req.Location != "" {
		if _, err := s.engine.Get(types.KindPlace, req.Location); err != nil {
			return Box{}, wrapOp("create box", id, ErrUnknownLocation)
		}
	}

	box := Box{
		ID:        id,
		CreatedAt: s.now(),
		Name:      req.Name,
		Location:  req.Location,
		Note:      req.Note,
	}
	if err := s.engine.Put(types.KindBox, id, box.toRecord()); err != nil {
		return Box{}, wrapOp("create box", id, err)
	}

	s.record(types.KindBox, id, "create", map[string]any{"place": req.Location})
	return box, nil
}

// GetBox resolves a box by id, case-insensitively.
func (s *Service) GetBox(id string) (Box, error) {
	rec, err := s.engine.Get(types.KindBox, id)
	if err != nil {
		return Box{}, err
	}
	return boxFromRecord(rec), nil
}

// ListBoxes returns all boxes.
func (s *Service) ListBoxes() ([]Box, error) {
	recs, err := s.engine.List(types.KindBox)
	if err != nil {
		return nil, err
	}
	boxes := make([]Box, 0, len(recs))
	for _, rec := range recs {
		boxes = append(boxes, boxFromRecord(rec))
	}
	return boxes, nil
}

// MoveBox relocates a box into a place. Items inside the box keep pointing
// at the box id, so they move with it.
func (s *Service) MoveBox(id, placeID string) (Box, error) {
	rec, err := s.engine.Get(types.KindBox, id)
	if err != nil {
		return Box{}, wrapOp("move box", id, err)
	}
	if _, err := s.engine.Get(types.KindPlace, placeID); err != nil {
		return Box{}, wrapOp("move box", id, ErrUnknownLocation)
	}

	from := str(rec, "place")
	rec["place"] = placeID
	if err := s.engine.Put(types.KindBox, rec.ID(), rec); err != nil {
		return Box{}, wrapOp("move box", id, err)
	}

	s.record(types.KindBox, rec.ID(), "move", map[string]any{
		"from": from, "to": placeID,
	})
	return boxFromRecord(rec), nil
}

// DeleteBox removes a box.
func (s *Service) DeleteBox(id string) error {
	rec, err := s.engine.Get(types.KindBox, id)
	if err != nil {
		return wrapOp("delete box", id, err)
	}
	if err := s.engine.Delete(types.KindBox, rec.ID()); err != nil {
		return wrapOp("delete box", id, err)
	}
	s.record(types.KindBox, rec.ID(), "delete", map[string]any{
		"place": str(rec, "place"),
	})
	return nil
}
