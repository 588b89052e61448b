package warehouse

import (
	"time"

	"github.com/kvasst/depot/internal/storage/types"
)

// Item is a tracked warehouse item. Location is the id of the box or place
// currently holding it.
type Item struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Class     string    `json:"class,omitempty"`
	Name      string    `json:"name,omitempty"`
	Location  string    `json:"location,omitempty"`
	Order     string    `json:"order,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// RegisterItemRequest describes a new item. An empty ID means the item
// carries no scanned serial and one is generated; FreeRange selects the
// high item-number range for unlabeled stock.
type RegisterItemRequest struct {
	ID        string `json:"id"`
	FreeRange bool   `json:"freeRange"`
	Class     string `json:"class"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	Order     string `json:"order"`
	Note      string `json:"note"`
}

// ItemUpdate carries the mutable item fields; nil fields are left unchanged.
type ItemUpdate struct {
	Class *string `json:"class"`
	Name  *string `json:"name"`
	Order *string `json:"order"`
	Note  *string `json:"note"`
}

func itemFromRecord(rec types.Record) Item {
	return Item{
		ID:        rec.ID(),
		CreatedAt: rec.CreatedAt(),
		Class:     str(rec, "class"),
		Name:      str(rec, "name"),
		Location:  str(rec, "place"),
		Order:     str(rec, "order"),
		Note:      str(rec, "note"),
	}
}

func (it Item) toRecord() types.Record {
	rec := types.NewRecord(it.ID, it.CreatedAt)
	if it.Class != "" {
		rec["class"] = it.Class
	}
	if it.Name != "" {
		rec["name"] = it.Name
	}
	if it.Location != "" {
		rec["place"] = it.Location
	}
	if it.Order != "" {
		rec["order"] = it.Order
	}
	if it.Note != "" {
		rec["note"] = it.Note
	}
	return rec
}

// RegisterItem creates an item, generating a serial number when the request
// carries no scanned id.
func (s *Service) RegisterItem(req RegisterItemRequest) (Item, error) {
	id := req.ID
	if id == "" {
		prefix := "i"
		if req.FreeRange {
			prefix = "ii"
		}
		var err error
		if id, err = s.engine.GenerateSerial(prefix); err != nil {
			return Item{}, wrapOp("register item", prefix, err)
		}
	}

	if req.Location != "" && !s.locationExists(req.Location) {
		return Item{}, wrapOp("register item", id, ErrUnknownLocation)
	}

	item := Item{
		ID:        id,
		CreatedAt: s.now(),
		Class:     req.Class,
		Name:      req.Name,
		Location:  req.Location,
		Order:     req.Order,
		Note:      req.Note,
	}
	if err := s.engine.Put(types.KindItem, id, item.toRecord()); err != nil {
		return Item{}, wrapOp("register item", id, err)
	}

	s.record(types.KindItem, id, "create", map[string]any{
		"class": req.Class, "place": req.Location, "order": req.Order,
	})
	return item, nil
}

// GetItem resolves an item by id, case-insensitively.
func (s *Service) GetItem(id string) (Item, error) {
	rec, err := s.engine.Get(types.KindItem, id)
	if err != nil {
		return Item{}, err
	}
	return itemFromRecord(rec), nil
}

// ListItems returns all items.
func (s *Service) ListItems() ([]Item, error) {
	recs, err := s.engine.List(types.KindItem)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(recs))
	for _, rec := range recs {
		items = append(items, itemFromRecord(rec))
	}
	return items, nil
}

// UpdateItem applies the non-nil fields of upd to an item.
func (s *Service) UpdateItem(id string, upd ItemUpdate) (Item, error) {
	rec, err := s.engine.Get(types.KindItem, id)
	if err != nil {
		return Item{}, wrapOp("update item", id, err)
	}

	setIfPresent(rec, "class", upd.Class)
	setIfPresent(rec, "name", upd.Name)
	setIfPresent(rec, "order", upd.Order)
	setIfPresent(rec, "note", upd.Note)

	if err := s.engine.Put(types.KindItem, rec.ID(), rec); err != nil {
		return Item{}, wrapOp("update item", id, err)
	}

	item := itemFromRecord(rec)
	s.record(types.KindItem, item.ID, "update", map[string]any{
		"class": item.Class, "order": item.Order,
	})
	return item, nil
}

// MoveItem relocates an item into a box or place.
func (s *Service) MoveItem(id, location string) (Item, error) {
	rec, err := s.engine.Get(types.KindItem, id)
	if err != nil {
		return Item{}, wrapOp("move item", id, err)
	}
	if !s.locationExists(location) {
		return Item{}, wrapOp("move item", id, ErrUnknownLocation)
	}

	from := str(rec, "place")
	rec["place"] = location
	if err := s.engine.Put(types.KindItem, rec.ID(), rec); err != nil {
		return Item{}, wrapOp("move item", id, err)
	}

	s.record(types.KindItem, rec.ID(), "move", map[string]any{
		"from": from, "to": location,
	})
	return itemFromRecord(rec), nil
}

// DeleteItem removes an item.
func (s *Service) DeleteItem(id string) error {
	rec, err := s.engine.Get(types.KindItem, id)
	if err != nil {
		return wrapOp("delete item", id, err)
	}
	if err := s.engine.Delete(types.KindItem, rec.ID()); err != nil {
		return wrapOp("delete item", id, err)
	}
	s.record(types.KindItem, rec.ID(), "delete", map[string]any{
		"place": str(rec, "place"),
	})
	return nil
}
