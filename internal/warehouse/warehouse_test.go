package warehouse

import (
	"errors"
	"testing"
	"time"

	"github.com/kvasst/depot/internal/config"
	"github.com/kvasst/depot/internal/storage"
	"github.com/kvasst/depot/internal/storage/collection"
	"github.com/kvasst/depot/internal/storage/history"
	"github.com/kvasst/depot/internal/storage/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()

	engine, err := storage.New(cfg, nil)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if err := engine.Load(); err != nil {
		t.Fatalf("engine.Load: %v", err)
	}
	return New(engine)
}

func mustPlace(t *testing.T, s *Service, name string) Place {
	t.Helper()
	p, err := s.CreatePlace(CreatePlaceRequest{Name: name})
	if err != nil {
		t.Fatalf("CreatePlace: %v", err)
	}
	return p
}

func TestRegisterItemGeneratesSerial(t *testing.T) {
	s := newTestService(t)

	item, err := s.RegisterItem(RegisterItemRequest{Name: "psu 450W"})
	if err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}
	if item.ID != "i000002" {
		t.Errorf("generated id = %q, want i000002", item.ID)
	}

	free, err := s.RegisterItem(RegisterItemRequest{Name: "bulk screw", FreeRange: true})
	if err != nil {
		t.Fatal(err)
	}
	if free.ID != "i100001" {
		t.Errorf("free-range id = %q, want i100001", free.ID)
	}
}

func TestRegisterItemScannedID(t *testing.T) {
	s := newTestService(t)
	place := mustPlace(t, s, "shelf 1")

	item, err := s.RegisterItem(RegisterItemRequest{ID: "SN-9931", Location: place.ID})
	if err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}
	if item.ID != "SN-9931" {
		t.Errorf("id = %q, want SN-9931", item.ID)
	}

	// Scanned barcodes resolve regardless of case.
	got, err := s.GetItem("sn-9931")
	if err != nil {
		t.Fatalf("GetItem lowercase: %v", err)
	}
	if got.ID != "SN-9931" {
		t.Errorf("resolved id = %q, want SN-9931", got.ID)
	}
}

func TestRegisterItemUnknownLocation(t *testing.T) {
	s := newTestService(t)

	_, err := s.RegisterItem(RegisterItemRequest{ID: "x1", Location: "nowhere"})
	if !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("err = %v, want ErrUnknownLocation", err)
	}
}

func TestMoveItemRecordsHistory(t *testing.T) {
	s := newTestService(t)
	p1 := mustPlace(t, s, "shelf 1")
	p2 := mustPlace(t, s, "shelf 2")

	item, err := s.RegisterItem(RegisterItemRequest{ID: "x1", Location: p1.ID})
	if err != nil {
		t.Fatal(err)
	}

	moved, err := s.MoveItem(item.ID, p2.ID)
	if err != nil {
		t.Fatalf("MoveItem: %v", err)
	}
	if moved.Location != p2.ID {
		t.Errorf("location = %q, want %q", moved.Location, p2.ID)
	}

	if _, err := s.MoveItem(item.ID, "nowhere"); !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("move to unknown location = %v, want ErrUnknownLocation", err)
	}

	entries, err := s.History(types.KindItem, history.Query{EntityID: item.ID, Action: "move"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d move entries, want 1", len(entries))
	}
	if entries[0].Data["from"] != p1.ID || entries[0].Data["to"] != p2.ID {
		t.Errorf("move data = %v", entries[0].Data)
	}
}

func TestMoveItemIntoBox(t *testing.T) {
	s := newTestService(t)
	place := mustPlace(t, s, "rack 1")

	box, err := s.CreateBox(CreateBoxRequest{Name: "crate", Location: place.ID})
	if err != nil {
		t.Fatalf("CreateBox: %v", err)
	}
	if box.ID != "b000002" {
		t.Errorf("box id = %q, want b000002", box.ID)
	}

	item, err := s.RegisterItem(RegisterItemRequest{ID: "x1"})
	if err != nil {
		t.Fatal(err)
	}
	moved, err := s.MoveItem(item.ID, box.ID)
	if err != nil {
		t.Fatalf("MoveItem into box: %v", err)
	}
	if moved.Location != box.ID {
		t.Errorf("location = %q, want %q", moved.Location, box.ID)
	}
}

func TestUpdateItemPartial(t *testing.T) {
	s := newTestService(t)

	item, err := s.RegisterItem(RegisterItemRequest{ID: "x1", Name: "disk", Class: "hdd-3.5"})
	if err != nil {
		t.Fatal(err)
	}

	note := "smart errors"
	updated, err := s.UpdateItem(item.ID, ItemUpdate{Note: &note})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Note != "smart errors" {
		t.Errorf("note = %q", updated.Note)
	}
	if updated.Class != "hdd-3.5" {
		t.Errorf("class changed to %q, nil field should be untouched", updated.Class)
	}
}

func TestDeleteItemRecordsHistory(t *testing.T) {
	s := newTestService(t)

	item, err := s.RegisterItem(RegisterItemRequest{ID: "X1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteItem("x1"); err != nil {
		t.Fatalf("DeleteItem via alias: %v", err)
	}
	if _, err := s.GetItem(item.ID); !errors.Is(err, collection.ErrNotFound) {
		t.Errorf("GetItem after delete = %v, want ErrNotFound", err)
	}

	entries, err := s.History(types.KindItem, history.Query{EntityID: item.ID, Action: "delete"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d delete entries, want 1", len(entries))
	}
}

func TestMoveBoxKeepsItemReference(t *testing.T) {
	s := newTestService(t)
	p1 := mustPlace(t, s, "room A")
	p2 := mustPlace(t, s, "room B")

	box, err := s.CreateBox(CreateBoxRequest{Location: p1.ID})
	if err != nil {
		t.Fatal(err)
	}
	item, err := s.RegisterItem(RegisterItemRequest{ID: "x1", Location: box.ID})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.MoveBox(box.ID, p2.ID); err != nil {
		t.Fatalf("MoveBox: %v", err)
	}
	if _, err := s.MoveBox(box.ID, "nowhere"); !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("move to unknown place = %v, want ErrUnknownLocation", err)
	}
	if _, err := s.MoveBox(box.ID, box.ID); !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("box is not a valid box location, got %v", err)
	}

	got, err := s.GetItem(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Location != box.ID {
		t.Errorf("item location = %q, should still be the box", got.Location)
	}
}

func TestPlacesAndUsers(t *testing.T) {
	s := newTestService(t)

	place, err := s.CreatePlace(CreatePlaceRequest{Name: "rack 7"})
	if err != nil {
		t.Fatal(err)
	}
	if place.ID != "p000002" {
		t.Errorf("place id = %q, want p000002", place.ID)
	}
	places, err := s.ListPlaces()
	if err != nil || len(places) != 1 {
		t.Fatalf("ListPlaces = %v, %v", places, err)
	}
	if err := s.DeletePlace(place.ID); err != nil {
		t.Fatal(err)
	}

	user, err := s.CreateUser(CreateUserRequest{Name: "mk", Role: "tech"})
	if err != nil {
		t.Fatal(err)
	}
	if user.ID == "" {
		t.Error("user id should be generated")
	}
	got, err := s.GetUser(user.ID)
	if err != nil || got.Name != "mk" {
		t.Fatalf("GetUser = %+v, %v", got, err)
	}
	if err := s.DeleteUser(user.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteUser(user.ID); !errors.Is(err, collection.ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestItemCreatedAtIsSet(t *testing.T) {
	s := newTestService(t)

	before := time.Now().Add(-time.Second)
	item, err := s.RegisterItem(RegisterItemRequest{ID: "x1"})
	if err != nil {
		t.Fatal(err)
	}
	if item.CreatedAt.Before(before) {
		t.Errorf("createdAt = %v, before test start", item.CreatedAt)
	}

	// The persisted record carries the same second-resolution timestamp.
	got, err := s.GetItem("x1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CreatedAt.Unix() != item.CreatedAt.Unix() {
		t.Errorf("persisted createdAt = %v, want %v", got.CreatedAt, item.CreatedAt)
	}
}
