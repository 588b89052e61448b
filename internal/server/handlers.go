package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kvasst/depot/internal/storage"
	"github.com/kvasst/depot/internal/storage/collection"
	"github.com/kvasst/depot/internal/storage/history"
	"github.com/kvasst/depot/internal/storage/types"
	"github.com/kvasst/depot/internal/warehouse"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// fail maps domain errors onto HTTP statuses.
func fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, collection.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, collection.ErrEmptyID),
		errors.Is(err, collection.ErrUnknownPrefix),
		errors.Is(err, warehouse.ErrUnknownLocation),
		errors.Is(err, warehouse.ErrInvalidStatus),
		errors.Is(err, history.ErrUntrackedKind),
		errors.Is(err, history.ErrEmptyEntityID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// Items

func (s *Server) handleListItems(w http.ResponseWriter, _ *http.Request) {
	items, err := s.warehouse.ListItems()
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleRegisterItem(w http.ResponseWriter, r *http.Request) {
	var req warehouse.RegisterItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.warehouse.RegisterItem(req)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.warehouse.GetItem(r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var upd warehouse.ItemUpdate
	if err := decode(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.warehouse.UpdateItem(r.PathValue("id"), upd)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.warehouse.MoveItem(r.PathValue("id"), req.Location)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.warehouse.DeleteItem(r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Boxes

func (s *Server) handleListBoxes(w http.ResponseWriter, _ *http.Request) {
	boxes, err := s.warehouse.ListBoxes()
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boxes": boxes})
}

func (s *Server) handleCreateBox(w http.ResponseWriter, r *http.Request) {
	var req warehouse.CreateBoxRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	box, err := s.warehouse.CreateBox(req)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, box)
}

func (s *Server) handleGetBox(w http.ResponseWriter, r *http.Request) {
	box, err := s.warehouse.GetBox(r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, box)
}

func (s *Server) handleMoveBox(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	box, err := s.warehouse.MoveBox(r.PathValue("id"), req.Location)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, box)
}

func (s *Server) handleDeleteBox(w http.ResponseWriter, r *http.Request) {
	if err := s.warehouse.DeleteBox(r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Places

func (s *Server) handleListPlaces(w http.ResponseWriter, _ *http.Request) {
	places, err := s.warehouse.ListPlaces()
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"places": places})
}

func (s *Server) handleCreatePlace(w http.ResponseWriter, r *http.Request) {
	var req warehouse.CreatePlaceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	place, err := s.warehouse.CreatePlace(req)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, place)
}

func (s *Server) handleGetPlace(w http.ResponseWriter, r *http.Request) {
	place, err := s.warehouse.GetPlace(r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, place)
}

func (s *Server) handleDeletePlace(w http.ResponseWriter, r *http.Request) {
	if err := s.warehouse.DeletePlace(r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Orders

func (s *Server) handleListOrders(w http.ResponseWriter, _ *http.Request) {
	orders, err := s.warehouse.ListOrders()
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleOpenOrder(w http.ResponseWriter, r *http.Request) {
	var req warehouse.OpenOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := s.warehouse.OpenOrder(req)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.warehouse.GetOrder(r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := s.warehouse.UpdateOrderStatus(r.PathValue("id"), req.Status)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCloseOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.warehouse.CloseOrder(r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAddOrderItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item string `json:"item"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := s.warehouse.AddOrderItem(r.PathValue("id"), req.Item)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.warehouse.DeleteOrder(r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Users

func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	users, err := s.warehouse.ListUsers()
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req warehouse.CreateUserRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.warehouse.CreateUser(req)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.warehouse.GetUser(r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.warehouse.DeleteUser(r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History

// historyKinds maps URL collection segments to tracked kinds.
var historyKinds = map[string]types.Kind{
	"items":  types.KindItem,
	"boxes":  types.KindBox,
	"orders": types.KindOrder,
}

func historyQuery(r *http.Request) (types.Kind, history.Query, error) {
	kind, ok := historyKinds[r.PathValue("kind")]
	if !ok {
		return "", history.Query{}, fmt.Errorf("no history for %q: %w",
			r.PathValue("kind"), history.ErrUntrackedKind)
	}

	q := history.Query{
		EntityID: r.PathValue("id"),
		Action:   r.URL.Query().Get("action"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return "", history.Query{}, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return "", history.Query{}, fmt.Errorf("invalid offset %q", v)
		}
		q.Offset = n
	}
	var err error
	if q.Start, err = parseTimeParam(r.URL.Query().Get("start")); err != nil {
		return "", history.Query{}, err
	}
	if q.End, err = parseTimeParam(r.URL.Query().Get("end")); err != nil {
		return "", history.Query{}, err
	}
	return kind, q, nil
}

// parseTimeParam accepts RFC3339 timestamps or plain dates.
func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", v)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	kind, q, err := historyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.warehouse.History(kind, q)
	if err != nil {
		fail(w, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	kind, q, err := historyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := history.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if err := s.engine.ExportHistory(kind, q, format, w); err != nil {
		s.log.Error("history export failed", "kind", kind, "error", err)
	}
}

// Serials, stats, health

func (s *Server) handleGenerateSerial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prefix string `json:"prefix"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.warehouse.GenerateSerial(req.Prefix)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
