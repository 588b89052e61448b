package warehouse

import (
	"time"

	"github.com/google/uuid"

	"github.com/kvasst/depot/internal/storage/types"
)

// Order statuses form the RMA flow. Every status may jump straight to
// closed (cancellation); otherwise transitions move forward one step.
const (
	StatusOpen      = "open"
	StatusReceived  = "received"
	StatusInspected = "inspected"
	StatusResolved  = "resolved"
	StatusClosed    = "closed"
)

var statusTransitions = map[string][]string{
	StatusOpen:      {StatusReceived, StatusClosed},
	StatusReceived:  {StatusInspected, StatusClosed},
	StatusInspected: {StatusResolved, StatusClosed},
	StatusResolved:  {StatusClosed},
	StatusClosed:    {},
}

// Order is an RMA case.
type Order struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Customer  string    `json:"customer,omitempty"`
	Status    string    `json:"status"`
	Items     []string  `json:"items,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// OpenOrderRequest describes a new order. An empty ID gets a generated one.
type OpenOrderRequest struct {
	ID       string   `json:"id"`
	Customer string   `json:"customer"`
	Items    []string `json:"items"`
	Note     string   `json:"note"`
}

func orderFromRecord(rec types.Record) Order {
	return Order{
		ID:        rec.ID(),
		CreatedAt: rec.CreatedAt(),
		Customer:  str(rec, "customer"),
		Status:    str(rec, "status"),
		Items:     strs(rec, "items"),
		Note:      str(rec, "note"),
	}
}

func (o Order) toRecord() types.Record {
	rec := types.NewRecord(o.ID, o.CreatedAt)
	rec["status"] = o.Status
	if o.Customer != "" {
		rec["customer"] = o.Customer
	}
	if len(o.Items) > 0 {
		rec["items"] = o.Items
	}
	if o.Note != "" {
		rec["note"] = o.Note
	}
	return rec
}

func validTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OpenOrder creates an order in the open status.
func (s *Service) OpenOrder(req OpenOrderRequest) (Order, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	order := Order{
		ID:        id,
		CreatedAt: s.now(),
		Customer:  req.Customer,
		Status:    StatusOpen,
		Items:     req.Items,
		Note:      req.Note,
	}
	if err := s.engine.Put(types.KindOrder, id, order.toRecord()); err != nil {
		return Order{}, wrapOp("open order", id, err)
	}

	s.record(types.KindOrder, id, "open", map[string]any{
		"customer": req.Customer, "items": len(req.Items),
	})
	return order, nil
}

// GetOrder returns one order.
func (s *Service) GetOrder(id string) (Order, error) {
	rec, err := s.engine.Get(types.KindOrder, id)
	if err != nil {
		return Order{}, err
	}
	return orderFromRecord(rec), nil
}

// ListOrders returns all orders.
func (s *Service) ListOrders() ([]Order, error) {
	recs, err := s.engine.List(types.KindOrder)
	if err != nil {
		return nil, err
	}
	orders := make([]Order, 0, len(recs))
	for _, rec := range recs {
		orders = append(orders, orderFromRecord(rec))
	}
	return orders, nil
}

// UpdateOrderStatus advances an order along the RMA flow.
func (s *Service) UpdateOrderStatus(id, status string) (Order, error) {
	if _, ok := statusTransitions[status]; !ok {
		return Order{}, wrapOp("update order", id, ErrInvalidStatus)
	}

	rec, err := s.engine.Get(types.KindOrder, id)
	if err != nil {
		return Order{}, wrapOp("update order", id, err)
	}

	from := str(rec, "status")
	if !validTransition(from, status) {
		return Order{}, wrapOp("update order", id, ErrInvalidStatus)
	}

	rec["status"] = status
	if err := s.engine.Put(types.KindOrder, rec.ID(), rec); err != nil {
		return Order{}, wrapOp("update order", id, err)
	}

	s.record(types.KindOrder, rec.ID(), "status", map[string]any{
		"from": from, "to": status,
	})
	return orderFromRecord(rec), nil
}

// CloseOrder moves an order to the closed status from any earlier one.
func (s *Service) CloseOrder(id string) (Order, error) {
	return s.UpdateOrderStatus(id, StatusClosed)
}

// AddOrderItem attaches an item to an order and back-references the order
// on the item record.
func (s *Service) AddOrderItem(orderID, itemID string) (Order, error) {
	rec, err := s.engine.Get(types.KindOrder, orderID)
	if err != nil {
		return Order{}, wrapOp("update order", orderID, err)
	}
	itemRec, err := s.engine.Get(types.KindItem, itemID)
	if err != nil {
		return Order{}, wrapOp("update order", orderID, err)
	}

	items := strs(rec, "items")
	for _, existing := range items {
		if existing == itemRec.ID() {
			return orderFromRecord(rec), nil
		}
	}
	rec["items"] = append(items, itemRec.ID())
	if err := s.engine.Put(types.KindOrder, rec.ID(), rec); err != nil {
		return Order{}, wrapOp("update order", orderID, err)
	}

	itemRec["order"] = rec.ID()
	if err := s.engine.Put(types.KindItem, itemRec.ID(), itemRec); err != nil {
		return Order{}, wrapOp("update order", orderID, err)
	}

	s.record(types.KindOrder, rec.ID(), "item-added", map[string]any{
		"item": itemRec.ID(),
	})
	return orderFromRecord(rec), nil
}

// DeleteOrder removes an order.
func (s *Service) DeleteOrder(id string) error {
	rec, err := s.engine.Get(types.KindOrder, id)
	if err != nil {
		return wrapOp("delete order", id, err)
	}
	if err := s.engine.Delete(types.KindOrder, rec.ID()); err != nil {
		return wrapOp("delete order", id, err)
	}
	s.record(types.KindOrder, rec.ID(), "delete", map[string]any{
		"status": str(rec, "status"),
	})
	return nil
}
