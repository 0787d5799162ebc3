package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderItem is one line of a draft or placed order. Price is the charged unit
// price, which free-stock forces to zero; CatalogPrice keeps the list price
// for display either way.
type OrderItem struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Price        float64   `json:"price"`
	CatalogPrice float64   `json:"catalog_price"`
	Quantity     int       `json:"quantity"`
	Total        float64   `json:"total"`
	IsFreeStock  bool      `json:"is_free_stock,omitempty"`
}

// BuildOrderItem makes a line for quantity units of p.
func BuildOrderItem(p Product, quantity int, freeStock bool) OrderItem {
	it := OrderItem{
		ProductID:    p.ID,
		ProductName:  p.Name,
		CatalogPrice: p.Price,
		Quantity:     quantity,
	}
	it.SetFreeStock(freeStock)
	return it
}

// SetFreeStock flips the free-stock flag and recomputes the charged price and
// line total. Other lines are untouched; the order total is recomputed from
// lines, never adjusted incrementally.
func (it *OrderItem) SetFreeStock(on bool) {
	it.IsFreeStock = on
	if on {
		it.Price = 0
	} else {
		it.Price = it.CatalogPrice
	}
	it.Total = it.Price * float64(it.Quantity)
}

// Recompute re-derives Price and Total from CatalogPrice, Quantity and the
// free-stock flag. The server never trusts client-supplied totals.
func (it *OrderItem) Recompute() {
	it.SetFreeStock(it.IsFreeStock)
}

func (it *OrderItem) Validate() error {
	if it.ProductID == uuid.Nil {
		return errors.New("order item is missing product_id")
	}
	if it.Quantity < 1 {
		return errors.New("order item quantity must be positive")
	}
	return nil
}

// OrderTotal sums line totals.
func OrderTotal(items []OrderItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Total
	}
	return sum
}

// Order is a placed, immutable order: a snapshot of the visit's draft at the
// moment the rep confirmed it. There are no update or delete paths.
type Order struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    uuid.UUID      `gorm:"type:uuid;index;not null" json:"client_id"`
	RepID       uuid.UUID      `gorm:"type:uuid;index;not null" json:"rep_id"`
	VisitID     uuid.UUID      `gorm:"type:uuid;index;not null" json:"visit_id"`
	TotalAmount float64        `gorm:"not null" json:"total_amount"`
	Items       datatypes.JSON `gorm:"type:jsonb;not null" json:"items"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return
}

// OrderItems decodes the snapshot list.
func (o *Order) OrderItems() ([]OrderItem, error) {
	var items []OrderItem
	if err := json.Unmarshal(o.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// NewOrder snapshots items into an immutable order record.
func NewOrder(clientID, repID, visitID uuid.UUID, items []OrderItem) (*Order, error) {
	if len(items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return &Order{
		ClientID:    clientID,
		RepID:       repID,
		VisitID:     visitID,
		TotalAmount: OrderTotal(items),
		Items:       raw,
	}, nil
}
