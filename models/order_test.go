package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestBuildOrderItem(t *testing.T) {
	p := Product{ID: uuid.New(), Name: "Pinotage Reserve", Price: 150}

	it := BuildOrderItem(p, 4, false)
	if it.Price != 150 || it.Total != 600 {
		t.Errorf("paid line: price=%v total=%v, want 150/600", it.Price, it.Total)
	}
	if it.CatalogPrice != 150 {
		t.Errorf("catalog price = %v, want 150", it.CatalogPrice)
	}

	free := BuildOrderItem(p, 4, true)
	if free.Price != 0 || free.Total != 0 {
		t.Errorf("free line: price=%v total=%v, want 0/0", free.Price, free.Total)
	}
	if free.CatalogPrice != 150 {
		t.Errorf("free line lost catalog price: %v", free.CatalogPrice)
	}
}

func TestSetFreeStockRoundTrip(t *testing.T) {
	p := Product{ID: uuid.New(), Name: "Chenin Blanc", Price: 90}
	it := BuildOrderItem(p, 2, false)

	it.SetFreeStock(true)
	if it.Total != 0 {
		t.Errorf("total after toggle on = %v, want 0", it.Total)
	}
	it.SetFreeStock(false)
	if it.Price != 90 || it.Total != 180 {
		t.Errorf("after toggle off: price=%v total=%v, want 90/180", it.Price, it.Total)
	}
}

func TestRecomputeIgnoresClientTotals(t *testing.T) {
	it := OrderItem{
		ProductID:    uuid.New(),
		CatalogPrice: 100,
		Quantity:     3,
		Price:        1,    // tampered
		Total:        9999, // tampered
	}
	it.Recompute()
	if it.Price != 100 || it.Total != 300 {
		t.Errorf("recompute: price=%v total=%v, want 100/300", it.Price, it.Total)
	}
}

func TestOrderItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    OrderItem
		wantErr bool
	}{
		{"valid", OrderItem{ProductID: uuid.New(), Quantity: 1}, false},
		{"missing product", OrderItem{Quantity: 1}, true},
		{"zero quantity", OrderItem{ProductID: uuid.New(), Quantity: 0}, true},
		{"negative quantity", OrderItem{ProductID: uuid.New(), Quantity: -2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewOrderSnapshotsItems(t *testing.T) {
	p1 := Product{ID: uuid.New(), Name: "Shiraz", Price: 120}
	p2 := Product{ID: uuid.New(), Name: "Tasting Pack", Price: 80}
	items := []OrderItem{
		BuildOrderItem(p1, 2, false),
		BuildOrderItem(p2, 1, true),
	}

	o, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), items)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if o.TotalAmount != 240 {
		t.Errorf("total = %v, want 240 (free line contributes nothing)", o.TotalAmount)
	}
	decoded, err := o.OrderItems()
	if err != nil {
		t.Fatalf("OrderItems: %v", err)
	}
	if len(decoded) != 2 || decoded[1].ProductName != "Tasting Pack" {
		t.Errorf("snapshot round trip mismatch: %+v", decoded)
	}
}

func TestNewOrderRejectsEmpty(t *testing.T) {
	if _, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), nil); err == nil {
		t.Fatal("expected error for empty order")
	}
}
