package catalog

import (
	"errors"
	"testing"
)

func TestProductStockRules(t *testing.T) {
	farmer := [20]byte{0x01}
	stranger := [20]byte{0x02}
	p := New([32]byte{0xAA}, farmer, "  maize ", 50_000_000, 1000, 7)
	if p.Name != "maize" || p.Farmer != farmer || p.CreatedAt != 7 {
		t.Fatalf("unexpected product %+v", p)
	}

	if _, err := p.SetStock(stranger, 1); !errors.Is(err, ErrNotFarmer) {
		t.Fatalf("expected ErrNotFarmer, got %v", err)
	}
	if p.Stock != 1000 {
		t.Fatalf("rejected update must not change stock")
	}
	prev, err := p.SetStock(farmer, 0)
	if err != nil || prev != 1000 || p.Stock != 0 {
		t.Fatalf("unexpected set stock result prev=%d stock=%d err=%v", prev, p.Stock, err)
	}

	if err := p.Reserve(1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	_, _ = p.SetStock(farmer, 10)
	if err := p.Reserve(10); err != nil || p.Stock != 0 {
		t.Fatalf("reserve full stock: %v stock=%d", err, p.Stock)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := New([32]byte{}, [20]byte{}, "beans", 1, 5, 0)
	c := p.Clone()
	c.Stock = 0
	if p.Stock != 5 {
		t.Fatalf("clone shares state")
	}
	var nilProduct *Product
	if nilProduct.Clone() != nil {
		t.Fatalf("nil clone must be nil")
	}
	if err := nilProduct.Reserve(1); !errors.Is(err, ErrNilProduct) {
		t.Fatalf("expected ErrNilProduct, got %v", err)
	}
}
