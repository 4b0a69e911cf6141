package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFarmer         = errors.New("catalog: caller is not the product's farmer")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrNilProduct        = errors.New("catalog: nil product")
)

// Product is a listing owned by a single farmer. The unit price is fixed at
// creation; only the stock can change afterwards.
type Product struct {
	ID        [32]byte
	Name      string
	UnitPrice uint64
	Stock     uint64
	Farmer    [20]byte
	CreatedAt int64
}

// New builds a listing for farmer. Price and stock are accepted as given,
// including zero.
func New(id [32]byte, farmer [20]byte, name string, unitPrice, stock uint64, now int64) *Product {
	return &Product{
		ID:        id,
		Name:      strings.TrimSpace(name),
		UnitPrice: unitPrice,
		Stock:     stock,
		Farmer:    farmer,
		CreatedAt: now,
	}
}

// Clone returns a copy so callers can mutate it without touching stored state.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Authorize fails with ErrNotFarmer unless caller owns the product.
func (p *Product) Authorize(caller [20]byte) error {
	if p == nil {
		return ErrNilProduct
	}
	if p.Farmer != caller {
		return ErrNotFarmer
	}
	return nil
}

// SetStock overwrites the stock after checking ownership and returns the
// previous value.
func (p *Product) SetStock(caller [20]byte, stock uint64) (uint64, error) {
	if err := p.Authorize(caller); err != nil {
		return 0, err
	}
	previous := p.Stock
	p.Stock = stock
	return previous, nil
}

// Reserve removes quantity units from stock.
func (p *Product) Reserve(quantity uint64) error {
	if p == nil {
		return ErrNilProduct
	}
	if p.Stock < quantity {
		return fmt.Errorf("%w: have %d, want %d", ErrInsufficientStock, p.Stock, quantity)
	}
	p.Stock -= quantity
	return nil
}
