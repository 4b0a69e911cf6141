package state

import (
	"fmt"

	"farmmarket/core/types"
	"farmmarket/native/catalog"
	"farmmarket/native/market"
)

// Timestamps are stored as their two's complement uint64 since RLP has no
// signed integers.

type storedProduct struct {
	ID        [32]byte
	Name      string
	UnitPrice uint64
	Stock     uint64
	Farmer    [20]byte
	CreatedAt uint64
}

func newStoredProduct(p *catalog.Product) *storedProduct {
	return &storedProduct{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Stock:     p.Stock,
		Farmer:    p.Farmer,
		CreatedAt: uint64(p.CreatedAt),
	}
}

func (s *storedProduct) toProduct() *catalog.Product {
	return &catalog.Product{
		ID:        s.ID,
		Name:      s.Name,
		UnitPrice: s.UnitPrice,
		Stock:     s.Stock,
		Farmer:    s.Farmer,
		CreatedAt: int64(s.CreatedAt),
	}
}

type storedOrder struct {
	ID         [32]byte
	ProductID  [32]byte
	Buyer      [20]byte
	Farmer     [20]byte
	Quantity   uint64
	TotalPrice uint64
	Deadline   uint64
	CreatedAt  uint64
	Status     uint8
}

func newStoredOrder(o *market.Order) *storedOrder {
	return &storedOrder{
		ID:         o.ID,
		ProductID:  o.ProductID,
		Buyer:      o.Buyer,
		Farmer:     o.Farmer,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Deadline:   uint64(o.Deadline),
		CreatedAt:  uint64(o.CreatedAt),
		Status:     uint8(o.Status),
	}
}

func (s *storedOrder) toOrder() (*market.Order, error) {
	status := market.OrderStatus(s.Status)
	switch status {
	case market.OrderStatusEscrowed, market.OrderStatusDisputed:
	default:
		return nil, fmt.Errorf("state: order %x has unknown status %d", s.ID, s.Status)
	}
	return &market.Order{
		ID:         s.ID,
		ProductID:  s.ProductID,
		Buyer:      s.Buyer,
		Farmer:     s.Farmer,
		Quantity:   s.Quantity,
		TotalPrice: s.TotalPrice,
		Deadline:   int64(s.Deadline),
		CreatedAt:  int64(s.CreatedAt),
		Status:     status,
	}, nil
}

type storedDispute struct {
	ID               [32]byte
	OrderID          [32]byte
	Buyer            [20]byte
	Farmer           [20]byte
	TotalAmount      uint64
	FarmerPercentage uint8
	BuyerPercentage  uint8
	Status           uint8
	VotesFor         uint64
	VotesAgainst     uint64
	CreatedAt        uint64
}

func newStoredDispute(d *market.Dispute) *storedDispute {
	return &storedDispute{
		ID:               d.ID,
		OrderID:          d.OrderID,
		Buyer:            d.Buyer,
		Farmer:           d.Farmer,
		TotalAmount:      d.TotalAmount,
		FarmerPercentage: d.FarmerPercentage,
		BuyerPercentage:  d.BuyerPercentage,
		Status:           uint8(d.Status),
		VotesFor:         d.VotesFor,
		VotesAgainst:     d.VotesAgainst,
		CreatedAt:        uint64(d.CreatedAt),
	}
}

func (s *storedDispute) toDispute() *market.Dispute {
	return &market.Dispute{
		ID:               s.ID,
		OrderID:          s.OrderID,
		Buyer:            s.Buyer,
		Farmer:           s.Farmer,
		TotalAmount:      s.TotalAmount,
		FarmerPercentage: s.FarmerPercentage,
		BuyerPercentage:  s.BuyerPercentage,
		Status:           market.DisputeStatus(s.Status),
		VotesFor:         s.VotesFor,
		VotesAgainst:     s.VotesAgainst,
		CreatedAt:        int64(s.CreatedAt),
	}
}

type storedCap struct {
	ID        [32]byte
	Owner     [20]byte
	CreatedAt uint64
}

type storedAccount struct {
	Balance uint64
}

func newStoredAccount(acc *types.Account) *storedAccount {
	return &storedAccount{Balance: acc.Clone().Balance}
}
