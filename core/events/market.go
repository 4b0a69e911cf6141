package events

import (
	"strconv"

	"farmmarket/core/types"
)

const (
	TypeMarketInitialized    = "market.initialized"
	TypeProductListed        = "market.product.listed"
	TypeStockUpdated         = "market.product.stock_updated"
	TypeProductDeleted       = "market.product.deleted"
	TypeOrderCreated         = "market.order.created"
	TypeOrderCompleted       = "market.order.completed"
	TypeRefund               = "market.order.refunded"
	TypeDisputeCreated       = "market.dispute.created"
	TypeCompensationProposed = "market.dispute.proposed"
	TypeDisputeResolved      = "market.dispute.resolved"
	TypeDisputeVoted         = "market.dispute.voted"
	TypeFaucetMinted         = "bank.faucet.minted"
)

type MarketInitialized struct {
	CapID    [32]byte
	Deployer [20]byte
}

func (MarketInitialized) EventType() string { return TypeMarketInitialized }

func (e MarketInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketInitialized,
		Attributes: map[string]string{
			"capId":    formatID(e.CapID),
			"deployer": formatAddr(e.Deployer),
		},
	}
}

type ProductListed struct {
	ProductID [32]byte
	Name      string
	UnitPrice uint64
	Stock     uint64
	Farmer    [20]byte
}

func (ProductListed) EventType() string { return TypeProductListed }

func (e ProductListed) Event() *types.Event {
	return &types.Event{
		Type: TypeProductListed,
		Attributes: map[string]string{
			"productId": formatID(e.ProductID),
			"name":      e.Name,
			"unitPrice": formatUint(e.UnitPrice),
			"stock":     formatUint(e.Stock),
			"farmer":    formatAddr(e.Farmer),
		},
	}
}

type StockUpdated struct {
	ProductID [32]byte
	Farmer    [20]byte
	OldStock  uint64
	NewStock  uint64
}

func (StockUpdated) EventType() string { return TypeStockUpdated }

func (e StockUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeStockUpdated,
		Attributes: map[string]string{
			"productId": formatID(e.ProductID),
			"farmer":    formatAddr(e.Farmer),
			"oldStock":  formatUint(e.OldStock),
			"newStock":  formatUint(e.NewStock),
		},
	}
}

type ProductDeleted struct {
	ProductID [32]byte
	Farmer    [20]byte
}

func (ProductDeleted) EventType() string { return TypeProductDeleted }

func (e ProductDeleted) Event() *types.Event {
	return &types.Event{
		Type: TypeProductDeleted,
		Attributes: map[string]string{
			"productId": formatID(e.ProductID),
			"farmer":    formatAddr(e.Farmer),
		},
	}
}

// OrderCreated carries both the computed price and the value actually locked,
// which differ when the buyer overpays.
type OrderCreated struct {
	OrderID    [32]byte
	ProductID  [32]byte
	Buyer      [20]byte
	Farmer     [20]byte
	Quantity   uint64
	TotalPrice uint64
	Escrowed   uint64
	Deadline   int64
}

func (OrderCreated) EventType() string { return TypeOrderCreated }

func (e OrderCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeOrderCreated,
		Attributes: map[string]string{
			"orderId":    formatID(e.OrderID),
			"productId":  formatID(e.ProductID),
			"buyer":      formatAddr(e.Buyer),
			"farmer":     formatAddr(e.Farmer),
			"quantity":   formatUint(e.Quantity),
			"totalPrice": formatUint(e.TotalPrice),
			"escrowed":   formatUint(e.Escrowed),
			"deadline":   formatInt(e.Deadline),
		},
	}
}

type OrderCompleted struct {
	OrderID [32]byte
	Buyer   [20]byte
	Farmer  [20]byte
	Amount  uint64
}

func (OrderCompleted) EventType() string { return TypeOrderCompleted }

func (e OrderCompleted) Event() *types.Event {
	return &types.Event{
		Type: TypeOrderCompleted,
		Attributes: map[string]string{
			"orderId": formatID(e.OrderID),
			"buyer":   formatAddr(e.Buyer),
			"farmer":  formatAddr(e.Farmer),
			"amount":  formatUint(e.Amount),
		},
	}
}

type Refund struct {
	OrderID [32]byte
	Buyer   [20]byte
	Amount  uint64
	Caller  [20]byte
}

func (Refund) EventType() string { return TypeRefund }

func (e Refund) Event() *types.Event {
	return &types.Event{
		Type: TypeRefund,
		Attributes: map[string]string{
			"orderId": formatID(e.OrderID),
			"buyer":   formatAddr(e.Buyer),
			"amount":  formatUint(e.Amount),
			"caller":  formatAddr(e.Caller),
		},
	}
}

type DisputeCreated struct {
	DisputeID [32]byte
	OrderID   [32]byte
	Buyer     [20]byte
	Farmer    [20]byte
}

func (DisputeCreated) EventType() string { return TypeDisputeCreated }

func (e DisputeCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeDisputeCreated,
		Attributes: map[string]string{
			"disputeId": formatID(e.DisputeID),
			"orderId":   formatID(e.OrderID),
			"buyer":     formatAddr(e.Buyer),
			"farmer":    formatAddr(e.Farmer),
		},
	}
}

type CompensationProposed struct {
	DisputeID        [32]byte
	Proposer         [20]byte
	FarmerPercentage uint8
	BuyerPercentage  uint8
}

func (CompensationProposed) EventType() string { return TypeCompensationProposed }

func (e CompensationProposed) Event() *types.Event {
	return &types.Event{
		Type: TypeCompensationProposed,
		Attributes: map[string]string{
			"disputeId":        formatID(e.DisputeID),
			"proposer":         formatAddr(e.Proposer),
			"farmerPercentage": strconv.Itoa(int(e.FarmerPercentage)),
			"buyerPercentage":  strconv.Itoa(int(e.BuyerPercentage)),
		},
	}
}

type DisputeResolved struct {
	DisputeID    [32]byte
	OrderID      [32]byte
	Buyer        [20]byte
	Farmer       [20]byte
	FarmerAmount uint64
	BuyerAmount  uint64
}

func (DisputeResolved) EventType() string { return TypeDisputeResolved }

func (e DisputeResolved) Event() *types.Event {
	return &types.Event{
		Type: TypeDisputeResolved,
		Attributes: map[string]string{
			"disputeId":    formatID(e.DisputeID),
			"orderId":      formatID(e.OrderID),
			"buyer":        formatAddr(e.Buyer),
			"farmer":       formatAddr(e.Farmer),
			"farmerAmount": formatUint(e.FarmerAmount),
			"buyerAmount":  formatUint(e.BuyerAmount),
		},
	}
}

// DisputeVoted is advisory telemetry; votes never gate resolution.
type DisputeVoted struct {
	DisputeID    [32]byte
	VoteFor      bool
	VotesFor     uint64
	VotesAgainst uint64
}

func (DisputeVoted) EventType() string { return TypeDisputeVoted }

func (e DisputeVoted) Event() *types.Event {
	return &types.Event{
		Type: TypeDisputeVoted,
		Attributes: map[string]string{
			"disputeId":    formatID(e.DisputeID),
			"voteFor":      strconv.FormatBool(e.VoteFor),
			"votesFor":     formatUint(e.VotesFor),
			"votesAgainst": formatUint(e.VotesAgainst),
		},
	}
}

type FaucetMinted struct {
	To     [20]byte
	Amount uint64
}

func (FaucetMinted) EventType() string { return TypeFaucetMinted }

func (e FaucetMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeFaucetMinted,
		Attributes: map[string]string{
			"to":     formatAddr(e.To),
			"amount": formatUint(e.Amount),
		},
	}
}
