package market

// OrderStatus tracks the single pre-terminal life of an order. Settled orders
// are deleted rather than marked.
type OrderStatus uint8

const (
	OrderStatusEscrowed OrderStatus = iota + 1
	// OrderStatusDisputed is only reachable when Settings.LockOrderOnDispute is
	// enabled.
	OrderStatusDisputed
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusEscrowed:
		return "escrowed"
	case OrderStatusDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

type DisputeStatus uint8

const (
	DisputeStatusPending DisputeStatus = iota + 1
)

func (s DisputeStatus) String() string {
	if s == DisputeStatusPending {
		return "pending"
	}
	return "unknown"
}

// Order binds a buyer's locked payment to a product purchase. The payment
// itself lives in the ledger escrow slot keyed by ID.
type Order struct {
	ID         [32]byte
	ProductID  [32]byte
	Buyer      [20]byte
	Farmer     [20]byte
	Quantity   uint64
	TotalPrice uint64
	Deadline   int64
	CreatedAt  int64
	Status     OrderStatus
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// Dispute records a proposed split over one order's escrow. It never holds
// funds.
type Dispute struct {
	ID               [32]byte
	OrderID          [32]byte
	Buyer            [20]byte
	Farmer           [20]byte
	TotalAmount      uint64
	FarmerPercentage uint8
	BuyerPercentage  uint8
	Status           DisputeStatus
	VotesFor         uint64
	VotesAgainst     uint64
	CreatedAt        int64
}

func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

// IsParty reports whether addr is the dispute's buyer or farmer.
func (d *Dispute) IsParty(addr [20]byte) bool {
	return d != nil && (d.Buyer == addr || d.Farmer == addr)
}

func validPercentages(farmer, buyer uint8) bool {
	return int(farmer)+int(buyer) == 100
}

// Cap is the marketplace admin capability. It is minted once at
// initialization and no operation consumes it.
type Cap struct {
	ID        [32]byte
	Owner     [20]byte
	CreatedAt int64
}

// Settings toggles behavioural variants of the engine.
type Settings struct {
	// LockOrderOnDispute moves an order to OrderStatusDisputed when a dispute
	// is opened, barring confirm, expiry and further disputes until the
	// dispute is accepted.
	LockOrderOnDispute bool
}
