package market

import (
	"farmmarket/native/bank"
	"farmmarket/native/catalog"
)

// Txn is a single optimistic transaction over marketplace state. Commit fails
// with storage.ErrConflict when another writer changed something this
// transaction read. Discard after Commit is a no-op.
type Txn interface {
	bank.State

	ProductGet(id [32]byte) (*catalog.Product, bool, error)
	ProductPut(p *catalog.Product) error
	ProductDelete(id [32]byte) error

	OrderGet(id [32]byte) (*Order, bool, error)
	OrderPut(o *Order) error
	OrderDelete(id [32]byte) error

	DisputeGet(id [32]byte) (*Dispute, bool, error)
	DisputePut(d *Dispute) error
	DisputeDelete(id [32]byte) error

	CapGet() (*Cap, bool, error)
	CapPut(c *Cap) error

	// NextID derives a fresh identifier for an object of the given kind
	// created by creator.
	NextID(kind string, creator [20]byte) ([32]byte, error)

	Commit() error
	Discard()
}

// Store opens transactions and serves committed listings.
type Store interface {
	Begin() Txn
	ListProducts() ([]*catalog.Product, error)
	ListOrders() ([]*Order, error)
	ListDisputes() ([]*Dispute, error)
}

// Ledger is the token collaborator. *bank.Ledger satisfies it.
type Ledger interface {
	Mint(amount uint64) (*bank.Coin, error)
	Value(c *bank.Coin) uint64
	Split(c *bank.Coin, amount uint64) (*bank.Coin, *bank.Coin, error)
	TransferTo(owner [20]byte, c *bank.Coin) error
	DestroyZero(c *bank.Coin) error
	Withdraw(owner [20]byte, amount uint64) (*bank.Coin, error)
	Balance(owner [20]byte) (uint64, error)
	Lock(id [32]byte, c *bank.Coin) error
	Unlock(id [32]byte) (*bank.Coin, error)
	Locked(id [32]byte) (uint64, bool, error)
}

func defaultLedger(state bank.State) Ledger { return bank.NewLedger(state) }
