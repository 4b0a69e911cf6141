package bank

import (
	"errors"
	"fmt"
	"math/bits"

	"farmmarket/core/types"
)

var (
	ErrCoinSpent           = errors.New("bank: coin already spent")
	ErrNilCoin             = errors.New("bank: nil coin")
	ErrInsufficientValue   = errors.New("bank: coin value too small for split")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrNonZeroCoin         = errors.New("bank: coin has non-zero value")
	ErrEscrowExists        = errors.New("bank: escrow slot already funded")
	ErrEscrowNotFound      = errors.New("bank: escrow slot not found")
	ErrSupplyOverflow      = errors.New("bank: supply overflow")
)

// State is the persistence surface the ledger needs. Every method runs inside
// the caller's transaction, so debits and credits commit together.
type State interface {
	AccountGet(addr [20]byte) (*types.Account, error)
	AccountPut(addr [20]byte, account *types.Account) error
	EscrowLockGet(id [32]byte) (uint64, bool, error)
	EscrowLockPut(id [32]byte, amount uint64) error
	EscrowLockDelete(id [32]byte) error
	SupplyGet() (uint64, error)
	SupplyPut(total uint64) error
}

// Coin is a detached amount of tokens in flight between accounts and escrow
// slots. A coin is consumed by exactly one of TransferTo, Lock, Split or
// DestroyZero; any later use fails with ErrCoinSpent.
type Coin struct {
	value uint64
	spent bool
}

// Value returns the amount carried by the coin.
func (c *Coin) Value() uint64 {
	if c == nil {
		return 0
	}
	return c.value
}

// Spent reports whether the coin has been consumed.
func (c *Coin) Spent() bool {
	return c != nil && c.spent
}

func (c *Coin) take() (uint64, error) {
	if c == nil {
		return 0, ErrNilCoin
	}
	if c.spent {
		return 0, ErrCoinSpent
	}
	c.spent = true
	v := c.value
	c.value = 0
	return v, nil
}

// Ledger moves value between accounts, coins and escrow slots.
type Ledger struct {
	state State
}

// NewLedger binds a ledger to a transactional state view.
func NewLedger(state State) *Ledger {
	return &Ledger{state: state}
}

// Mint creates new supply and returns it as a coin.
func (l *Ledger) Mint(amount uint64) (*Coin, error) {
	supply, err := l.state.SupplyGet()
	if err != nil {
		return nil, err
	}
	next, carry := bits.Add64(supply, amount, 0)
	if carry != 0 {
		return nil, ErrSupplyOverflow
	}
	if err := l.state.SupplyPut(next); err != nil {
		return nil, err
	}
	return &Coin{value: amount}, nil
}

// TotalSupply returns the amount minted so far.
func (l *Ledger) TotalSupply() (uint64, error) {
	return l.state.SupplyGet()
}

// Balance returns the spendable balance of owner.
func (l *Ledger) Balance(owner [20]byte) (uint64, error) {
	acc, err := l.state.AccountGet(owner)
	if err != nil {
		return 0, err
	}
	return acc.Clone().Balance, nil
}

// Withdraw debits amount from owner's account into a new coin.
func (l *Ledger) Withdraw(owner [20]byte, amount uint64) (*Coin, error) {
	acc, err := l.state.AccountGet(owner)
	if err != nil {
		return nil, err
	}
	acc = acc.Clone()
	if acc.Balance < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, acc.Balance, amount)
	}
	acc.Balance -= amount
	if err := l.state.AccountPut(owner, acc); err != nil {
		return nil, err
	}
	return &Coin{value: amount}, nil
}

// Value returns the amount carried by c.
func (l *Ledger) Value(c *Coin) uint64 {
	return c.Value()
}

// Split consumes c and returns a coin worth amount plus a coin holding the
// remainder.
func (l *Ledger) Split(c *Coin, amount uint64) (*Coin, *Coin, error) {
	if c == nil {
		return nil, nil, ErrNilCoin
	}
	if c.spent {
		return nil, nil, ErrCoinSpent
	}
	if c.value < amount {
		return nil, nil, ErrInsufficientValue
	}
	total, _ := c.take()
	return &Coin{value: amount}, &Coin{value: total - amount}, nil
}

// TransferTo consumes c and credits its value to owner. A zero-value coin is
// consumed without touching the account.
func (l *Ledger) TransferTo(owner [20]byte, c *Coin) error {
	if c == nil {
		return ErrNilCoin
	}
	if c.spent {
		return ErrCoinSpent
	}
	if c.value == 0 {
		_, err := c.take()
		return err
	}
	acc, err := l.state.AccountGet(owner)
	if err != nil {
		return err
	}
	acc = acc.Clone()
	next, carry := bits.Add64(acc.Balance, c.value, 0)
	if carry != 0 {
		return ErrSupplyOverflow
	}
	acc.Balance = next
	if err := l.state.AccountPut(owner, acc); err != nil {
		return err
	}
	_, err = c.take()
	return err
}

// DestroyZero consumes a coin that carries no value.
func (l *Ledger) DestroyZero(c *Coin) error {
	if c == nil {
		return ErrNilCoin
	}
	if c.spent {
		return ErrCoinSpent
	}
	if c.value != 0 {
		return ErrNonZeroCoin
	}
	_, err := c.take()
	return err
}

// Lock consumes c into the escrow slot identified by id. A slot can be funded
// once; it is emptied only by Unlock.
func (l *Ledger) Lock(id [32]byte, c *Coin) error {
	if c == nil {
		return ErrNilCoin
	}
	if c.spent {
		return ErrCoinSpent
	}
	if _, exists, err := l.state.EscrowLockGet(id); err != nil {
		return err
	} else if exists {
		return ErrEscrowExists
	}
	if err := l.state.EscrowLockPut(id, c.value); err != nil {
		return err
	}
	_, err := c.take()
	return err
}

// Unlock empties the escrow slot and returns its whole value as a coin.
func (l *Ledger) Unlock(id [32]byte) (*Coin, error) {
	amount, exists, err := l.state.EscrowLockGet(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrEscrowNotFound
	}
	if err := l.state.EscrowLockDelete(id); err != nil {
		return nil, err
	}
	return &Coin{value: amount}, nil
}

// Locked reports the value held in an escrow slot.
func (l *Ledger) Locked(id [32]byte) (uint64, bool, error) {
	return l.state.EscrowLockGet(id)
}
