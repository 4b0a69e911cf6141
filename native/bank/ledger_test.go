package bank

import (
	"errors"
	"math"
	"testing"

	"farmmarket/core/types"
)

type mockState struct {
	accounts map[[20]byte]*types.Account
	locks    map[[32]byte]uint64
	supply   uint64
}

func newMockState() *mockState {
	return &mockState{
		accounts: make(map[[20]byte]*types.Account),
		locks:    make(map[[32]byte]uint64),
	}
}

func (m *mockState) AccountGet(addr [20]byte) (*types.Account, error) {
	acc, ok := m.accounts[addr]
	if !ok {
		return &types.Account{}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) AccountPut(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockState) EscrowLockGet(id [32]byte) (uint64, bool, error) {
	v, ok := m.locks[id]
	return v, ok, nil
}

func (m *mockState) EscrowLockPut(id [32]byte, amount uint64) error {
	m.locks[id] = amount
	return nil
}

func (m *mockState) EscrowLockDelete(id [32]byte) error {
	delete(m.locks, id)
	return nil
}

func (m *mockState) SupplyGet() (uint64, error) { return m.supply, nil }

func (m *mockState) SupplyPut(total uint64) error {
	m.supply = total
	return nil
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func (m *mockState) conserved() uint64 {
	var total uint64
	for _, acc := range m.accounts {
		total += acc.Balance
	}
	for _, v := range m.locks {
		total += v
	}
	return total
}

func TestMintAndTransfer(t *testing.T) {
	state := newMockState()
	ledger := NewLedger(state)
	alice := addr(1)

	coin, err := ledger.Mint(1_000)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if ledger.Value(coin) != 1_000 {
		t.Fatalf("unexpected coin value %d", coin.Value())
	}
	if err := ledger.TransferTo(alice, coin); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !coin.Spent() || coin.Value() != 0 {
		t.Fatalf("transferred coin must be consumed")
	}
	if err := ledger.TransferTo(alice, coin); !errors.Is(err, ErrCoinSpent) {
		t.Fatalf("expected ErrCoinSpent, got %v", err)
	}
	bal, _ := ledger.Balance(alice)
	supply, _ := ledger.TotalSupply()
	if bal != 1_000 || supply != 1_000 {
		t.Fatalf("unexpected balance %d supply %d", bal, supply)
	}
}

func TestMintOverflow(t *testing.T) {
	state := newMockState()
	state.supply = math.MaxUint64
	if _, err := NewLedger(state).Mint(1); !errors.Is(err, ErrSupplyOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	state := newMockState()
	ledger := NewLedger(state)
	alice := addr(1)
	state.accounts[alice] = &types.Account{Balance: 10}
	if _, err := ledger.Withdraw(alice, 11); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if state.accounts[alice].Balance != 10 {
		t.Fatalf("failed withdraw must not debit")
	}
	coin, err := ledger.Withdraw(alice, 10)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if coin.Value() != 10 || state.accounts[alice].Balance != 0 {
		t.Fatalf("unexpected withdraw result")
	}
}

func TestSplitConsumesSource(t *testing.T) {
	ledger := NewLedger(newMockState())
	coin, _ := ledger.Mint(100)
	part, rest, err := ledger.Split(coin, 70)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if part.Value() != 70 || rest.Value() != 30 {
		t.Fatalf("unexpected split %d/%d", part.Value(), rest.Value())
	}
	if !coin.Spent() {
		t.Fatalf("source coin must be consumed")
	}
	if _, _, err := ledger.Split(coin, 1); !errors.Is(err, ErrCoinSpent) {
		t.Fatalf("expected ErrCoinSpent, got %v", err)
	}
	if _, _, err := ledger.Split(rest, 31); !errors.Is(err, ErrInsufficientValue) {
		t.Fatalf("expected ErrInsufficientValue, got %v", err)
	}
	if rest.Spent() {
		t.Fatalf("failed split must not consume the coin")
	}
}

func TestZeroValueCoins(t *testing.T) {
	state := newMockState()
	ledger := NewLedger(state)
	zero, _ := ledger.Mint(0)
	if err := ledger.TransferTo(addr(9), zero); err != nil {
		t.Fatalf("zero transfer must succeed: %v", err)
	}
	if _, ok := state.accounts[addr(9)]; ok {
		t.Fatalf("zero transfer must not create an account record")
	}

	another, _ := ledger.Mint(0)
	if err := ledger.DestroyZero(another); err != nil {
		t.Fatalf("destroy zero: %v", err)
	}
	nonZero, _ := ledger.Mint(1)
	if err := ledger.DestroyZero(nonZero); !errors.Is(err, ErrNonZeroCoin) {
		t.Fatalf("expected ErrNonZeroCoin, got %v", err)
	}
	if nonZero.Spent() {
		t.Fatalf("rejected destroy must leave the coin usable")
	}
}

func TestLockUnlockConservesValue(t *testing.T) {
	state := newMockState()
	ledger := NewLedger(state)
	buyer := addr(1)
	seller := addr(2)
	id := [32]byte{0x01}

	minted, _ := ledger.Mint(500)
	if err := ledger.TransferTo(buyer, minted); err != nil {
		t.Fatalf("fund buyer: %v", err)
	}
	payment, _ := ledger.Withdraw(buyer, 300)
	if err := ledger.Lock(id, payment); err != nil {
		t.Fatalf("lock: %v", err)
	}
	again, _ := ledger.Withdraw(buyer, 1)
	if err := ledger.Lock(id, again); !errors.Is(err, ErrEscrowExists) {
		t.Fatalf("expected ErrEscrowExists, got %v", err)
	}
	_ = ledger.TransferTo(buyer, again)

	locked, ok, _ := ledger.Locked(id)
	if !ok || locked != 300 {
		t.Fatalf("unexpected locked %d", locked)
	}
	if state.conserved() != 500 {
		t.Fatalf("value not conserved while locked: %d", state.conserved())
	}
	released, err := ledger.Unlock(id)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := ledger.TransferTo(seller, released); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if _, err := ledger.Unlock(id); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("expected ErrEscrowNotFound, got %v", err)
	}
	if state.conserved() != 500 || state.accounts[seller].Balance != 300 {
		t.Fatalf("unexpected final balances")
	}
}
