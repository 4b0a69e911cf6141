package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"farmmarket/core/types"
	"farmmarket/native/bank"
	"farmmarket/native/catalog"
	"farmmarket/native/market"
	"farmmarket/storage"
)

var _ bank.State = (*Tx)(nil)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db)
}

func TestRecordsRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	tx := mgr.BeginTx()

	product := catalog.New([32]byte{1}, [20]byte{2}, "maize", 50_000_000, 1000, 11)
	order := &market.Order{
		ID:         [32]byte{3},
		ProductID:  product.ID,
		Buyer:      [20]byte{4},
		Farmer:     product.Farmer,
		Quantity:   10,
		TotalPrice: 500_000_000,
		Deadline:   -5,
		CreatedAt:  12,
		Status:     market.OrderStatusDisputed,
	}
	dispute := &market.Dispute{
		ID:               [32]byte{5},
		OrderID:          order.ID,
		Buyer:            order.Buyer,
		Farmer:           order.Farmer,
		TotalAmount:      order.TotalPrice,
		FarmerPercentage: 70,
		BuyerPercentage:  30,
		Status:           market.DisputeStatusPending,
		VotesFor:         2,
	}
	require.NoError(t, tx.ProductPut(product))
	require.NoError(t, tx.OrderPut(order))
	require.NoError(t, tx.DisputePut(dispute))
	require.NoError(t, tx.CapPut(&market.Cap{ID: [32]byte{6}, Owner: [20]byte{7}}))
	require.NoError(t, tx.AccountPut([20]byte{4}, &types.Account{Balance: 99}))
	require.NoError(t, tx.EscrowLockPut(order.ID, 500_000_000))
	require.NoError(t, tx.SupplyPut(123))
	require.NoError(t, tx.Commit())

	read := mgr.BeginTx()
	defer read.Discard()
	gotProduct, ok, err := read.ProductGet(product.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, product, gotProduct)

	gotOrder, ok, err := read.OrderGet(order.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, order, gotOrder)

	gotDispute, ok, err := read.DisputeGet(dispute.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, dispute, gotDispute)

	gotCap, ok, err := read.CapGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [20]byte{7}, gotCap.Owner)

	acc, err := read.AccountGet([20]byte{4})
	require.NoError(t, err)
	require.Equal(t, uint64(99), acc.Balance)
	missing, err := read.AccountGet([20]byte{8})
	require.NoError(t, err)
	require.Zero(t, missing.Balance)

	locked, ok, err := read.EscrowLockGet(order.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(500_000_000), locked)

	supply, err := read.SupplyGet()
	require.NoError(t, err)
	require.Equal(t, uint64(123), supply)

	orders, err := mgr.ListOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)
	products, err := mgr.ListProducts()
	require.NoError(t, err)
	require.Len(t, products, 1)
	disputes, err := mgr.ListDisputes()
	require.NoError(t, err)
	require.Len(t, disputes, 1)
}

func TestDiscardWritesNothing(t *testing.T) {
	mgr := newTestManager(t)
	tx := mgr.BeginTx()
	require.NoError(t, tx.SupplyPut(10))
	tx.Discard()
	require.ErrorIs(t, tx.Commit(), errTxClosed)

	read := mgr.BeginTx()
	supply, err := read.SupplyGet()
	require.NoError(t, err)
	require.Zero(t, supply)
}

func TestTxSeesOwnWritesAndDeletes(t *testing.T) {
	mgr := newTestManager(t)
	tx := mgr.BeginTx()
	id := [32]byte{9}
	require.NoError(t, tx.EscrowLockPut(id, 5))
	_, ok, err := tx.EscrowLockGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tx.EscrowLockDelete(id))
	_, ok, err = tx.EscrowLockGet(id)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, tx.Commit())
}

func TestCommitDetectsConflict(t *testing.T) {
	mgr := newTestManager(t)
	owner := [20]byte{1}

	first := mgr.BeginTx()
	second := mgr.BeginTx()
	for _, tx := range []*Tx{first, second} {
		acc, err := tx.AccountGet(owner)
		require.NoError(t, err)
		acc.Balance += 10
		require.NoError(t, tx.AccountPut(owner, acc))
	}
	require.NoError(t, first.Commit())
	err := second.Commit()
	require.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)

	read := mgr.BeginTx()
	acc, err := read.AccountGet(owner)
	require.NoError(t, err)
	require.Equal(t, uint64(10), acc.Balance)
}

func TestBlindWritesDoNotConflict(t *testing.T) {
	mgr := newTestManager(t)
	first := mgr.BeginTx()
	second := mgr.BeginTx()
	require.NoError(t, first.SupplyPut(1))
	require.NoError(t, second.EscrowLockPut([32]byte{1}, 1))
	require.NoError(t, first.Commit())
	require.NoError(t, second.Commit())
}

func TestNextIDIsUniquePerCreatorAndKind(t *testing.T) {
	mgr := newTestManager(t)
	creator := [20]byte{1}
	seen := make(map[[32]byte]struct{})
	for i := 0; i < 3; i++ {
		tx := mgr.BeginTx()
		for _, kind := range []string{"order", "dispute"} {
			id, err := tx.NextID(kind, creator)
			require.NoError(t, err)
			_, dup := seen[id]
			require.False(t, dup)
			seen[id] = struct{}{}
		}
		require.NoError(t, tx.Commit())
	}
	other, err := mgr.BeginTx().NextID("order", [20]byte{2})
	require.NoError(t, err)
	_, dup := seen[other]
	require.False(t, dup)
}
