package state

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"farmmarket/native/catalog"
	"farmmarket/native/market"
	"farmmarket/storage"
)

// Manager provides optimistic transactions over a storage.Database. Commits
// are serialised; each one first checks that every key its transaction read
// still holds the value it saw.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a transaction. The returned value also satisfies bank.State.
func (m *Manager) Begin() market.Txn {
	return m.BeginTx()
}

// BeginTx is Begin with the concrete type.
func (m *Manager) BeginTx() *Tx {
	return &Tx{
		mgr:    m,
		reads:  make(map[string]readEntry),
		writes: make(map[string]writeEntry),
	}
}

func (m *Manager) commit(tx *Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, seen := range tx.reads {
		current, present, err := m.load([]byte(key))
		if err != nil {
			return err
		}
		if present != seen.present || !bytes.Equal(current, seen.value) {
			return fmt.Errorf("%w: key %q", storage.ErrConflict, key)
		}
	}
	batch := storage.NewBatch()
	for _, key := range tx.order {
		entry := tx.writes[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	return m.db.Write(batch)
}

func (m *Manager) load(key []byte) ([]byte, bool, error) {
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// ListProducts returns every committed product.
func (m *Manager) ListProducts() ([]*catalog.Product, error) {
	var out []*catalog.Product
	err := m.db.Iterate(productPrefix, func(_, value []byte) error {
		var stored storedProduct
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			return err
		}
		out = append(out, stored.toProduct())
		return nil
	})
	return out, err
}

// ListOrders returns every committed live order.
func (m *Manager) ListOrders() ([]*market.Order, error) {
	var out []*market.Order
	err := m.db.Iterate(orderPrefix, func(_, value []byte) error {
		var stored storedOrder
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			return err
		}
		order, err := stored.toOrder()
		if err != nil {
			return err
		}
		out = append(out, order)
		return nil
	})
	return out, err
}

// ListDisputes returns every committed dispute, including orphaned ones.
func (m *Manager) ListDisputes() ([]*market.Dispute, error) {
	var out []*market.Dispute
	err := m.db.Iterate(disputePrefix, func(_, value []byte) error {
		var stored storedDispute
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			return err
		}
		out = append(out, stored.toDispute())
		return nil
	})
	return out, err
}
