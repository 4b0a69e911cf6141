package state

import (
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"farmmarket/core/types"
	"farmmarket/native/catalog"
	"farmmarket/native/market"
)

var errTxClosed = errors.New("state: transaction already committed or discarded")

type readEntry struct {
	value   []byte
	present bool
}

type writeEntry struct {
	value   []byte
	deleted bool
}

// Tx buffers writes in memory and records the first value observed for every
// key it reads. Nothing reaches the database until Commit.
type Tx struct {
	mgr    *Manager
	reads  map[string]readEntry
	writes map[string]writeEntry
	order  []string
	closed bool
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if tx.closed {
		return nil, false, errTxClosed
	}
	k := string(key)
	if entry, ok := tx.writes[k]; ok {
		if entry.deleted {
			return nil, false, nil
		}
		return entry.value, true, nil
	}
	if entry, ok := tx.reads[k]; ok {
		return entry.value, entry.present, nil
	}
	value, present, err := tx.mgr.load(key)
	if err != nil {
		return nil, false, err
	}
	tx.reads[k] = readEntry{value: value, present: present}
	return value, present, nil
}

func (tx *Tx) set(key []byte, entry writeEntry) error {
	if tx.closed {
		return errTxClosed
	}
	k := string(key)
	if _, ok := tx.writes[k]; !ok {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = entry
	return nil
}

func (tx *Tx) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return tx.set(key, writeEntry{value: encoded})
}

func (tx *Tx) delete(key []byte) error {
	return tx.set(key, writeEntry{deleted: true})
}

func (tx *Tx) decode(key []byte, out interface{}) (bool, error) {
	data, ok, err := tx.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Commit validates the read set and applies the buffered writes atomically.
func (tx *Tx) Commit() error {
	if tx.closed {
		return errTxClosed
	}
	tx.closed = true
	return tx.mgr.commit(tx)
}

// Discard drops the buffered writes.
func (tx *Tx) Discard() {
	tx.closed = true
}

func (tx *Tx) ProductGet(id [32]byte) (*catalog.Product, bool, error) {
	var stored storedProduct
	ok, err := tx.decode(productKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toProduct(), true, nil
}

func (tx *Tx) ProductPut(p *catalog.Product) error {
	if p == nil {
		return catalog.ErrNilProduct
	}
	return tx.put(productKey(p.ID), newStoredProduct(p))
}

func (tx *Tx) ProductDelete(id [32]byte) error { return tx.delete(productKey(id)) }

func (tx *Tx) OrderGet(id [32]byte) (*market.Order, bool, error) {
	var stored storedOrder
	ok, err := tx.decode(orderKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	order, err := stored.toOrder()
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (tx *Tx) OrderPut(o *market.Order) error {
	if o == nil {
		return market.ErrInvalidOrder
	}
	return tx.put(orderKey(o.ID), newStoredOrder(o))
}

func (tx *Tx) OrderDelete(id [32]byte) error { return tx.delete(orderKey(id)) }

func (tx *Tx) DisputeGet(id [32]byte) (*market.Dispute, bool, error) {
	var stored storedDispute
	ok, err := tx.decode(disputeKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toDispute(), true, nil
}

func (tx *Tx) DisputePut(d *market.Dispute) error {
	if d == nil {
		return market.ErrDisputeNotFound
	}
	return tx.put(disputeKey(d.ID), newStoredDispute(d))
}

func (tx *Tx) DisputeDelete(id [32]byte) error { return tx.delete(disputeKey(id)) }

func (tx *Tx) CapGet() (*market.Cap, bool, error) {
	var stored storedCap
	ok, err := tx.decode(capKeyBytes, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &market.Cap{ID: stored.ID, Owner: stored.Owner, CreatedAt: int64(stored.CreatedAt)}, true, nil
}

func (tx *Tx) CapPut(c *market.Cap) error {
	return tx.put(capKeyBytes, &storedCap{ID: c.ID, Owner: c.Owner, CreatedAt: uint64(c.CreatedAt)})
}

// NextID returns keccak256(kind || creator || nonce) and bumps the creator's
// nonce for kind.
func (tx *Tx) NextID(kind string, creator [20]byte) ([32]byte, error) {
	key := nonceKey(kind, creator)
	var nonce uint64
	if _, err := tx.decode(key, &nonce); err != nil {
		return [32]byte{}, err
	}
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256([]byte(kind), creator[:], nonceBytes[:]))
	if err := tx.put(key, nonce+1); err != nil {
		return [32]byte{}, err
	}
	return id, nil
}

func (tx *Tx) AccountGet(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	if _, err := tx.decode(accountKey(addr), &stored); err != nil {
		return nil, err
	}
	return &types.Account{Balance: stored.Balance}, nil
}

func (tx *Tx) AccountPut(addr [20]byte, account *types.Account) error {
	return tx.put(accountKey(addr), newStoredAccount(account))
}

func (tx *Tx) EscrowLockGet(id [32]byte) (uint64, bool, error) {
	var amount uint64
	ok, err := tx.decode(escrowKey(id), &amount)
	return amount, ok, err
}

func (tx *Tx) EscrowLockPut(id [32]byte, amount uint64) error {
	return tx.put(escrowKey(id), amount)
}

func (tx *Tx) EscrowLockDelete(id [32]byte) error { return tx.delete(escrowKey(id)) }

func (tx *Tx) SupplyGet() (uint64, error) {
	var supply uint64
	_, err := tx.decode(supplyKey, &supply)
	return supply, err
}

func (tx *Tx) SupplyPut(total uint64) error { return tx.put(supplyKey, total) }
