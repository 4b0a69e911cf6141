package market

import (
	"encoding/hex"
	"sort"

	"farmmarket/native/catalog"
)

// OrderFilter narrows Orders. Zero-valued fields match everything.
type OrderFilter struct {
	Buyer  *[20]byte
	Farmer *[20]byte
	Status OrderStatus
}

func (f OrderFilter) match(o *Order) bool {
	if f.Buyer != nil && o.Buyer != *f.Buyer {
		return false
	}
	if f.Farmer != nil && o.Farmer != *f.Farmer {
		return false
	}
	if f.Status != 0 && o.Status != f.Status {
		return false
	}
	return true
}

func (e *Engine) Product(id [32]byte) (*catalog.Product, error) {
	var product *catalog.Product
	err := e.view(func(txn Txn, _ Ledger) error {
		var err error
		product, err = loadProduct(txn, id)
		return err
	})
	return product, err
}

func (e *Engine) Order(id [32]byte) (*Order, error) {
	var order *Order
	err := e.view(func(txn Txn, _ Ledger) error {
		var err error
		order, err = loadOrder(txn, id)
		return err
	})
	return order, err
}

// Escrowed returns the value locked for a live order.
func (e *Engine) Escrowed(orderID [32]byte) (uint64, error) {
	var amount uint64
	err := e.view(func(_ Txn, ledger Ledger) error {
		locked, ok, err := ledger.Locked(orderID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderNotFound
		}
		amount = locked
		return nil
	})
	return amount, err
}

func (e *Engine) Dispute(id [32]byte) (*Dispute, error) {
	var dispute *Dispute
	err := e.view(func(txn Txn, _ Ledger) error {
		var err error
		dispute, err = loadDispute(txn, id)
		return err
	})
	return dispute, err
}

// Cap returns the capability minted by Init.
func (e *Engine) Cap() (*Cap, error) {
	var c *Cap
	err := e.view(func(txn Txn, _ Ledger) error {
		stored, ok, err := txn.CapGet()
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInitialized
		}
		c = stored
		return nil
	})
	return c, err
}

// Products lists every product, optionally only those owned by farmer,
// oldest first.
func (e *Engine) Products(farmer *[20]byte) ([]*catalog.Product, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	all, err := e.store.ListProducts()
	if err != nil {
		return nil, err
	}
	out := make([]*catalog.Product, 0, len(all))
	for _, p := range all {
		if farmer != nil && p.Farmer != *farmer {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// Orders lists live orders matching filter, oldest first.
func (e *Engine) Orders(filter OrderFilter) ([]*Order, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	all, err := e.store.ListOrders()
	if err != nil {
		return nil, err
	}
	out := make([]*Order, 0, len(all))
	for _, o := range all {
		if filter.match(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// ExpiredOrders lists Escrowed orders whose deadline is before now.
func (e *Engine) ExpiredOrders(now int64) ([]*Order, error) {
	orders, err := e.Orders(OrderFilter{Status: OrderStatusEscrowed})
	if err != nil {
		return nil, err
	}
	out := orders[:0]
	for _, o := range orders {
		if now > o.Deadline {
			out = append(out, o)
		}
	}
	return out, nil
}

// Disputes lists disputes, optionally only those opened over orderID.
func (e *Engine) Disputes(orderID *[32]byte) ([]*Dispute, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	all, err := e.store.ListDisputes()
	if err != nil {
		return nil, err
	}
	out := make([]*Dispute, 0, len(all))
	for _, d := range all {
		if orderID != nil && d.OrderID != *orderID {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func hexID(id [32]byte) string { return hex.EncodeToString(id[:]) }
