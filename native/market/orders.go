package market

import (
	"fmt"

	"farmmarket/core/events"
)

// CreateOrder reserves quantity units of the product for buyer and moves
// payment from the buyer's balance into the order's escrow slot. The whole
// payment is locked, including any amount above the total price; the excess
// follows whichever terminal transition settles the order.
func (e *Engine) CreateOrder(buyer [20]byte, productID [32]byte, quantity, deadlineHours, payment uint64) (*Order, error) {
	var order *Order
	err := e.update("createOrder", func(txn Txn, ledger Ledger) ([]events.Event, error) {
		product, err := loadProduct(txn, productID)
		if err != nil {
			return nil, err
		}
		if product.Stock < quantity {
			return nil, fmt.Errorf("%w: have %d, want %d", ErrInsufficientStock, product.Stock, quantity)
		}
		total := orderTotal(product.UnitPrice, quantity)
		if payment < total {
			return nil, fmt.Errorf("%w: paid %d, total %d", ErrInsufficientPayment, payment, total)
		}
		now := e.now()
		deadline := orderDeadline(now, deadlineHours)

		if err := product.Reserve(quantity); err != nil {
			return nil, err
		}
		if err := txn.ProductPut(product); err != nil {
			return nil, err
		}
		id, err := txn.NextID(kindOrder, buyer)
		if err != nil {
			return nil, err
		}
		coin, err := ledger.Withdraw(buyer, payment)
		if err != nil {
			return nil, err
		}
		escrowed := ledger.Value(coin)
		if err := ledger.Lock(id, coin); err != nil {
			return nil, err
		}
		order = &Order{
			ID:         id,
			ProductID:  productID,
			Buyer:      buyer,
			Farmer:     product.Farmer,
			Quantity:   quantity,
			TotalPrice: total,
			Deadline:   deadline,
			CreatedAt:  now,
			Status:     OrderStatusEscrowed,
		}
		if err := txn.OrderPut(order); err != nil {
			return nil, err
		}
		return []events.Event{events.OrderCreated{
			OrderID:    id,
			ProductID:  productID,
			Buyer:      buyer,
			Farmer:     product.Farmer,
			Quantity:   quantity,
			TotalPrice: total,
			Escrowed:   escrowed,
			Deadline:   deadline,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveLocked(payment)
	return order.Clone(), nil
}

// ConfirmDelivery releases the whole escrow to the farmer. Only the buyer may
// confirm, and only up to and including the deadline.
func (e *Engine) ConfirmDelivery(orderID [32]byte, caller [20]byte) error {
	var paid uint64
	err := e.update("confirmDelivery", func(txn Txn, ledger Ledger) ([]events.Event, error) {
		order, err := loadOrder(txn, orderID)
		if err != nil {
			return nil, err
		}
		if order.Buyer != caller {
			return nil, ErrNotBuyer
		}
		if order.Status != OrderStatusEscrowed {
			return nil, fmt.Errorf("%w: order is %s", ErrInvalidOrder, order.Status)
		}
		if e.now() > order.Deadline {
			return nil, ErrDeadlinePassed
		}
		amount, err := e.settle(txn, ledger, order, order.Farmer)
		if err != nil {
			return nil, err
		}
		paid = amount
		return []events.Event{events.OrderCompleted{
			OrderID: orderID,
			Buyer:   order.Buyer,
			Farmer:  order.Farmer,
			Amount:  amount,
		}}, nil
	})
	if err == nil {
		e.metrics.ObserveSettlement("confirmed", paid, 0)
	}
	return err
}

// ProcessExpiredOrder refunds the whole escrow to the buyer once the deadline
// has passed. Any caller may trigger it.
func (e *Engine) ProcessExpiredOrder(orderID [32]byte, caller [20]byte) error {
	var refunded uint64
	err := e.update("processExpiredOrder", func(txn Txn, ledger Ledger) ([]events.Event, error) {
		order, err := loadOrder(txn, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status != OrderStatusEscrowed {
			return nil, fmt.Errorf("%w: order is %s", ErrInvalidOrder, order.Status)
		}
		if e.now() <= order.Deadline {
			return nil, ErrDeadlineNotPassed
		}
		amount, err := e.settle(txn, ledger, order, order.Buyer)
		if err != nil {
			return nil, err
		}
		refunded = amount
		return []events.Event{events.Refund{
			OrderID: orderID,
			Buyer:   order.Buyer,
			Amount:  amount,
			Caller:  caller,
		}}, nil
	})
	if err == nil {
		e.metrics.ObserveSettlement("expired", 0, refunded)
	}
	return err
}

// settle empties the order's escrow slot into recipient and destroys the
// order.
func (e *Engine) settle(txn Txn, ledger Ledger, order *Order, recipient [20]byte) (uint64, error) {
	coin, err := ledger.Unlock(order.ID)
	if err != nil {
		return 0, err
	}
	amount := ledger.Value(coin)
	if err := ledger.TransferTo(recipient, coin); err != nil {
		return 0, err
	}
	if err := txn.OrderDelete(order.ID); err != nil {
		return 0, err
	}
	return amount, nil
}

func loadOrder(txn Txn, id [32]byte) (*Order, error) {
	order, ok, err := txn.OrderGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order.Clone(), nil
}
