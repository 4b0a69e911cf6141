package market

import (
	"fmt"

	"farmmarket/core/events"
	"farmmarket/native/bank"
)

// CreateDispute opens a Pending dispute over a live order. Only the buyer may
// open one. Unless Settings.LockOrderOnDispute is set the order stays
// Escrowed, so confirm and expiry can still settle it first and leave the
// dispute orphaned.
func (e *Engine) CreateDispute(orderID [32]byte, caller [20]byte) (*Dispute, error) {
	var dispute *Dispute
	err := e.update("createDispute", func(txn Txn, ledger Ledger) ([]events.Event, error) {
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
		id, err := txn.NextID(kindDispute, caller)
		if err != nil {
			return nil, err
		}
		dispute = &Dispute{
			ID:          id,
			OrderID:     orderID,
			Buyer:       order.Buyer,
			Farmer:      order.Farmer,
			TotalAmount: order.TotalPrice,
			Status:      DisputeStatusPending,
			CreatedAt:   e.now(),
		}
		if err := txn.DisputePut(dispute); err != nil {
			return nil, err
		}
		if e.settings.LockOrderOnDispute {
			order.Status = OrderStatusDisputed
			if err := txn.OrderPut(order); err != nil {
				return nil, err
			}
		}
		return []events.Event{events.DisputeCreated{
			DisputeID: id,
			OrderID:   orderID,
			Buyer:     order.Buyer,
			Farmer:    order.Farmer,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return dispute.Clone(), nil
}

// ProposeCompensation records a split proposal, replacing any earlier one.
func (e *Engine) ProposeCompensation(disputeID [32]byte, caller [20]byte, farmerPct, buyerPct uint8) error {
	return e.update("proposeCompensation", func(txn Txn, _ Ledger) ([]events.Event, error) {
		dispute, err := loadDispute(txn, disputeID)
		if err != nil {
			return nil, err
		}
		if !dispute.IsParty(caller) {
			return nil, ErrNotAuthorized
		}
		if dispute.Status != DisputeStatusPending {
			return nil, ErrAlreadyResolved
		}
		if !validPercentages(farmerPct, buyerPct) {
			return nil, fmt.Errorf("%w: got %d+%d", ErrInvalidPercentage, farmerPct, buyerPct)
		}
		dispute.FarmerPercentage = farmerPct
		dispute.BuyerPercentage = buyerPct
		if err := txn.DisputePut(dispute); err != nil {
			return nil, err
		}
		return []events.Event{events.CompensationProposed{
			DisputeID:        disputeID,
			Proposer:         caller,
			FarmerPercentage: farmerPct,
			BuyerPercentage:  buyerPct,
		}}, nil
	})
}

// AcceptCompensation applies the current proposal to the order named by
// orderID, which must be the dispute's own order. The farmer receives
// floor(locked*farmerPct/100) and the buyer the remainder; the dispute and the
// order are destroyed.
func (e *Engine) AcceptCompensation(disputeID, orderID [32]byte, caller [20]byte) error {
	var farmerPaid, buyerPaid uint64
	err := e.update("acceptCompensation", func(txn Txn, ledger Ledger) ([]events.Event, error) {
		dispute, err := loadDispute(txn, disputeID)
		if err != nil {
			return nil, err
		}
		if !dispute.IsParty(caller) {
			return nil, ErrNotAuthorized
		}
		if dispute.Status != DisputeStatusPending {
			return nil, ErrAlreadyResolved
		}
		if !validPercentages(dispute.FarmerPercentage, dispute.BuyerPercentage) {
			return nil, fmt.Errorf("%w: got %d+%d", ErrInvalidPercentage, dispute.FarmerPercentage, dispute.BuyerPercentage)
		}
		if dispute.OrderID != orderID {
			return nil, fmt.Errorf("%w: dispute belongs to order %s", ErrInvalidOrder, hexID(dispute.OrderID))
		}
		order, err := loadOrder(txn, orderID)
		if err != nil {
			return nil, err
		}

		coin, err := ledger.Unlock(order.ID)
		if err != nil {
			return nil, err
		}
		total := ledger.Value(coin)
		farmerAmount := farmerShare(total, dispute.FarmerPercentage)
		farmerCoin, buyerCoin, err := ledger.Split(coin, farmerAmount)
		if err != nil {
			return nil, err
		}
		buyerAmount := ledger.Value(buyerCoin)
		if err := disburse(ledger, dispute.Farmer, farmerCoin); err != nil {
			return nil, err
		}
		if err := disburse(ledger, dispute.Buyer, buyerCoin); err != nil {
			return nil, err
		}
		if err := txn.DisputeDelete(disputeID); err != nil {
			return nil, err
		}
		if err := txn.OrderDelete(orderID); err != nil {
			return nil, err
		}
		farmerPaid, buyerPaid = farmerAmount, buyerAmount
		return []events.Event{events.DisputeResolved{
			DisputeID:    disputeID,
			OrderID:      orderID,
			Buyer:        dispute.Buyer,
			Farmer:       dispute.Farmer,
			FarmerAmount: farmerAmount,
			BuyerAmount:  buyerAmount,
		}}, nil
	})
	if err == nil {
		e.metrics.ObserveSettlement("dispute", farmerPaid, buyerPaid)
	}
	return err
}

// VoteOnDispute bumps the advisory vote counters. It is open to any caller and
// has no effect on resolution.
func (e *Engine) VoteOnDispute(disputeID [32]byte, voteFor bool) error {
	return e.update("voteOnDispute", func(txn Txn, _ Ledger) ([]events.Event, error) {
		dispute, err := loadDispute(txn, disputeID)
		if err != nil {
			return nil, err
		}
		if voteFor {
			dispute.VotesFor++
		} else {
			dispute.VotesAgainst++
		}
		if err := txn.DisputePut(dispute); err != nil {
			return nil, err
		}
		return []events.Event{events.DisputeVoted{
			DisputeID:    disputeID,
			VoteFor:      voteFor,
			VotesFor:     dispute.VotesFor,
			VotesAgainst: dispute.VotesAgainst,
		}}, nil
	})
}

// disburse pays a non-zero coin to owner and retires a zero one.
func disburse(ledger Ledger, owner [20]byte, coin *bank.Coin) error {
	if ledger.Value(coin) == 0 {
		return ledger.DestroyZero(coin)
	}
	return ledger.TransferTo(owner, coin)
}

func loadDispute(txn Txn, id [32]byte) (*Dispute, error) {
	dispute, ok, err := txn.DisputeGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDisputeNotFound
	}
	return dispute.Clone(), nil
}
