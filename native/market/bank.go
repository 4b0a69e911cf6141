package market

import (
	"farmmarket/core/events"
)

// Faucet mints amount and credits it to the recipient. Minting policy is left
// to the caller.
func (e *Engine) Faucet(to [20]byte, amount uint64) error {
	return e.update("faucet", func(_ Txn, ledger Ledger) ([]events.Event, error) {
		coin, err := ledger.Mint(amount)
		if err != nil {
			return nil, err
		}
		if err := ledger.TransferTo(to, coin); err != nil {
			return nil, err
		}
		return []events.Event{events.FaucetMinted{To: to, Amount: amount}}, nil
	})
}

func (e *Engine) Balance(owner [20]byte) (uint64, error) {
	var balance uint64
	err := e.view(func(_ Txn, ledger Ledger) error {
		var err error
		balance, err = ledger.Balance(owner)
		return err
	})
	return balance, err
}

// TotalSupply returns the amount minted so far. Balances plus escrowed value
// always add up to it.
func (e *Engine) TotalSupply() (uint64, error) {
	var supply uint64
	err := e.view(func(txn Txn, _ Ledger) error {
		var err error
		supply, err = txn.SupplyGet()
		return err
	})
	return supply, err
}
