package types

// Account holds the spendable token balance of a single identity. Balances are
// expressed in the smallest denomination of the marketplace token.
type Account struct {
	Balance uint64 `json:"balance"`
}

// Clone returns a copy of the account, treating nil as an empty account.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{}
	}
	clone := *a
	return &clone
}
