package state

var (
	productPrefix = []byte("market/product/")
	orderPrefix   = []byte("market/order/")
	disputePrefix = []byte("market/dispute/")
	capKeyBytes   = []byte("market/cap")
	accountPrefix = []byte("bank/account/")
	escrowPrefix  = []byte("bank/escrow/")
	supplyKey     = []byte("bank/supply")
	noncePrefix   = []byte("nonce/")
)

func prefixed(prefix []byte, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return buf
}

func productKey(id [32]byte) []byte { return prefixed(productPrefix, id[:]) }

func orderKey(id [32]byte) []byte { return prefixed(orderPrefix, id[:]) }

func disputeKey(id [32]byte) []byte { return prefixed(disputePrefix, id[:]) }

func accountKey(addr [20]byte) []byte { return prefixed(accountPrefix, addr[:]) }

func escrowKey(id [32]byte) []byte { return prefixed(escrowPrefix, id[:]) }

// nonceKey is nonce/<kind>/<creator>.
func nonceKey(kind string, creator [20]byte) []byte {
	return prefixed(noncePrefix, append([]byte(kind+"/"), creator[:]...))
}
