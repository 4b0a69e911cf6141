package events

import (
	"encoding/hex"
	"strconv"

	"farmmarket/crypto"
)

func formatID(id [32]byte) string {
	return hex.EncodeToString(id[:])
}

func formatAddr(addr [20]byte) string {
	return crypto.FormatAddress(addr)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
