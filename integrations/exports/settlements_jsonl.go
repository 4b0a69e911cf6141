package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// SettlementsJSONL builds a JSON Lines export and returns the serialised
// payload alongside a checksum. Amounts are strings to survive consumers that
// parse numbers as float64.
func SettlementsJSONL(rows []Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range rows {
		payload := map[string]interface{}{
			"sequence":      row.Sequence,
			"order_id":      row.OrderID,
			"outcome":       row.Outcome,
			"buyer":         row.Buyer,
			"farmer":        row.Farmer,
			"farmer_amount": strconv.FormatUint(row.FarmerAmount, 10),
			"buyer_amount":  strconv.FormatUint(row.BuyerAmount, 10),
			"total":         strconv.FormatUint(row.Total(), 10),
			"settled_at":    settledAt(row),
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
