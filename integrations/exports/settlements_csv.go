package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strconv"
)

// SettlementsCSV builds a CSV export and returns the serialised data alongside
// a SHA-256 checksum of the payload.
func SettlementsCSV(rows []Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"sequence", "order_id", "outcome", "buyer", "farmer", "farmer_amount", "buyer_amount", "total", "settled_at"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatUint(row.Sequence, 10),
			row.OrderID,
			row.Outcome,
			row.Buyer,
			row.Farmer,
			strconv.FormatUint(row.FarmerAmount, 10),
			strconv.FormatUint(row.BuyerAmount, 10),
			strconv.FormatUint(row.Total(), 10),
			settledAt(row),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
