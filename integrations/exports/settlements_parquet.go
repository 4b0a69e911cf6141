package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetSettlement struct {
	Sequence     int64  `parquet:"name=sequence, type=INT64"`
	OrderID      string `parquet:"name=order_id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Outcome      string `parquet:"name=outcome, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Buyer        string `parquet:"name=buyer, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Farmer       string `parquet:"name=farmer, type=UTF8, encoding=PLAIN_DICTIONARY"`
	FarmerAmount int64  `parquet:"name=farmer_amount, type=INT64"`
	BuyerAmount  int64  `parquet:"name=buyer_amount, type=INT64"`
	SettledAt    string `parquet:"name=settled_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// SettlementsParquet builds a snappy-compressed Parquet file in memory and
// returns it with a checksum.
func SettlementsParquet(rows []Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	fw := writerfile.NewWriterFile(buffer)
	pw, err := writer.NewParquetWriter(fw, new(parquetSettlement), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.RowGroupSize = 16 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		record := &parquetSettlement{
			Sequence:     int64(row.Sequence),
			OrderID:      row.OrderID,
			Outcome:      row.Outcome,
			Buyer:        row.Buyer,
			Farmer:       row.Farmer,
			FarmerAmount: int64(row.FarmerAmount),
			BuyerAmount:  int64(row.BuyerAmount),
			SettledAt:    settledAt(row),
		}
		if err := pw.Write(record); err != nil {
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
