package exports

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"farmmarket/core/events"
	"farmmarket/observability/eventlog"
)

func sampleEntries() []eventlog.Entry {
	at := time.Unix(1_700_000_000, 0).UTC()
	return []eventlog.Entry{
		{Sequence: 1, Type: events.TypeOrderCreated, Attributes: map[string]string{"orderId": "aa"}, CreatedAt: at},
		{Sequence: 2, Type: events.TypeOrderCompleted, Attributes: map[string]string{
			"orderId": "aa", "buyer": "farm1buyer", "farmer": "farm1farmer", "amount": "500000000",
		}, CreatedAt: at},
		{Sequence: 3, Type: events.TypeRefund, Attributes: map[string]string{
			"orderId": "bb", "buyer": "farm1buyer", "amount": "50",
		}, CreatedAt: at},
		{Sequence: 4, Type: events.TypeDisputeResolved, Attributes: map[string]string{
			"orderId": "cc", "buyer": "farm1buyer", "farmer": "farm1farmer",
			"farmerAmount": "350000000", "buyerAmount": "150000000",
		}, CreatedAt: at},
	}
}

func TestSettlementsFromEntries(t *testing.T) {
	rows := SettlementsFromEntries(sampleEntries())
	if len(rows) != 3 {
		t.Fatalf("expected 3 settlements, got %d", len(rows))
	}
	if rows[0].Outcome != OutcomeConfirmed || rows[0].FarmerAmount != 500_000_000 {
		t.Fatalf("unexpected confirm row %+v", rows[0])
	}
	if rows[1].Outcome != OutcomeRefunded || rows[1].BuyerAmount != 50 || rows[1].Farmer != "" {
		t.Fatalf("unexpected refund row %+v", rows[1])
	}
	if rows[2].Total() != 500_000_000 {
		t.Fatalf("dispute split should sum to the total, got %d", rows[2].Total())
	}
}

func TestSettlementsCSV(t *testing.T) {
	data, checksum, err := SettlementsCSV(SettlementsFromEntries(sampleEntries()))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(data) == 0 || len(checksum) != 64 {
		t.Fatalf("expected data and checksum")
	}
	output := string(data)
	if !strings.HasPrefix(output, "sequence,order_id,outcome,buyer,farmer,farmer_amount,buyer_amount,total,settled_at\n") {
		t.Fatalf("missing header: %s", output)
	}
	if !strings.Contains(output, "4,cc,dispute,farm1buyer,farm1farmer,350000000,150000000,500000000,2023-11-14T22:13:20Z") {
		t.Fatalf("missing dispute row: %s", output)
	}
}

func TestSettlementsJSONL(t *testing.T) {
	data, checksum, err := SettlementsJSONL(SettlementsFromEntries(sampleEntries()))
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if checksum == "" {
		t.Fatalf("expected checksum")
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "\"outcome\":\"refunded\"") || !strings.Contains(lines[1], "\"buyer_amount\":\"50\"") {
		t.Fatalf("unexpected refund line: %s", lines[1])
	}
}

func TestSettlementsParquet(t *testing.T) {
	data, checksum, err := SettlementsParquet(SettlementsFromEntries(sampleEntries()))
	if err != nil {
		t.Fatalf("parquet: %v", err)
	}
	if checksum == "" {
		t.Fatalf("expected checksum")
	}
	magic := []byte("PAR1")
	if !bytes.HasPrefix(data, magic) || !bytes.HasSuffix(data, magic) {
		t.Fatalf("output is not a parquet file")
	}

	pr, err := reader.NewParquetReader(buffer.NewBufferFileFromBytes(data), new(parquetSettlement), 1)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer pr.ReadStop()
	if pr.GetNumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", pr.GetNumRows())
	}
	rows := make([]parquetSettlement, 3)
	if err := pr.Read(&rows); err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if rows[0].OrderID != "aa" || rows[0].Outcome != OutcomeConfirmed || rows[0].FarmerAmount != 500_000_000 {
		t.Fatalf("unexpected confirm row %+v", rows[0])
	}
	if rows[1].Farmer != "" || rows[1].BuyerAmount != 50 {
		t.Fatalf("unexpected refund row %+v", rows[1])
	}
	if rows[2].Sequence != 4 || rows[2].SettledAt != "2023-11-14T22:13:20Z" {
		t.Fatalf("unexpected dispute row %+v", rows[2])
	}
}
