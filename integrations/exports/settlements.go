package exports

import (
	"strconv"
	"time"

	"farmmarket/core/events"
	"farmmarket/observability/eventlog"
)

const (
	OutcomeConfirmed = "confirmed"
	OutcomeRefunded  = "refunded"
	OutcomeDispute   = "dispute"
)

// Settlement is one order leaving escrow.
type Settlement struct {
	Sequence     uint64
	OrderID      string
	Outcome      string
	Buyer        string
	Farmer       string
	FarmerAmount uint64
	BuyerAmount  uint64
	SettledAt    time.Time
}

// Total is the escrowed value that was disbursed.
func (s Settlement) Total() uint64 { return s.FarmerAmount + s.BuyerAmount }

// SettlementsFromEntries keeps the terminal transitions from a journal page,
// preserving order. Other event types are skipped.
func SettlementsFromEntries(entries []eventlog.Entry) []Settlement {
	out := make([]Settlement, 0, len(entries))
	for _, entry := range entries {
		attrs := entry.Attributes
		row := Settlement{
			Sequence:  entry.Sequence,
			OrderID:   attrs["orderId"],
			Buyer:     attrs["buyer"],
			SettledAt: entry.CreatedAt,
		}
		switch entry.Type {
		case events.TypeOrderCompleted:
			row.Outcome = OutcomeConfirmed
			row.Farmer = attrs["farmer"]
			row.FarmerAmount = parseAmount(attrs["amount"])
		case events.TypeRefund:
			row.Outcome = OutcomeRefunded
			row.BuyerAmount = parseAmount(attrs["amount"])
		case events.TypeDisputeResolved:
			row.Outcome = OutcomeDispute
			row.Farmer = attrs["farmer"]
			row.FarmerAmount = parseAmount(attrs["farmerAmount"])
			row.BuyerAmount = parseAmount(attrs["buyerAmount"])
		default:
			continue
		}
		out = append(out, row)
	}
	return out
}

// SettlementTypes lists the journal types SettlementsFromEntries understands.
func SettlementTypes() []string {
	return []string{events.TypeOrderCompleted, events.TypeRefund, events.TypeDisputeResolved}
}

func parseAmount(raw string) uint64 {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func settledAt(s Settlement) string {
	ts := s.SettledAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format(time.RFC3339Nano)
}
