package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMarketMetricsCounters(t *testing.T) {
	m := Market()
	if Market() != m {
		t.Fatalf("expected singleton registry")
	}

	before := testutil.ToFloat64(m.operations.WithLabelValues("confirmDelivery", "error"))
	m.ObserveOperation("confirmDelivery", errors.New("boom"))
	if got := testutil.ToFloat64(m.operations.WithLabelValues("confirmDelivery", "error")); got != before+1 {
		t.Fatalf("unexpected error count %v", got)
	}

	aborted := testutil.ToFloat64(m.operations.WithLabelValues("createOrder", "aborted"))
	m.ObserveAbort("createOrder")
	if got := testutil.ToFloat64(m.operations.WithLabelValues("createOrder", "aborted")); got != aborted+1 {
		t.Fatalf("unexpected abort count %v", got)
	}

	m.ObserveLocked(500)
	m.ObserveSettlement("dispute", 350, 150)
	if got := testutil.ToFloat64(m.escrowed); got != 0 {
		t.Fatalf("escrow gauge should return to zero, got %v", got)
	}
	if got := testutil.ToFloat64(m.settledSum.WithLabelValues("buyer")); got != 150 {
		t.Fatalf("unexpected buyer sum %v", got)
	}

	var nilMetrics *MarketMetrics
	nilMetrics.ObserveOperation("x", nil)
	nilMetrics.ObserveSweep(1, nil)
	nilMetrics.ObserveAbort("x")
}
