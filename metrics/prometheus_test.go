package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"candle-feed-go/market"
)

func TestEngineObserver(t *testing.T) {
	droppedBefore := testutil.ToFloat64(TradesDroppedLate)
	malformedBefore := testutil.ToFloat64(TradesMalformed)
	finalizedBefore := testutil.ToFloat64(CandlesFinalized)

	var obs EngineObserver
	obs.TradeDropped()
	obs.TradeMalformed()
	obs.CandleFinalized(market.Candle{Close: 42100.5})

	if got := testutil.ToFloat64(TradesDroppedLate); got != droppedBefore+1 {
		t.Errorf("TradesDroppedLate = %f, want %f", got, droppedBefore+1)
	}
	if got := testutil.ToFloat64(TradesMalformed); got != malformedBefore+1 {
		t.Errorf("TradesMalformed = %f, want %f", got, malformedBefore+1)
	}
	if got := testutil.ToFloat64(CandlesFinalized); got != finalizedBefore+1 {
		t.Errorf("CandlesFinalized = %f, want %f", got, finalizedBefore+1)
	}
	if got := testutil.ToFloat64(CandleClosePrice); got != 42100.5 {
		t.Errorf("CandleClosePrice = %f, want 42100.5", got)
	}
}

func TestPersistCounters(t *testing.T) {
	okBefore := testutil.ToFloat64(PersistTotal)
	errBefore := testutil.ToFloat64(PersistErrors)

	PersistTotal.Inc()
	PersistErrors.Inc()

	if got := testutil.ToFloat64(PersistTotal); got != okBefore+1 {
		t.Errorf("PersistTotal = %f, want %f", got, okBefore+1)
	}
	if got := testutil.ToFloat64(PersistErrors); got != errBefore+1 {
		t.Errorf("PersistErrors = %f, want %f", got, errBefore+1)
	}
}
