// Package metrics provides Prometheus metrics for the candle feed.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"candle-feed-go/market"
)

var (
	TradesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_trades_ingested_total",
		Help: "Trades accepted into the aggregation engine",
	})
	TradesDroppedLate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_trades_dropped_late_total",
		Help: "Trades dropped because their bucket was already closed",
	})
	TradesMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_trades_malformed_total",
		Help: "Trades skipped due to bad price/qty/timestamp",
	})
	CandlesFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_candles_finalized_total",
		Help: "Candles closed and appended to the sequence",
	})
	CandleClosePrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_candle_close_price",
		Help: "Close price of the most recently finalized candle",
	})
	SeedCandles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_seed_candles",
		Help: "Candles loaded by the historical seed",
	})
	PersistTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_persist_total",
		Help: "Successful persistence writes",
	})
	PersistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_persist_errors_total",
		Help: "Failed persistence writes",
	})
	WSConnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_ws_connects_total",
		Help: "Websocket (re)connects",
	})
	WSFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_ws_failures_total",
		Help: "Websocket disconnects and transport errors",
	})
	WSParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_ws_parse_errors_total",
		Help: "Websocket messages skipped because they could not be decoded",
	})
)

// EngineObserver bridges engine events to the collectors above. It is
// handed to the aggregator at construction; the engine itself stays free
// of process-wide state.
type EngineObserver struct{}

func (EngineObserver) TradeDropped()   { TradesDroppedLate.Inc() }
func (EngineObserver) TradeMalformed() { TradesMalformed.Inc() }
func (EngineObserver) CandleFinalized(c market.Candle) {
	CandlesFinalized.Inc()
	CandleClosePrice.Set(c.Close)
}

// StartMetricsServer serves /metrics on addr; empty addr disables it.
func StartMetricsServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
