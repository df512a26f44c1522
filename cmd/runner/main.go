package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"candle-feed-go/config"
	"candle-feed-go/gateway"
	"candle-feed-go/infrastructure/logger"
	"candle-feed-go/internal/seeder"
	"candle-feed-go/internal/store"
	"candle-feed-go/market"
	"candle-feed-go/metrics"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "config file path")
	symbol := flag.String("symbol", "", "instrument symbol, overrides config")
	metricsAddr := flag.String("metricsAddr", "", "Prometheus listen address, overrides config")
	restRate := flag.Float64("restRate", gateway.BybitRESTRate, "REST rate limit: tokens per second")
	restBurst := flag.Int("restBurst", gateway.BybitRESTBurst, "REST rate limit: max burst")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Close()
	lg = lg.WithFields(map[string]interface{}{"symbol": cfg.Symbol})

	metrics.StartMetricsServer(cfg.MetricsAddr)

	agg := market.NewAggregator(cfg.IntervalDuration(), cfg.RecentTrades, metrics.EngineObserver{})
	st := &store.Store{Dir: cfg.DataDir, Symbol: cfg.Symbol}
	bridge := store.NewBridge(st, cfg.Persist.Every)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Surface any same-day file from a previous run before seeding; the
	// REST backfill remains the source of truth for the sequence.
	if prev, degraded, err := st.Load(); err != nil {
		lg.LogError(err, map[string]interface{}{"stage": "load_existing"})
	} else if len(prev) > 0 {
		lg.LogCandle("existing_file_found", map[string]interface{}{
			"rows": len(prev), "degraded": degraded,
		})
	}

	// Historical seed. Failure here is fatal: live ingestion never starts
	// on a partially primed sequence.
	restClient := &gateway.BybitRESTClient{
		BaseURL:    cfg.Backfill.BaseURL,
		Category:   cfg.Backfill.Category,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    gateway.NewTokenBucketLimiter(*restRate, *restBurst),
	}
	sdr := &seeder.Seeder{
		Source:   &klineSource{client: restClient, symbol: cfg.Symbol, interval: cfg.Interval},
		Interval: cfg.IntervalDuration(),
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(cfg.Backfill.Hours) * time.Hour)
	seeded, err := sdr.Run(ctx, agg, start, end)
	if err != nil {
		lg.LogError(err, map[string]interface{}{"stage": "seed"})
		lg.Close()
		os.Exit(1)
	}
	metrics.SeedCandles.Set(float64(seeded))
	lg.LogCandle("seed_complete", map[string]interface{}{
		"candles": seeded, "hours": cfg.Backfill.Hours,
	})
	if seeded > 0 {
		if path, err := st.Save(agg.Snapshot().Candles); err != nil {
			metrics.PersistErrors.Inc()
			lg.LogError(err, map[string]interface{}{"stage": "seed_save"})
		} else {
			metrics.PersistTotal.Inc()
			lg.LogCandle("seed_saved", map[string]interface{}{"path": path})
		}
	}

	// Live feed.
	ws := gateway.NewBybitWS()
	if cfg.Feed.Endpoint != "" {
		ws.Endpoint = cfg.Feed.Endpoint
	}
	if err := ws.SubscribeTrades(cfg.Symbol); err != nil {
		lg.LogError(err, map[string]interface{}{"stage": "subscribe"})
		lg.Close()
		os.Exit(1)
	}
	handler := &feedHandler{agg: agg, bridge: bridge, lg: lg}
	go func() {
		if err := ws.Run(ctx, handler); err != nil && ctx.Err() == nil {
			lg.LogError(err, map[string]interface{}{"stage": "ws_run"})
			cancel()
		}
	}()

	// Stats display loop.
	statsCh := make(chan time.Duration, 1)
	go statsLoop(ctx, agg, lg, time.Duration(cfg.Stats.IntervalSeconds)*time.Second, statsCh)

	// Config hot reload: persist cadence and stats interval apply live.
	go func() {
		w := config.Watcher{Path: *cfgPath}
		err := w.Start(ctx, func(next config.AppConfig) {
			bridge.SetEvery(next.Persist.Every)
			select {
			case statsCh <- time.Duration(next.Stats.IntervalSeconds) * time.Second:
			default:
			}
			lg.LogCandle("config_reloaded", map[string]interface{}{
				"persistEvery": next.Persist.Every,
				"statsSeconds": next.Stats.IntervalSeconds,
			})
		})
		if err != nil && ctx.Err() == nil {
			lg.LogError(err, map[string]interface{}{"stage": "config_watch"})
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()

	// Flush the open bucket exactly once, then one final synchronous save.
	if closed := agg.Flush(); closed != nil {
		lg.LogCandle("candle_flushed", candleFields(closed))
	}
	agg.Close()
	if path, err := bridge.FlushFinal(agg.Snapshot()); err != nil {
		metrics.PersistErrors.Inc()
		lg.LogError(err, map[string]interface{}{"stage": "final_save"})
	} else {
		metrics.PersistTotal.Inc()
		lg.LogCandle("final_save", map[string]interface{}{"path": path})
	}
	lg.LogCandle("runner_exit", nil)
}

// klineSource adapts the REST client to the seeder's Source interface.
type klineSource struct {
	client   *gateway.BybitRESTClient
	symbol   string
	interval string
}

func (k *klineSource) Klines(ctx context.Context, start, end time.Time) ([]gateway.KlineRow, error) {
	return k.client.GetKlines(ctx, k.symbol, k.interval, start, end)
}

// feedHandler pushes websocket trades into the engine and drives the
// persistence cadence. Callbacks run on the single ws read goroutine, so
// it is the one producer the engine sees.
type feedHandler struct {
	agg    *market.Aggregator
	bridge *store.Bridge
	lg     *logger.Logger
}

func (h *feedHandler) OnTrade(price, qty float64, tsMs int64) {
	closed, err := h.agg.Ingest(market.TradeFromMillis(price, qty, tsMs))
	if err != nil {
		// Single bad event; counted by the engine observer.
		return
	}
	metrics.TradesIngested.Inc()
	if closed == nil {
		return
	}
	h.lg.LogCandle("candle_finalized", candleFields(closed))
	// Snapshot copy taken after the engine released its lock; the save
	// happens entirely outside the engine.
	path, saved, err := h.bridge.OnFinalized(h.agg.Snapshot())
	if err != nil {
		metrics.PersistErrors.Inc()
		h.lg.LogError(err, map[string]interface{}{"stage": "cadence_save"})
		return
	}
	if saved {
		metrics.PersistTotal.Inc()
		h.lg.LogCandle("candles_saved", map[string]interface{}{"path": path})
	}
}

func (h *feedHandler) OnConnect() {
	metrics.WSConnects.Inc()
	h.lg.LogFeed("ws_connect", nil)
}

func (h *feedHandler) OnParseError(err error) {
	metrics.WSParseErrors.Inc()
	h.lg.LogFeed("ws_parse_error", map[string]interface{}{"error": err.Error()})
}

func (h *feedHandler) OnDisconnect(err error) {
	metrics.WSFailures.Inc()
	fields := map[string]interface{}{}
	if err != nil {
		fields["error"] = err.Error()
	}
	h.lg.LogFeed("ws_disconnect", fields)
}

func statsLoop(ctx context.Context, agg *market.Aggregator, lg *logger.Logger, interval time.Duration, resize <-chan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-resize:
			if d > 0 && d != interval {
				interval = d
				ticker.Reset(interval)
			}
		case <-ticker.C:
			snap := agg.Snapshot()
			fields := map[string]interface{}{
				"finalized": len(snap.Candles),
				"recent":    agg.RecentCount(),
				"dropped":   snap.Dropped,
				"malformed": snap.Malformed,
			}
			if last := agg.Latest(1); len(last) == 1 {
				fields["lastClose"] = last[0].Close
			}
			if snap.Current != nil {
				fields["curBucket"] = snap.Current.Ts.Format(time.RFC3339)
				fields["curTrades"] = snap.Current.Trades
			}
			lg.LogCandle("stats", fields)
		}
	}
}

func candleFields(c *market.Candle) map[string]interface{} {
	return map[string]interface{}{
		"bucket":   c.Ts.Format(time.RFC3339),
		"open":     c.Open,
		"high":     c.High,
		"low":      c.Low,
		"close":    c.Close,
		"volume":   c.Volume,
		"turnover": c.Turnover,
		"trades":   c.Trades,
	}
}
