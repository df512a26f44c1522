// Command backfill fetches a historical kline window and writes it to the
// day's CSV file, without starting the live feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"candle-feed-go/config"
	"candle-feed-go/gateway"
	"candle-feed-go/internal/seeder"
	"candle-feed-go/internal/store"
	"candle-feed-go/market"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "config file path")
	symbol := flag.String("symbol", "", "instrument symbol, overrides config")
	hours := flag.Int("hours", 0, "window length in hours, overrides config")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *hours > 0 {
		cfg.Backfill.Hours = *hours
	}

	client := &gateway.BybitRESTClient{
		BaseURL:    cfg.Backfill.BaseURL,
		Category:   cfg.Backfill.Category,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    gateway.NewBybitRESTLimiter(),
	}
	agg := market.NewAggregator(cfg.IntervalDuration(), cfg.RecentTrades, nil)
	sdr := &seeder.Seeder{
		Source:   &klineSource{client: client, symbol: cfg.Symbol, interval: cfg.Interval},
		Interval: cfg.IntervalDuration(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	end := time.Now().UTC()
	start := end.Add(-time.Duration(cfg.Backfill.Hours) * time.Hour)
	n, err := sdr.Run(ctx, agg, start, end)
	if err != nil {
		log.Fatalf("backfill: %v", err)
	}
	if n == 0 {
		fmt.Println("no candles in window")
		os.Exit(0)
	}

	st := &store.Store{Dir: cfg.DataDir, Symbol: cfg.Symbol}
	path, err := st.Save(agg.Snapshot().Candles)
	if err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("wrote %d candles to %s\n", n, path)
}

type klineSource struct {
	client   *gateway.BybitRESTClient
	symbol   string
	interval string
}

func (k *klineSource) Klines(ctx context.Context, start, end time.Time) ([]gateway.KlineRow, error) {
	return k.client.GetKlines(ctx, k.symbol, k.interval, start, end)
}
