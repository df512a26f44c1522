// Package seeder primes the aggregation engine with historical candles
// before live ingestion starts. Seeding is all-or-nothing: any source or
// validation failure leaves the engine untouched.
package seeder

import (
	"context"
	"fmt"
	"time"

	"candle-feed-go/gateway"
	"candle-feed-go/market"
)

// Source yields historical kline rows for a bounded window.
type Source interface {
	Klines(ctx context.Context, start, end time.Time) ([]gateway.KlineRow, error)
}

// SourceError wraps an upstream fetch or validation failure. It is fatal
// to startup; the process must not begin live ingestion after one.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string { return "seed source: " + e.Err.Error() }
func (e *SourceError) Unwrap() error { return e.Err }

// Seeder converts source rows into engine candles and seeds the aggregator.
type Seeder struct {
	Source   Source
	Interval time.Duration
}

// Run fetches the window and seeds agg. Returns the number of candles
// seeded.
func (s *Seeder) Run(ctx context.Context, agg *market.Aggregator, start, end time.Time) (int, error) {
	rows, err := s.Source.Klines(ctx, start, end)
	if err != nil {
		return 0, &SourceError{Err: err}
	}
	candles, err := s.convert(rows)
	if err != nil {
		return 0, &SourceError{Err: err}
	}
	if err := agg.Seed(candles); err != nil {
		return 0, err
	}
	return len(candles), nil
}

// convert validates rows and maps them to market.Candle. Timestamps must be
// strictly increasing with no duplicate buckets.
func (s *Seeder) convert(rows []gateway.KlineRow) ([]market.Candle, error) {
	out := make([]market.Candle, 0, len(rows))
	var prev int64
	for i, r := range rows {
		if r.StartMs <= 0 {
			return nil, fmt.Errorf("row %d: bad timestamp %d", i, r.StartMs)
		}
		if i > 0 && r.StartMs <= prev {
			return nil, fmt.Errorf("row %d: timestamp %d not increasing (prev %d)", i, r.StartMs, prev)
		}
		prev = r.StartMs
		if s.Interval > 0 && r.StartMs%s.Interval.Milliseconds() != 0 {
			return nil, fmt.Errorf("row %d: timestamp %d not aligned to %s buckets", i, r.StartMs, s.Interval)
		}
		c := market.Candle{
			Ts:       time.UnixMilli(r.StartMs).UTC(),
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
			Turnover: r.Turnover,
		}
		if !c.Valid() {
			return nil, fmt.Errorf("row %d: OHLC invariant violated: %+v", i, r)
		}
		out = append(out, c)
	}
	return out, nil
}
