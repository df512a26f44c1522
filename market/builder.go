package market

import "time"

// builder accumulates trades belonging to the currently open bucket.
// It is not safe for concurrent use; the Aggregator serializes access.
type builder struct {
	ts       time.Time
	open     float64
	high     float64
	low      float64
	close    float64
	volume   float64
	turnover float64
	trades   int
	active   bool
}

// start opens a bucket with the first trade.
func (b *builder) start(bucket time.Time, price, qty float64) {
	if qty < 0 {
		qty = 0
	}
	b.ts = bucket
	b.open = price
	b.high = price
	b.low = price
	b.close = price
	b.volume = qty
	b.turnover = price * qty
	b.trades = 1
	b.active = true
}

// update folds one more trade into the open bucket.
// A negative qty contributes nothing to volume/turnover but still moves OHLC.
func (b *builder) update(price, qty float64) {
	if price > b.high {
		b.high = price
	}
	if price < b.low {
		b.low = price
	}
	b.close = price
	if qty > 0 {
		b.volume += qty
		b.turnover += price * qty
	}
	b.trades++
}

// finalize closes the bucket and resets the builder. Returns nil when no
// bucket is open, which happens naturally when an interval elapses without
// trades.
func (b *builder) finalize() *Candle {
	if !b.active {
		return nil
	}
	c := &Candle{
		Ts:       b.ts,
		Open:     b.open,
		High:     b.high,
		Low:      b.low,
		Close:    b.close,
		Volume:   b.volume,
		Turnover: b.turnover,
		Trades:   b.trades,
	}
	*b = builder{}
	return c
}

// snapshot returns a copy of the in-progress bucket, or nil if none is open.
func (b *builder) snapshot() *Candle {
	if !b.active {
		return nil
	}
	return &Candle{
		Ts:       b.ts,
		Open:     b.open,
		High:     b.high,
		Low:      b.low,
		Close:    b.close,
		Volume:   b.volume,
		Turnover: b.turnover,
		Trades:   b.trades,
	}
}
