package market

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Observer receives engine events. Implementations must be fast; callbacks
// run outside the engine lock. A nil Observer disables reporting.
type Observer interface {
	TradeDropped()
	TradeMalformed()
	CandleFinalized(c Candle)
}

// Snapshot is a consistent point-in-time copy of engine state.
type Snapshot struct {
	Candles   []Candle
	Current   *Candle
	Dropped   uint64
	Malformed uint64
}

// Aggregator turns an unordered-arrival trade stream into a strictly
// time-partitioned sequence of candles. One mutex guards the in-progress
// bucket, the finalized sequence and the trade ring; it is never held
// across I/O.
type Aggregator struct {
	interval time.Duration
	obs      Observer

	mu        sync.Mutex
	cur       builder
	candles   []Candle
	recent    *tradeRing
	started   bool
	closed    bool
	dropped   uint64
	malformed uint64
}

// NewAggregator creates an engine for the given bucket interval.
// interval <= 0 defaults to one minute; ringCap <= 0 uses the default
// recent-trade capacity.
func NewAggregator(interval time.Duration, ringCap int, obs Observer) *Aggregator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Aggregator{
		interval: interval,
		obs:      obs,
		recent:   newTradeRing(ringCap),
	}
}

// Interval returns the configured bucket width.
func (a *Aggregator) Interval() time.Duration { return a.interval }

// Seed replaces the candle sequence wholesale with historical data. It must
// be called before any Ingest; afterwards it fails with ErrSeedConflict.
// Input is sorted ascending; duplicate bucket starts are rejected.
func (a *Aggregator) Seed(candles []Candle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrSeedConflict
	}
	if a.closed {
		return ErrClosed
	}
	seq := make([]Candle, len(candles))
	copy(seq, candles)
	sort.Slice(seq, func(i, j int) bool { return seq[i].Ts.Before(seq[j].Ts) })
	for i := 1; i < len(seq); i++ {
		if seq[i].Ts.Equal(seq[i-1].Ts) {
			return fmt.Errorf("%w: %s", ErrSeedDuplicate, seq[i].Ts.Format(time.RFC3339))
		}
	}
	a.candles = seq
	return nil
}

// Ingest routes one trade to its bucket. It returns the candle closed by a
// bucket rollover, or nil. Malformed trades are counted and skipped; late
// trades for already-closed buckets are counted and dropped, not an error.
func (a *Aggregator) Ingest(t Trade) (*Candle, error) {
	if t.Price <= 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) ||
		math.IsNaN(t.Qty) || math.IsInf(t.Qty, 0) || t.Ts.IsZero() {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return nil, ErrClosed
		}
		a.malformed++
		a.mu.Unlock()
		if a.obs != nil {
			a.obs.TradeMalformed()
		}
		return nil, fmt.Errorf("%w: price=%v qty=%v ts=%v", ErrMalformedTrade, t.Price, t.Qty, t.Ts)
	}

	bucket := t.Ts.Truncate(a.interval)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	a.started = true
	a.recent.add(t)

	var closed *Candle
	switch {
	case !a.cur.active:
		// No open bucket: the trade must land after the finalized tail,
		// otherwise it belongs to a closed (or seeded) bucket.
		if n := len(a.candles); n > 0 && !bucket.After(a.candles[n-1].Ts) {
			a.dropped++
			a.mu.Unlock()
			if a.obs != nil {
				a.obs.TradeDropped()
			}
			return nil, nil
		}
		a.cur.start(bucket, t.Price, t.Qty)
	case bucket.After(a.cur.ts):
		closed = a.cur.finalize()
		a.candles = append(a.candles, *closed)
		a.cur.start(bucket, t.Price, t.Qty)
	case bucket.Equal(a.cur.ts):
		a.cur.update(t.Price, t.Qty)
	default:
		// Late trade after rollover. Finalized candles are immutable;
		// reopening one would break the append-only sequence readers
		// and persistence rely on.
		a.dropped++
		a.mu.Unlock()
		if a.obs != nil {
			a.obs.TradeDropped()
		}
		return nil, nil
	}
	a.mu.Unlock()

	if closed != nil && a.obs != nil {
		a.obs.CandleFinalized(*closed)
	}
	return closed, nil
}

// Flush force-finalizes the open bucket, if any. Used on graceful shutdown
// so the last partial candle is not lost. A no-op once the engine is closed.
func (a *Aggregator) Flush() *Candle {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	closed := a.cur.finalize()
	if closed != nil {
		a.candles = append(a.candles, *closed)
	}
	a.mu.Unlock()
	if closed != nil && a.obs != nil {
		a.obs.CandleFinalized(*closed)
	}
	return closed
}

// Close marks the engine closed; subsequent Ingest calls fail with ErrClosed
// and Flush becomes a no-op. The open bucket is not flushed implicitly; call
// Flush first.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

// Snapshot returns an immutable copy of the finalized sequence and the
// in-progress bucket. Two calls with no intervening Ingest are equal.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	seq := make([]Candle, len(a.candles))
	copy(seq, a.candles)
	return Snapshot{
		Candles:   seq,
		Current:   a.cur.snapshot(),
		Dropped:   a.dropped,
		Malformed: a.malformed,
	}
}

// Latest returns the last n finalized candles, fewer if the sequence is
// shorter. n <= 0 returns an empty slice.
func (a *Aggregator) Latest(n int) []Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > len(a.candles) {
		n = len(a.candles)
	}
	out := make([]Candle, n)
	copy(out, a.candles[len(a.candles)-n:])
	return out
}

// RecentTrades returns a copy of the diagnostic trade ring in arrival order.
func (a *Aggregator) RecentTrades() []Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recent.items()
}

// RecentCount returns the number of buffered trades without copying the ring.
func (a *Aggregator) RecentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recent.size()
}

// Stats returns finalized-candle count plus dropped/malformed counters.
func (a *Aggregator) Stats() (finalized int, dropped, malformed uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.candles), a.dropped, a.malformed
}
