package market

import "time"

// Trade represents a normalized trade tick.
type Trade struct {
	Price float64
	Qty   float64
	Ts    time.Time
}

// TradeFromMillis builds a Trade from a feed event carrying a millisecond
// epoch timestamp. A non-positive timestamp yields a zero Ts, which the
// engine rejects as malformed.
func TradeFromMillis(price, qty float64, tsMs int64) Trade {
	t := Trade{Price: price, Qty: qty}
	if tsMs > 0 {
		t.Ts = time.UnixMilli(tsMs).UTC()
	}
	return t
}
