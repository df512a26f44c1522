package market

import "time"

// Candle represents finalized OHLCV data for one bucket.
// Ts is the bucket start (trade timestamp truncated to the interval).
// Turnover is the cumulative price*qty over contributing trades; it is tracked
// incrementally because it cannot be re-derived from OHLC alone.
type Candle struct {
	Ts       time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
	Trades   int
}

// Valid reports whether the candle satisfies the OHLC ordering invariant.
func (c Candle) Valid() bool {
	if c.Low > c.High || c.Volume < 0 {
		return false
	}
	if c.Open < c.Low || c.Open > c.High {
		return false
	}
	if c.Close < c.Low || c.Close > c.High {
		return false
	}
	return true
}
