package gateway

import (
	"sync"
	"time"
)

// RateLimiter throttles outbound requests so paginated backfills stay
// under the exchange rate limit.
type RateLimiter interface {
	Wait()
}

// Bybit allows 10 req/s on public market-data endpoints; half of that
// leaves headroom for other consumers of the same IP.
const (
	BybitRESTRate  = 5.0
	BybitRESTBurst = 10
)

// NewBybitRESTLimiter returns a limiter tuned for the V5 public REST API.
func NewBybitRESTLimiter() *TokenBucketLimiter {
	return NewTokenBucketLimiter(BybitRESTRate, BybitRESTBurst)
}

// TokenBucketLimiter is a simple token bucket.
type TokenBucketLimiter struct {
	rate   float64
	burst  int
	tokens float64
	last   time.Time
	mu     sync.Mutex
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait blocks until one token is available and consumes it. When the bucket
// is short, the token that accrues during the sleep is the one consumed:
// `last` is advanced past the sleep so contention cannot over-grant.
func (l *TokenBucketLimiter) Wait() {
	l.mu.Lock()
	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	l.last = now
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	if l.tokens >= 1 {
		l.tokens--
		l.mu.Unlock()
		return
	}
	sleep := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
	l.tokens = 0
	l.last = now.Add(sleep)
	l.mu.Unlock()
	time.Sleep(sleep)
}
