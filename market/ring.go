package market

// tradeRing is a fixed-capacity buffer of recent trades, oldest evicted.
// Diagnostic only; never authoritative state.
type tradeRing struct {
	buf   []Trade
	next  int
	count int
}

func newTradeRing(capacity int) *tradeRing {
	if capacity <= 0 {
		capacity = 10000
	}
	return &tradeRing{buf: make([]Trade, capacity)}
}

func (r *tradeRing) add(t Trade) {
	r.buf[r.next] = t
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// items returns the buffered trades in arrival order.
func (r *tradeRing) items() []Trade {
	out := make([]Trade, 0, r.count)
	if r.count < len(r.buf) {
		out = append(out, r.buf[:r.count]...)
		return out
	}
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

func (r *tradeRing) size() int { return r.count }
