package store

import (
	"sync"

	"candle-feed-go/market"
)

// Bridge drives the persistence cadence: one save every Every finalized
// candles plus an unconditional save on shutdown. Saves operate on
// snapshot copies, never on live engine state, so the engine lock is
// never held across file I/O. A failed save leaves the counter armed and
// the next finalized candle retries.
type Bridge struct {
	Store *Store

	mu        sync.Mutex
	every     int
	sinceSave int
}

// NewBridge creates a bridge saving every n finalized candles (default 10).
func NewBridge(s *Store, n int) *Bridge {
	if n <= 0 {
		n = 10
	}
	return &Bridge{Store: s, every: n}
}

// SetEvery adjusts the cadence at runtime (config hot reload).
func (b *Bridge) SetEvery(n int) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	b.every = n
	b.mu.Unlock()
}

// OnFinalized is called once per finalized candle. It returns the saved
// path when a cadence save happened.
func (b *Bridge) OnFinalized(snap market.Snapshot) (path string, saved bool, err error) {
	b.mu.Lock()
	b.sinceSave++
	due := b.sinceSave >= b.every
	b.mu.Unlock()
	if !due {
		return "", false, nil
	}
	path, err = b.Store.Save(snap.Candles)
	if err != nil {
		return "", false, err
	}
	b.mu.Lock()
	b.sinceSave = 0
	b.mu.Unlock()
	return path, true, nil
}

// FlushFinal saves unconditionally; used on graceful shutdown.
func (b *Bridge) FlushFinal(snap market.Snapshot) (string, error) {
	path, err := b.Store.Save(snap.Candles)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.sinceSave = 0
	b.mu.Unlock()
	return path, nil
}
