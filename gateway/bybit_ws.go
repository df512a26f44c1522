package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// BybitWSEndpoint is the public spot trade stream.
const BybitWSEndpoint = "wss://stream.bybit.com/v5/public/spot"

// Bybit closes the connection without a ping every 20s.
const pingInterval = 20 * time.Second

// TradeHandler receives normalized feed events. Callbacks run on the
// websocket read goroutine.
type TradeHandler interface {
	OnTrade(price, qty float64, tsMs int64)
	OnConnect()
	OnDisconnect(err error)
	// OnParseError reports one undecodable message. The stream continues;
	// the bad payload is never retried.
	OnParseError(err error)
}

// BybitWS maintains a publicTrade subscription with reconnect/backoff.
type BybitWS struct {
	Endpoint string // defaults to BybitWSEndpoint
	Dialer   *websocket.Dialer
	topics   []string
	parser   tradeParser
}

func NewBybitWS() *BybitWS {
	return &BybitWS{
		Endpoint: BybitWSEndpoint,
		Dialer:   websocket.DefaultDialer,
	}
}

// SubscribeTrades registers the publicTrade topic for symbol.
func (b *BybitWS) SubscribeTrades(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol required")
	}
	b.topics = append(b.topics, "publicTrade."+symbol)
	return nil
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff on transport errors. Reconnects are the transport's
// responsibility; the engine never sees them.
func (b *BybitWS) Run(ctx context.Context, handler TradeHandler) error {
	if len(b.topics) == 0 {
		return fmt.Errorf("no topics subscribed")
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := b.connectAndRead(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if handler != nil {
			handler.OnDisconnect(err)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (b *BybitWS) connectAndRead(ctx context.Context, handler TradeHandler) error {
	endpoint := b.Endpoint
	if endpoint == "" {
		endpoint = BybitWSEndpoint
	}
	dialer := b.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-stop:
		}
	}()

	sub := map[string]interface{}{"op": "subscribe", "args": b.topics}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if handler != nil {
		handler.OnConnect()
	}

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		events, err := b.parser.parse(msg)
		if err != nil {
			// Single bad payload; the stream continues.
			if handler != nil {
				handler.OnParseError(err)
			}
			continue
		}
		if handler == nil {
			continue
		}
		for _, ev := range events {
			handler.OnTrade(ev.Price, ev.Qty, ev.TsMs)
		}
	}
}
