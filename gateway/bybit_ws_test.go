package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

type recordingHandler struct {
	trades     []TradeEvent
	connects   int
	parseErrs  []error
	disconnect int
}

func (h *recordingHandler) OnTrade(price, qty float64, tsMs int64) {
	h.trades = append(h.trades, TradeEvent{Price: price, Qty: qty, TsMs: tsMs})
}
func (h *recordingHandler) OnConnect()             { h.connects++ }
func (h *recordingHandler) OnDisconnect(err error) { h.disconnect++ }
func (h *recordingHandler) OnParseError(err error) { h.parseErrs = append(h.parseErrs, err) }

// loopbackServer upgrades one connection, waits for the subscribe request,
// pushes the given frames and closes.
func loopbackServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSReportsParseErrors(t *testing.T) {
	srv := loopbackServer(t, []string{
		`{"topic":"publicTrade.BTCUSDT","data":[{"T":1,"p":"garbage","v":"1","S":"Buy"}]}`,
		`{"op":"pong","success":true}`,
		`{"topic":"publicTrade.BTCUSDT","data":[{"T":1700000000123,"p":"42100.5","v":"0.012","S":"Buy"}]}`,
	})
	defer srv.Close()

	ws := NewBybitWS()
	ws.Endpoint = wsURL(srv)
	if err := ws.SubscribeTrades("BTCUSDT"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	h := &recordingHandler{}
	_ = ws.connectAndRead(context.Background(), h)

	if h.connects != 1 {
		t.Fatalf("want 1 connect, got %d", h.connects)
	}
	if len(h.parseErrs) != 1 {
		t.Fatalf("want 1 parse error reported, got %d", len(h.parseErrs))
	}
	if len(h.trades) != 1 || h.trades[0].Price != 42100.5 {
		t.Fatalf("bad frame must not stop the stream, got trades %+v", h.trades)
	}
}

func TestWSRunRequiresSubscription(t *testing.T) {
	ws := NewBybitWS()
	if err := ws.Run(context.Background(), &recordingHandler{}); err == nil {
		t.Fatalf("Run without topics should fail")
	}
}
