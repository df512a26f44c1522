package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TradeEvent is one publicTrade entry with fields already converted.
type TradeEvent struct {
	Price float64
	Qty   float64
	TsMs  int64
}

// wsEnvelope is the Bybit V5 message wrapper. Control frames (pong,
// subscribe ack) carry no topic.
type wsEnvelope struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

// wsTradeEntry is one element of a publicTrade data array.
type wsTradeEntry struct {
	Ts    int64  `json:"T"` // trade time (ms)
	Price string `json:"p"`
	Qty   string `json:"v"`
	Side  string `json:"S"`
}

type tradeParser struct{}

// parse extracts trade events from one raw websocket message. Non-trade
// topics and control frames yield an empty slice, not an error.
func (tradeParser) parse(raw []byte) ([]TradeEvent, error) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Topic == "" || !strings.HasPrefix(env.Topic, "publicTrade.") {
		return nil, nil
	}
	var entries []wsTradeEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, fmt.Errorf("trade data: %w", err)
	}
	out := make([]TradeEvent, 0, len(entries))
	for i, e := range entries {
		price, err := strconv.ParseFloat(e.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("trade[%d] price: %w", i, err)
		}
		qty, err := strconv.ParseFloat(e.Qty, 64)
		if err != nil {
			return nil, fmt.Errorf("trade[%d] qty: %w", i, err)
		}
		out = append(out, TradeEvent{Price: price, Qty: qty, TsMs: e.Ts})
	}
	return out, nil
}
