package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// BybitRESTEndpoint is the public mainnet REST base URL.
	BybitRESTEndpoint = "https://api.bybit.com"
	klinePath         = "/v5/market/kline"
	klineMaxLimit     = 1000
)

// KlineRow is one historical OHLCV row as returned by the kline endpoint.
type KlineRow struct {
	StartMs  int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}

// BybitRESTClient fetches historical klines. HTTPClient is injectable so
// tests can point it at httptest.
type BybitRESTClient struct {
	BaseURL    string
	Category   string // "spot" | "linear" | "inverse"
	HTTPClient *http.Client
	Limiter    RateLimiter // optional; throttles paginated fetches
}

// NewDefaultHTTPClient returns an http.Client with a sane timeout.
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// GetKlines fetches the [start, end] window, paginating until covered.
// Bybit returns rows newest-first; the result is reversed to chronological
// order. A non-zero retCode or malformed row fails the whole call.
func (c *BybitRESTClient) GetKlines(ctx context.Context, symbol, interval string, start, end time.Time) ([]KlineRow, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	var all []KlineRow
	endMs := end.UnixMilli()
	startMs := start.UnixMilli()

	for {
		batch, err := c.fetchBatch(ctx, symbol, interval, startMs, endMs)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		if len(batch) < klineMaxLimit {
			break
		}
		// Newest-first pages: the oldest row of this page bounds the next.
		endMs = all[len(all)-1].StartMs - 1
		if endMs < startMs {
			break
		}
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func (c *BybitRESTClient) fetchBatch(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]KlineRow, error) {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	base := c.BaseURL
	if base == "" {
		base = BybitRESTEndpoint
	}
	category := c.Category
	if category == "" {
		category = "spot"
	}
	u, err := url.Parse(base + klinePath)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("category", category)
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("start", strconv.FormatInt(startMs, 10))
	q.Set("end", strconv.FormatInt(endMs, 10))
	q.Set("limit", strconv.Itoa(klineMaxLimit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kline request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kline status %d", resp.StatusCode)
	}

	var envelope struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode kline response: %w", err)
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("bybit retCode %d: %s", envelope.RetCode, envelope.RetMsg)
	}
	return parseKlineRows(envelope.Result.List)
}

// parseKlineRows converts the wire format. Row layout:
// [startTime(ms), open, high, low, close, volume, turnover].
func parseKlineRows(rows [][]string) ([]KlineRow, error) {
	out := make([]KlineRow, 0, len(rows))
	for i, r := range rows {
		if len(r) < 7 {
			return nil, fmt.Errorf("kline[%d]: %d fields, want 7", i, len(r))
		}
		startMs, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("kline[%d] start: %w", i, err)
		}
		vals := make([]float64, 6)
		for j := 1; j <= 6; j++ {
			v, err := strconv.ParseFloat(r[j], 64)
			if err != nil {
				return nil, fmt.Errorf("kline[%d] field %d: %w", i, j, err)
			}
			vals[j-1] = v
		}
		out = append(out, KlineRow{
			StartMs:  startMs,
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
			Turnover: vals[5],
		})
	}
	return out, nil
}
