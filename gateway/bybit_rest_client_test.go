package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetKlines(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("category") != "spot" || q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "1" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		// Bybit returns newest-first.
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
			["120000","101","103","100","102","2.5","255.5"],
			["60000","100","102","99","101","1.5","151.2"]
		]}}`)
	}))
	defer ts.Close()

	cli := &BybitRESTClient{BaseURL: ts.URL, Category: "spot", HTTPClient: ts.Client()}
	rows, err := cli.GetKlines(context.Background(), "BTCUSDT", "1",
		time.UnixMilli(0), time.UnixMilli(180000))
	if err != nil {
		t.Fatalf("get klines err: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	if rows[0].StartMs != 60000 || rows[1].StartMs != 120000 {
		t.Fatalf("rows not chronological: %+v", rows)
	}
	if rows[0].Open != 100 || rows[0].Turnover != 151.2 {
		t.Fatalf("unexpected row %+v", rows[0])
	}
}

func TestGetKlinesRetCodeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"retCode":10001,"retMsg":"params error","result":{"list":[]}}`)
	}))
	defer ts.Close()

	cli := &BybitRESTClient{BaseURL: ts.URL, HTTPClient: ts.Client()}
	if _, err := cli.GetKlines(context.Background(), "BTCUSDT", "1",
		time.UnixMilli(0), time.UnixMilli(60000)); err == nil {
		t.Fatalf("expected retCode error")
	}
}

func TestGetKlinesMalformedRow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
			["60000","100","102","99","not-a-number","1.5","151.2"]
		]}}`)
	}))
	defer ts.Close()

	cli := &BybitRESTClient{BaseURL: ts.URL, HTTPClient: ts.Client()}
	if _, err := cli.GetKlines(context.Background(), "BTCUSDT", "1",
		time.UnixMilli(0), time.UnixMilli(60000)); err == nil {
		t.Fatalf("expected parse error for malformed row")
	}
}

func TestGetKlinesShortRow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[["60000","100","102"]]}}`)
	}))
	defer ts.Close()

	cli := &BybitRESTClient{BaseURL: ts.URL, HTTPClient: ts.Client()}
	if _, err := cli.GetKlines(context.Background(), "BTCUSDT", "1",
		time.UnixMilli(0), time.UnixMilli(60000)); err == nil {
		t.Fatalf("expected error for short row")
	}
}
