// Package store persists the finalized candle sequence to flat CSV files,
// keyed by instrument and calendar day.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"candle-feed-go/market"
)

// injectable for deterministic tests
var timeNow = time.Now

// csvTime serializes as RFC3339 and parses either RFC3339 or a millisecond
// epoch, for older files written with raw timestamps.
type csvTime struct {
	time.Time
}

func (t csvTime) MarshalCSV() (string, error) {
	return t.UTC().Format(time.RFC3339), nil
}

func (t *csvTime) UnmarshalCSV(s string) error {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		t.Time = ts.UTC()
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp %q: not RFC3339 or epoch ms", s)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

type candleRow struct {
	Timestamp csvTime `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
	Turnover  float64 `csv:"turnover"`
}

// Store reads and writes one CSV file per instrument per day.
type Store struct {
	Dir    string
	Symbol string
}

// Filename returns today's file path for the given suffix.
func (s *Store) Filename(suffix string) string {
	day := timeNow().UTC().Format("20060102")
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s_%s.csv", s.Symbol, suffix, day))
}

// Save writes the full sequence to today's file and returns its path.
// The write goes through a temp file so a crash cannot truncate the
// previous save.
func (s *Store) Save(candles []market.Candle) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	rows := make([]candleRow, len(candles))
	for i, c := range candles {
		rows[i] = candleRow{
			Timestamp: csvTime{c.Ts},
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			Turnover:  c.Turnover,
		}
	}
	path := s.Filename("candles")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return path, nil
}

// Load reads today's file. An absent file is not an error: it returns
// (nil, false, nil). degraded is true when the file predates the turnover
// column; those values load as 0.
func (s *Store) Load() (candles []market.Candle, degraded bool, err error) {
	path := s.Filename("candles")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	degraded = !headerHasColumn(raw, "turnover")

	var rows []candleRow
	if err := gocsv.UnmarshalBytes(raw, &rows); err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", path, err)
	}
	candles = make([]market.Candle, len(rows))
	for i, r := range rows {
		candles[i] = market.Candle{
			Ts:       r.Timestamp.Time,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
			Turnover: r.Turnover,
		}
	}
	return candles, degraded, nil
}

func headerHasColumn(raw []byte, name string) bool {
	line, _, _ := strings.Cut(string(raw), "\n")
	for _, col := range strings.Split(line, ",") {
		if strings.TrimSpace(col) == name {
			return true
		}
	}
	return false
}
