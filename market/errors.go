package market

import "errors"

var (
	// ErrMalformedTrade marks a single bad event; ingestion continues.
	ErrMalformedTrade = errors.New("malformed trade")
	// ErrSeedConflict is returned when Seed is called after ingestion began.
	ErrSeedConflict = errors.New("seed after ingestion started")
	// ErrSeedDuplicate is returned when seed data contains duplicate buckets.
	ErrSeedDuplicate = errors.New("duplicate bucket in seed data")
	// ErrClosed is returned by Ingest once shutdown has begun.
	ErrClosed = errors.New("aggregator closed")
)
