package collector

import "context"

// RawRecord is one untyped row from the bulk end-of-day feed.
type RawRecord map[string]any

// Fetcher defines the interface for downloading bulk daily market data.
// Implementations must be idempotent per (market, date).
type Fetcher interface {
	// FetchBulkLastDay downloads the latest end-of-day rows for a market.
	FetchBulkLastDay(ctx context.Context, market string) ([]RawRecord, error)
	// FetchBulkForDate downloads the end-of-day rows for a specific
	// historical date. Used by the cold-anchor bootstrap path.
	FetchBulkForDate(ctx context.Context, market, date string) ([]RawRecord, error)
	Name() string
}
