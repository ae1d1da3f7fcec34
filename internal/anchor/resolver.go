// Package anchor resolves, for each market and lookback window, the
// historical date whose closes serve as the "before" prices. It tolerates
// missing trading days, holidays and gaps via bounded backtracking, and
// bootstraps absent days from the ingestion feed on demand.
package anchor

import (
	"context"
	"fmt"
	"log"

	"MarketMovers/internal/collector"
	"MarketMovers/internal/dateutil"
	"MarketMovers/internal/model"
)

// HistoryStore is the slice of the rolling store the resolver needs.
type HistoryStore interface {
	LookupRange(market, asOf, target, lower string) (map[string]model.Reference, error)
	HasMarketDate(market, date string) (bool, error)
	Upsert(rows []model.PriceRow) error
}

// Resolver finds reference prices in the rolling history, fetching a single
// historical day when no stored date falls inside the tolerance band.
type Resolver struct {
	Store         HistoryStore
	Fetcher       collector.Fetcher
	BacktrackDays int
}

// References resolves the reference-close-by-ticker map for one market and
// timeframe. An empty map means the window stays unresolved for this run;
// that is a degradation, not an error. Errors are store failures only, since
// fetch failures merely advance the backtracking loop.
func (r *Resolver) References(ctx context.Context, market model.MarketDefinition, asOfDate string, tf model.Timeframe) (map[string]model.Reference, error) {
	lookback := tf.LookbackDays()
	if lookback == 0 {
		return nil, nil
	}

	target, err := dateutil.DaysAgo(asOfDate, lookback)
	if err != nil {
		return nil, fmt.Errorf("resolve %s %s: %w", market.Code, tf, err)
	}
	lower, err := dateutil.DaysAgo(target, r.BacktrackDays)
	if err != nil {
		return nil, fmt.Errorf("resolve %s %s: %w", market.Code, tf, err)
	}

	refs, err := r.Store.LookupRange(market.Code, asOfDate, target, lower)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		log.Printf("[INFO] anchor resolved [%s %s]: %d tickers in [%s..%s]",
			market.Code, tf, len(refs), lower, target)
		return refs, nil
	}

	if err := r.bootstrap(ctx, market, asOfDate, target); err != nil {
		return nil, err
	}

	refs, err = r.Store.LookupRange(market.Code, asOfDate, target, lower)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		log.Printf("[WARN] anchor unresolved [%s %s]: no data in [%s..%s]",
			market.Code, tf, lower, target)
	} else {
		log.Printf("[INFO] anchor bootstrapped [%s %s]: %d tickers", market.Code, tf, len(refs))
	}
	return refs, nil
}

// bootstrap walks candidate dates from the ideal target back through the
// tolerance band. A candidate on or after the as-of date is skipped outright;
// a candidate with any stored row for the market means a fetch already
// happened for that day. Otherwise the day is fetched, normalized and
// upserted in full, so every ticker in the market resolves without further
// fetches this run.
func (r *Resolver) bootstrap(ctx context.Context, market model.MarketDefinition, asOfDate, target string) error {
	for i := 0; i <= r.BacktrackDays; i++ {
		candidate, err := dateutil.DaysAgo(target, i)
		if err != nil {
			return err
		}
		if candidate >= asOfDate {
			continue
		}

		present, err := r.Store.HasMarketDate(market.Code, candidate)
		if err != nil {
			return err
		}
		if present {
			return nil
		}

		raw, err := r.Fetcher.FetchBulkForDate(ctx, market.Code, candidate)
		if err != nil {
			log.Printf("[WARN] bootstrap fetch failed [%s %s]: %v", market.Code, candidate, err)
			continue
		}
		if len(raw) == 0 {
			log.Printf("[INFO] bootstrap empty [%s %s]", market.Code, candidate)
			continue
		}

		rows, _, err := collector.BuildPriceRows(market, raw, candidate)
		if err != nil {
			log.Printf("[WARN] bootstrap rows rejected [%s %s]: %v", market.Code, candidate, err)
			continue
		}
		if err := r.Store.Upsert(rows); err != nil {
			return err
		}
		return nil
	}
	return nil
}
