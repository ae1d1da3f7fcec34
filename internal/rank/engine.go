// Package rank joins today's prices against resolved reference prices and
// ranks each market's tickers into gainers and losers per lookback window.
package rank

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"MarketMovers/internal/dateutil"
	"MarketMovers/internal/model"
)

// ReferenceSource supplies reference closes per ticker for one market and
// timeframe. The rolling mode backs this with the anchor resolver, the
// milestone mode with preloaded slots.
type ReferenceSource interface {
	References(ctx context.Context, market model.MarketDefinition, asOfDate string, tf model.Timeframe) (map[string]model.Reference, error)
}

// Mover pairs a price row with its computed percent change.
type Mover struct {
	Row           model.PriceRow
	ChangePercent float64
}

// WindowResult holds one timeframe's ranking for one market.
type WindowResult struct {
	// Candidates counts movers before the volume filter.
	Candidates int
	// Eligible counts movers that survived the volume filter.
	Eligible int
	Gainers  []Mover
	Losers   []Mover
}

// MarketResult holds the full ranking of one market.
type MarketResult struct {
	Market   model.MarketDefinition
	AsOfDate string
	Windows  map[model.Timeframe]*WindowResult
}

// Engine ranks markets. Single-threaded and deterministic: identical stored
// state and identical rows always yield identical output.
type Engine struct {
	Source   ReferenceSource
	TopLimit int
	// MinVolume excludes thin tickers from ranking. Applied only when
	// FilterVolume is set (rolling mode); the milestone mode has no filter.
	MinVolume    int64
	FilterVolume bool
}

// Rank processes markets in configured order. A market with no rows this run
// is skipped; a window with no resolvable references yields empty lists.
func (e *Engine) Rank(ctx context.Context, markets []model.MarketDefinition, rows []model.PriceRow) ([]MarketResult, error) {
	byMarket := make(map[string][]model.PriceRow)
	for _, r := range rows {
		byMarket[r.MarketCode] = append(byMarket[r.MarketCode], r)
	}

	var results []MarketResult
	for _, market := range markets {
		marketRows := byMarket[market.Code]
		if len(marketRows) == 0 {
			log.Printf("[INFO] market %s skipped: no rows this run", market.Code)
			continue
		}

		dates := make([]string, len(marketRows))
		for i, r := range marketRows {
			dates[i] = r.AsOfDate
		}
		asOf := dateutil.MostFrequent(dates)

		result := MarketResult{
			Market:   market,
			AsOfDate: asOf,
			Windows:  make(map[model.Timeframe]*WindowResult, len(model.Timeframes)),
		}

		for _, tf := range model.Timeframes {
			pool, err := e.buildPool(ctx, market, asOf, tf, marketRows)
			if err != nil {
				return nil, err
			}
			result.Windows[tf] = e.rankPool(pool)
		}

		log.Printf("[INFO] top movers [%s] 1D=%d 5D=%d 1M=%d 1Y=%d eligible",
			market.Code,
			result.Windows[model.Timeframe1D].Eligible,
			result.Windows[model.Timeframe5D].Eligible,
			result.Windows[model.Timeframe1M].Eligible,
			result.Windows[model.Timeframe1Y].Eligible)

		results = append(results, result)
	}
	return results, nil
}

// buildPool computes the candidate movers for one window. The 1D change is
// taken from the feed as-is, never recomputed from a reference lookup.
func (e *Engine) buildPool(ctx context.Context, market model.MarketDefinition, asOf string, tf model.Timeframe, rows []model.PriceRow) ([]Mover, error) {
	if tf == model.Timeframe1D {
		var pool []Mover
		for _, r := range rows {
			if r.ChangePercent == nil || math.IsNaN(*r.ChangePercent) || math.IsInf(*r.ChangePercent, 0) {
				continue
			}
			pool = append(pool, Mover{Row: r, ChangePercent: *r.ChangePercent})
		}
		return pool, nil
	}

	refs, err := e.Source.References(ctx, market, asOf, tf)
	if err != nil {
		return nil, fmt.Errorf("references [%s %s]: %w", market.Code, tf, err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	var pool []Mover
	for _, r := range rows {
		ref, ok := refs[r.Ticker]
		if !ok {
			continue
		}
		// Never compare against a reference dated on or after the row's
		// own date: re-runs and clock skew would otherwise zero movers.
		if ref.AsOfDate >= r.AsOfDate {
			continue
		}
		pct, ok := percentChange(r.Close, ref.Close)
		if !ok {
			continue
		}
		pool = append(pool, Mover{Row: r, ChangePercent: pct})
	}
	return pool, nil
}

// rankPool applies the volume filter, splits into gainers/losers and
// truncates. Stable sort keeps input order on ties.
func (e *Engine) rankPool(pool []Mover) *WindowResult {
	candidates := 0
	for _, m := range pool {
		if m.ChangePercent != 0 {
			candidates++
		}
	}

	filtered := pool
	if e.FilterVolume && e.MinVolume > 0 {
		filtered = filtered[:0:0]
		for _, m := range pool {
			if m.Row.Volume >= e.MinVolume {
				filtered = append(filtered, m)
			}
		}
	}

	gainers := make([]Mover, 0)
	losers := make([]Mover, 0)
	for _, m := range filtered {
		switch {
		case m.ChangePercent > 0:
			gainers = append(gainers, m)
		case m.ChangePercent < 0:
			losers = append(losers, m)
		}
	}
	eligible := len(gainers) + len(losers)

	sort.SliceStable(gainers, func(i, j int) bool { return gainers[i].ChangePercent > gainers[j].ChangePercent })
	sort.SliceStable(losers, func(i, j int) bool { return losers[i].ChangePercent < losers[j].ChangePercent })

	if e.TopLimit > 0 && len(gainers) > e.TopLimit {
		gainers = gainers[:e.TopLimit]
	}
	if e.TopLimit > 0 && len(losers) > e.TopLimit {
		losers = losers[:e.TopLimit]
	}

	return &WindowResult{
		Candidates: candidates,
		Eligible:   eligible,
		Gainers:    gainers,
		Losers:     losers,
	}
}

// percentChange computes (current - reference) / reference * 100, rejecting
// non-positive references and non-finite results.
func percentChange(current, reference float64) (float64, bool) {
	if reference <= 0 {
		return 0, false
	}
	pct := (current - reference) / reference * 100.0
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, false
	}
	return pct, true
}
