// Package payload shapes ranking output into the external JSON contract.
// The engine only ever sees typed structs; serialization happens here at
// the boundary.
package payload

import (
	"time"

	"github.com/shopspring/decimal"

	"MarketMovers/internal/model"
	"MarketMovers/internal/rank"
)

// MoverEntry is one ranked ticker. Snake and camel duplicates are part of
// the published contract: older clients read one spelling, newer the other.
type MoverEntry struct {
	Symbol          string  `json:"symbol"`
	Ticker          string  `json:"ticker"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	Close           float64 `json:"close"`
	Volume          int64   `json:"volume"`
	Currency        string  `json:"currency"`
	ChangePercent   float64 `json:"change_percent"`
	ChangePercentCC float64 `json:"changePercent"`
	AsOfDate        string  `json:"as_of_date"`
	AsOfDateCC      string  `json:"asOfDate"`
}

// TimeframeBlock is one window's ranking for one market.
type TimeframeBlock struct {
	EligibleSymbols  int          `json:"eligible_symbols"`
	CandidateSymbols int          `json:"candidate_symbols"`
	Gainers          []MoverEntry `json:"gainers"`
	Losers           []MoverEntry `json:"losers"`
}

// MarketBlock is one market's full ranking.
type MarketBlock struct {
	Code       string                             `json:"code"`
	Name       string                             `json:"name"`
	Currency   string                             `json:"currency"`
	AsOfDate   string                             `json:"as_of_date"`
	Timeframes map[model.Timeframe]TimeframeBlock `json:"timeframes"`
}

// Counts summarizes the run for observability.
type Counts struct {
	InputRows int `json:"input_rows"`
	Markets   int `json:"markets"`
}

// TopMoversDoc is the published top-movers document. The root-level market,
// gainers and losers fields mirror the US 1D block for legacy clients.
type TopMoversDoc struct {
	GeneratedAtUTC string            `json:"generated_at_utc"`
	Source         string            `json:"source"`
	Timeframes     []model.Timeframe `json:"timeframes"`
	Markets        []MarketBlock     `json:"markets"`
	Counts         Counts            `json:"counts"`
	Market         string            `json:"market,omitempty"`
	AsOfDate       string            `json:"as_of_date,omitempty"`
	Gainers        []MoverEntry      `json:"gainers,omitempty"`
	Losers         []MoverEntry      `json:"losers,omitempty"`
}

// BuildTopMovers shapes engine results into the top-movers document.
func BuildTopMovers(results []rank.MarketResult, inputRows int) TopMoversDoc {
	doc := TopMoversDoc{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Source:         model.SourceName,
		Timeframes:     model.Timeframes,
		Markets:        make([]MarketBlock, 0, len(results)),
	}

	for _, res := range results {
		block := MarketBlock{
			Code:       res.Market.Code,
			Name:       res.Market.Name,
			Currency:   res.Market.DefaultCurrency,
			AsOfDate:   res.AsOfDate,
			Timeframes: make(map[model.Timeframe]TimeframeBlock, len(res.Windows)),
		}
		for tf, win := range res.Windows {
			block.Timeframes[tf] = TimeframeBlock{
				EligibleSymbols:  win.Eligible,
				CandidateSymbols: win.Candidates,
				Gainers:          toEntries(win.Gainers),
				Losers:           toEntries(win.Losers),
			}
		}
		doc.Markets = append(doc.Markets, block)
	}

	doc.Counts = Counts{InputRows: inputRows, Markets: len(doc.Markets)}

	for _, block := range doc.Markets {
		if block.Code != "US" {
			continue
		}
		doc.Market = "US"
		doc.AsOfDate = block.AsOfDate
		doc.Gainers = block.Timeframes[model.Timeframe1D].Gainers
		doc.Losers = block.Timeframes[model.Timeframe1D].Losers
		break
	}
	return doc
}

func toEntries(movers []rank.Mover) []MoverEntry {
	entries := make([]MoverEntry, 0, len(movers))
	for _, m := range movers {
		close := round6(m.Row.Close)
		pct := round6(m.ChangePercent)
		entries = append(entries, MoverEntry{
			Symbol:          m.Row.Ticker,
			Ticker:          m.Row.Ticker,
			Name:            m.Row.Name,
			Price:           close,
			Close:           close,
			Volume:          m.Row.Volume,
			Currency:        m.Row.Currency,
			ChangePercent:   pct,
			ChangePercentCC: pct,
			AsOfDate:        m.Row.AsOfDate,
			AsOfDateCC:      m.Row.AsOfDate,
		})
	}
	return entries
}

// round6 rounds to six decimal places, the precision of the published feed.
func round6(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(6).Float64()
	return f
}
