package payload

import (
	"fmt"
	"time"

	"MarketMovers/internal/model"
)

// PriceEntry is one compact quote in the prices index. Field names are
// single letters to keep the published file small.
type PriceEntry struct {
	Close    float64 `json:"c"`
	Currency string  `json:"cu"`
	Market   string  `json:"m"`
	Date     string  `json:"d"`
}

// PricesIndexDoc is the flat ticker lookup map for client-side quote lookup.
type PricesIndexDoc struct {
	Version        int                   `json:"v"`
	GeneratedAtUTC string                `json:"generated_at_utc"`
	Source         string                `json:"source"`
	Prices         map[string]PriceEntry `json:"prices"`
}

// BuildPricesIndex builds the lookup map. Each row is stored twice:
// "MARKET:TICKER" is always accurate, while the bare "TICKER" key resolves
// by market priority (configured order, first market wins). Clients should
// prefer the prefixed key when the exchange is known.
func BuildPricesIndex(rows []model.PriceRow, markets []model.MarketDefinition) PricesIndexDoc {
	priority := make(map[string]int, len(markets))
	for i, m := range markets {
		priority[m.Code] = i
	}

	prices := make(map[string]PriceEntry, len(rows)*2)
	flat := make(map[string]PriceEntry)
	bestPriority := make(map[string]int)

	for _, row := range rows {
		entry := PriceEntry{
			Close:    round6(row.Close),
			Currency: row.Currency,
			Market:   row.MarketCode,
			Date:     row.AsOfDate,
		}
		prices[fmt.Sprintf("%s:%s", row.MarketCode, row.Ticker)] = entry

		p, ok := priority[row.MarketCode]
		if !ok {
			p = 9999
		}
		best, seen := bestPriority[row.Ticker]
		if !seen || p < best {
			flat[row.Ticker] = entry
			bestPriority[row.Ticker] = p
		}
	}

	for ticker, entry := range flat {
		prices[ticker] = entry
	}

	return PricesIndexDoc{
		Version:        1,
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Source:         model.SourceName,
		Prices:         prices,
	}
}
