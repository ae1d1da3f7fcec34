package collector

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"MarketMovers/internal/dateutil"
	"MarketMovers/internal/model"
)

// BuildStats counts row-level data-quality outcomes for one market.
type BuildStats struct {
	Valid      int
	Skipped    int
	Duplicates int
}

// parseFloat converts a raw feed value to a finite float. String values may
// carry percent signs, decimal commas or thousand separators. Returns nil
// when the value is absent, malformed or non-finite.
func parseFloat(raw any) *float64 {
	var value float64
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		value = v
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case string:
		text := strings.ReplaceAll(strings.TrimSpace(v), "%", "")
		if text == "" {
			return nil
		}
		if strings.Contains(text, ",") && !strings.Contains(text, ".") {
			text = strings.ReplaceAll(text, ",", ".")
		} else {
			text = strings.ReplaceAll(text, ",", "")
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil
		}
		value = f
	default:
		return nil
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}

// parseInt converts a raw feed value to an integer via parseFloat.
func parseInt(raw any) *int64 {
	f := parseFloat(raw)
	if f == nil {
		return nil
	}
	n := int64(*f)
	return &n
}

// normalizeDate validates a raw date value, falling back when unparseable.
func normalizeDate(raw any, fallback string) string {
	if s, ok := raw.(string); ok {
		candidate := strings.TrimSpace(s)
		if len(candidate) > 10 {
			candidate = candidate[:10]
		}
		if candidate != "" {
			if _, err := dateutil.ParseISO(candidate); err == nil {
				return candidate
			}
		}
	}
	return fallback
}

// extractChangePercent pulls the same-day change percent out of a raw record,
// trying the explicit fields first, then deriving it from previous close,
// absolute change, and finally the open price (an intraday proxy used when
// the bulk endpoint exposes open/close only).
func extractChangePercent(rec RawRecord, close float64) *float64 {
	for _, key := range []string{"change_p", "changePercent", "change_percent", "changesPercentage"} {
		if v := parseFloat(rec[key]); v != nil {
			return v
		}
	}

	var previousClose *float64
	for _, key := range []string{"previousClose", "previous_close", "prevClose", "prev_close"} {
		if v := parseFloat(rec[key]); v != nil {
			previousClose = v
			break
		}
	}
	if previousClose != nil && *previousClose != 0 {
		pct := (close - *previousClose) / *previousClose * 100.0
		return &pct
	}

	if change := parseFloat(rec["change"]); change != nil {
		derivedPrevious := close - *change
		if derivedPrevious != 0 {
			pct := *change / derivedPrevious * 100.0
			return &pct
		}
	}

	if open := parseFloat(rec["open"]); open != nil && *open != 0 {
		pct := (close - *open) / *open * 100.0
		return &pct
	}
	return nil
}

func rawString(raw any) string {
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// BuildPriceRows normalizes raw feed records into PriceRows for one market.
// Rows without a ticker or without a positive close are dropped and counted;
// the last record wins for a duplicated ticker. Returns an error when nothing
// survives.
func BuildPriceRows(market model.MarketDefinition, raw []RawRecord, fallbackDate string) ([]model.PriceRow, BuildStats, error) {
	byTicker := make(map[string]model.PriceRow)
	var order []string
	stats := BuildStats{}

	for _, rec := range raw {
		tickerRaw := rec["code"]
		if tickerRaw == nil {
			tickerRaw = rec["symbol"]
		}
		if tickerRaw == nil {
			tickerRaw = rec["ticker"]
		}
		ticker := strings.ToUpper(rawString(tickerRaw))
		closePtr := parseFloat(rec["close"])

		if ticker == "" || closePtr == nil || *closePtr <= 0 {
			stats.Skipped++
			continue
		}

		name := rawString(rec["name"])
		if name == "" {
			name = rawString(rec["short_name"])
		}
		if name == "" {
			name = ticker
		}

		currency := strings.ToUpper(rawString(rec["currency"]))
		if currency == "" {
			currency = market.DefaultCurrency
		}

		var volume int64
		if v := parseInt(rec["volume"]); v != nil {
			volume = *v
		}

		if _, dup := byTicker[ticker]; dup {
			stats.Duplicates++
		} else {
			order = append(order, ticker)
		}

		byTicker[ticker] = model.PriceRow{
			MarketCode:    market.Code,
			MarketName:    market.Name,
			Ticker:        ticker,
			Name:          name,
			Currency:      currency,
			Close:         *closePtr,
			Volume:        volume,
			ChangePercent: extractChangePercent(rec, *closePtr),
			AsOfDate:      normalizeDate(rec["date"], fallbackDate),
		}
	}

	rows := make([]model.PriceRow, 0, len(byTicker))
	for _, ticker := range order {
		rows = append(rows, byTicker[ticker])
	}
	stats.Valid = len(rows)

	log.Printf("[INFO] rows prepared [%s]: valid=%d skipped=%d duplicates=%d",
		market.Code, stats.Valid, stats.Skipped, stats.Duplicates)

	if len(rows) == 0 {
		return nil, stats, fmt.Errorf("no valid market rows extracted for %s", market.Code)
	}
	return rows, stats, nil
}
