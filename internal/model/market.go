package model

import "strings"

// MarketDefinition describes one EODHD exchange to process.
type MarketDefinition struct {
	Code            string
	Name            string
	DefaultCurrency string
}

// knownMarkets maps EODHD market codes to display name and default currency.
var knownMarkets = map[string]MarketDefinition{
	"US":    {Code: "US", Name: "United States", DefaultCurrency: "USD"},
	"LSE":   {Code: "LSE", Name: "United Kingdom", DefaultCurrency: "GBP"},
	"XETRA": {Code: "XETRA", Name: "Germany", DefaultCurrency: "EUR"},
	"PA":    {Code: "PA", Name: "France", DefaultCurrency: "EUR"},
	"MI":    {Code: "MI", Name: "Italy", DefaultCurrency: "EUR"},
	"TO":    {Code: "TO", Name: "Canada", DefaultCurrency: "CAD"},
	"TSE":   {Code: "TSE", Name: "Japan", DefaultCurrency: "JPY"},
	"HK":    {Code: "HK", Name: "Hong Kong", DefaultCurrency: "HKD"},
	"AU":    {Code: "AU", Name: "Australia", DefaultCurrency: "AUD"},
	"NSE":   {Code: "NSE", Name: "India", DefaultCurrency: "INR"},
}

// DefaultMarkets is the market list used when none is configured.
const DefaultMarkets = "US,LSE,XETRA,PA,TO,HK,AU,NSE"

// NormalizeMarketCode uppercases a raw market code and strips whitespace.
func NormalizeMarketCode(raw string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), " ", "")
}

// ResolveMarkets parses a comma-separated market list into definitions,
// preserving order and dropping duplicates. Unknown codes resolve to
// themselves with USD as the default currency.
func ResolveMarkets(raw string) []MarketDefinition {
	var resolved []MarketDefinition
	seen := make(map[string]bool)

	for _, chunk := range strings.Split(raw, ",") {
		code := NormalizeMarketCode(chunk)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		if known, ok := knownMarkets[code]; ok {
			resolved = append(resolved, known)
			continue
		}
		resolved = append(resolved, MarketDefinition{Code: code, Name: code, DefaultCurrency: "USD"})
	}
	return resolved
}
