package payload

import (
	"testing"

	"MarketMovers/internal/model"
	"MarketMovers/internal/rank"
)

var (
	usMarket  = model.MarketDefinition{Code: "US", Name: "United States", DefaultCurrency: "USD"}
	lseMarket = model.MarketDefinition{Code: "LSE", Name: "United Kingdom", DefaultCurrency: "GBP"}
)

func priceRow(market, ticker string, close float64, date string) model.PriceRow {
	return model.PriceRow{
		MarketCode: market,
		MarketName: market,
		Ticker:     ticker,
		Name:       ticker,
		Currency:   "USD",
		Close:      close,
		AsOfDate:   date,
	}
}

func TestPricesIndexMarketPriority(t *testing.T) {
	rows := []model.PriceRow{
		priceRow("LSE", "ABC", 5.5, "2024-06-10"),
		priceRow("US", "ABC", 120.0, "2024-06-10"),
	}

	doc := BuildPricesIndex(rows, []model.MarketDefinition{usMarket, lseMarket})

	if doc.Prices["US:ABC"].Close != 120.0 {
		t.Errorf("US:ABC = %+v", doc.Prices["US:ABC"])
	}
	if doc.Prices["LSE:ABC"].Close != 5.5 {
		t.Errorf("LSE:ABC = %+v", doc.Prices["LSE:ABC"])
	}
	// The bare key resolves by configured market priority: US wins even
	// though the LSE row arrived first.
	if doc.Prices["ABC"].Market != "US" || doc.Prices["ABC"].Close != 120.0 {
		t.Errorf("flat ABC should resolve to the US entry, got %+v", doc.Prices["ABC"])
	}
}

func TestPricesIndexUnknownMarketLowestPriority(t *testing.T) {
	rows := []model.PriceRow{
		priceRow("XX", "ABC", 1.0, "2024-06-10"),
		priceRow("LSE", "ABC", 5.5, "2024-06-10"),
	}
	doc := BuildPricesIndex(rows, []model.MarketDefinition{usMarket, lseMarket})

	if doc.Prices["ABC"].Market != "LSE" {
		t.Errorf("configured market should beat an unknown one, got %+v", doc.Prices["ABC"])
	}
	if doc.Prices["XX:ABC"].Close != 1.0 {
		t.Errorf("prefixed key must stay accurate, got %+v", doc.Prices["XX:ABC"])
	}
}

func singleWindowResult(market model.MarketDefinition, movers ...rank.Mover) rank.MarketResult {
	windows := make(map[model.Timeframe]*rank.WindowResult, len(model.Timeframes))
	for _, tf := range model.Timeframes {
		windows[tf] = &rank.WindowResult{Gainers: []rank.Mover{}, Losers: []rank.Mover{}}
	}
	windows[model.Timeframe1D] = &rank.WindowResult{
		Candidates: len(movers),
		Eligible:   len(movers),
		Gainers:    movers,
		Losers:     []rank.Mover{},
	}
	return rank.MarketResult{Market: market, AsOfDate: "2024-06-10", Windows: windows}
}

func TestBuildTopMoversLegacyRootMirrorsUS(t *testing.T) {
	mover := rank.Mover{
		Row:           priceRow("US", "AAA", 100.123456789, "2024-06-10"),
		ChangePercent: 11.111111111111,
	}
	results := []rank.MarketResult{
		singleWindowResult(lseMarket),
		singleWindowResult(usMarket, mover),
	}

	doc := BuildTopMovers(results, 2)

	if doc.Market != "US" || doc.AsOfDate != "2024-06-10" {
		t.Errorf("legacy root should mirror US: market=%q asOf=%q", doc.Market, doc.AsOfDate)
	}
	if len(doc.Gainers) != 1 {
		t.Fatalf("legacy gainers = %+v", doc.Gainers)
	}
	entry := doc.Gainers[0]
	if entry.Symbol != "AAA" || entry.Ticker != "AAA" {
		t.Errorf("duplicate keys must agree: %+v", entry)
	}
	if entry.Close != 100.123457 {
		t.Errorf("close should round to 6 places, got %v", entry.Close)
	}
	if entry.ChangePercent != 11.111111 || entry.ChangePercentCC != 11.111111 {
		t.Errorf("change percent should round to 6 places, got %v / %v",
			entry.ChangePercent, entry.ChangePercentCC)
	}
	if doc.Counts.InputRows != 2 || doc.Counts.Markets != 2 {
		t.Errorf("counts = %+v", doc.Counts)
	}
}

func TestBuildTopMoversWithoutUS(t *testing.T) {
	doc := BuildTopMovers([]rank.MarketResult{singleWindowResult(lseMarket)}, 1)
	if doc.Market != "" || len(doc.Gainers) != 0 {
		t.Errorf("no US market, no legacy root: market=%q gainers=%+v", doc.Market, doc.Gainers)
	}
	if doc.Source != model.SourceName {
		t.Errorf("source = %q", doc.Source)
	}
	if len(doc.Timeframes) != 4 {
		t.Errorf("timeframes = %+v", doc.Timeframes)
	}
}

func TestRound6(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{11.1111111111, 11.111111},
		{1.23456789, 1.234568},
		{-2.5555555555, -2.555556},
		{5, 5},
	}
	for _, tt := range tests {
		if got := round6(tt.in); got != tt.want {
			t.Errorf("round6(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
