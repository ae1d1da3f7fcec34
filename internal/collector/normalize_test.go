package collector

import (
	"math"
	"testing"

	"MarketMovers/internal/model"
)

func fptr(v float64) *float64 { return &v }

func TestParseFloat(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want *float64
	}{
		{"plain float", 12.5, fptr(12.5)},
		{"int", 7, fptr(7)},
		{"string", "12.5", fptr(12.5)},
		{"percent sign", "12.5%", fptr(12.5)},
		{"decimal comma", "1,5", fptr(1.5)},
		{"thousand separators", "1,234.5", fptr(1234.5)},
		{"empty string", "", nil},
		{"garbage", "abc", nil},
		{"nil", nil, nil},
		{"bool", true, nil},
		{"nan", math.NaN(), nil},
		{"inf", math.Inf(1), nil},
	}
	for _, tt := range tests {
		got := parseFloat(tt.raw)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("%s: parseFloat(%v) = %v, want nil", tt.name, tt.raw, *got)
		case tt.want != nil && got == nil:
			t.Errorf("%s: parseFloat(%v) = nil, want %v", tt.name, tt.raw, *tt.want)
		case tt.want != nil && got != nil && *got != *tt.want:
			t.Errorf("%s: parseFloat(%v) = %v, want %v", tt.name, tt.raw, *got, *tt.want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	if got := normalizeDate("2024-06-10", "2024-01-01"); got != "2024-06-10" {
		t.Errorf("valid date: got %s", got)
	}
	if got := normalizeDate("2024-06-10T15:04:05Z", "2024-01-01"); got != "2024-06-10" {
		t.Errorf("timestamp trim: got %s", got)
	}
	if got := normalizeDate("not-a-date", "2024-01-01"); got != "2024-01-01" {
		t.Errorf("fallback: got %s", got)
	}
	if got := normalizeDate(nil, "2024-01-01"); got != "2024-01-01" {
		t.Errorf("nil fallback: got %s", got)
	}
}

func TestExtractChangePercent(t *testing.T) {
	// Explicit field wins over everything else.
	got := extractChangePercent(RawRecord{"change_p": 3.2, "previousClose": 100.0}, 110)
	if got == nil || *got != 3.2 {
		t.Fatalf("change_p: got %v, want 3.2", got)
	}

	// Derived from previous close.
	got = extractChangePercent(RawRecord{"previousClose": 100.0}, 110)
	if got == nil || math.Abs(*got-10) > 1e-9 {
		t.Fatalf("previousClose: got %v, want 10", got)
	}

	// Derived from absolute change.
	got = extractChangePercent(RawRecord{"change": 5.0}, 105)
	if got == nil || math.Abs(*got-5) > 1e-9 {
		t.Fatalf("change: got %v, want 5", got)
	}

	// Intraday proxy from open.
	got = extractChangePercent(RawRecord{"open": 100.0}, 102)
	if got == nil || math.Abs(*got-2) > 1e-9 {
		t.Fatalf("open proxy: got %v, want 2", got)
	}

	// Nothing available.
	if got = extractChangePercent(RawRecord{}, 100); got != nil {
		t.Fatalf("empty record: got %v, want nil", got)
	}

	// Zero previous close must not divide.
	if got = extractChangePercent(RawRecord{"previousClose": 0.0}, 100); got != nil {
		t.Fatalf("zero previousClose: got %v, want nil", got)
	}
}

func TestBuildPriceRows(t *testing.T) {
	market := model.MarketDefinition{Code: "US", Name: "United States", DefaultCurrency: "USD"}
	raw := []RawRecord{
		{"code": "aapl", "close": 190.5, "volume": 1000.0, "date": "2024-06-10", "name": "Apple Inc"},
		{"code": "MSFT", "close": 410.0, "currency": "usd"},
		{"code": "", "close": 10.0},   // no ticker
		{"code": "BAD", "close": nil}, // no close
		{"code": "AAPL", "close": 191.0, "date": "2024-06-10"}, // duplicate, last wins
	}

	rows, stats, err := BuildPriceRows(market, raw, "2024-06-10")
	if err != nil {
		t.Fatalf("BuildPriceRows: %v", err)
	}
	if stats.Valid != 2 || stats.Skipped != 2 || stats.Duplicates != 1 {
		t.Fatalf("stats = %+v, want valid=2 skipped=2 duplicates=1", stats)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	aapl := rows[0]
	if aapl.Ticker != "AAPL" {
		t.Errorf("ticker not uppercased: %s", aapl.Ticker)
	}
	if aapl.Close != 191.0 {
		t.Errorf("duplicate should take last close, got %v", aapl.Close)
	}
	if aapl.Name != "AAPL" {
		t.Errorf("duplicate without name should fall back to ticker, got %q", aapl.Name)
	}

	msft := rows[1]
	if msft.Currency != "USD" {
		t.Errorf("currency not uppercased: %s", msft.Currency)
	}
	if msft.AsOfDate != "2024-06-10" {
		t.Errorf("missing date should use fallback, got %s", msft.AsOfDate)
	}
	if msft.Volume != 0 {
		t.Errorf("missing volume should default to 0, got %d", msft.Volume)
	}

	if _, _, err := BuildPriceRows(market, []RawRecord{{"code": "", "close": nil}}, "2024-06-10"); err == nil {
		t.Error("expected error when no valid rows survive")
	}
}

func TestBuildPriceRowsDropsNonPositiveCloses(t *testing.T) {
	market := model.MarketDefinition{Code: "US", Name: "United States", DefaultCurrency: "USD"}
	raw := []RawRecord{
		{"code": "NEG", "close": -5.0, "date": "2024-06-10"},
		{"code": "ZERO", "close": 0.0, "date": "2024-06-10"},
		{"code": "POS", "close": 12.5, "date": "2024-06-10"},
	}

	rows, stats, err := BuildPriceRows(market, raw, "2024-06-10")
	if err != nil {
		t.Fatalf("BuildPriceRows: %v", err)
	}
	if stats.Valid != 1 || stats.Skipped != 2 {
		t.Fatalf("stats = %+v, want valid=1 skipped=2", stats)
	}
	if len(rows) != 1 || rows[0].Ticker != "POS" {
		t.Fatalf("expected only the positive-close row, got %+v", rows)
	}
}
