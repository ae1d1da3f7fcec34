package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"MarketMovers/internal/collector"
	"MarketMovers/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "no-such-config.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Output.Dir = dir
	cfg.Markets = "US"
	cfg.TopLimit = 5
	return cfg
}

func usRecords() []collector.RawRecord {
	return []collector.RawRecord{
		{"code": "AAA", "name": "Alpha", "close": 110.0, "volume": 5000.0, "change_p": 10.0, "date": "2024-06-10"},
		{"code": "BBB", "name": "Beta", "close": 95.0, "volume": 3000.0, "change_p": -5.0, "date": "2024-06-10"},
		{"code": "CCC", "name": "Gamma", "close": 50.0, "volume": 1000.0, "change_p": 0.0, "date": "2024-06-10"},
	}
}

func readTopMovers(t *testing.T, dir string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "top_movers.json"))
	if err != nil {
		t.Fatalf("read top_movers.json: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse top_movers.json: %v", err)
	}
	return doc
}

func TestRunMilestoneMode(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &collector.MockFetcher{
		LastDay: map[string][]collector.RawRecord{"US": usRecords()},
	}

	if err := Run(context.Background(), cfg, fetcher); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, name := range []string{
		"top_movers.json",
		"prices_index.json",
		"daily_market.db.zip",
		"milestone_prices.db.zip",
	} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("expected artifact %s: %v", name, err)
		}
	}
	// Uncompressed databases are cleaned up unless configured otherwise.
	for _, name := range []string{"daily_market.db", "milestone_prices.db"} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed, stat err = %v", name, err)
		}
	}

	doc := readTopMovers(t, cfg.Output.Dir)
	if doc["market"] != "US" {
		t.Errorf("legacy root market = %v, want US", doc["market"])
	}
	gainers, ok := doc["gainers"].([]any)
	if !ok || len(gainers) != 1 {
		t.Fatalf("expected one 1D gainer at the root, got %v", doc["gainers"])
	}
	first := gainers[0].(map[string]any)
	if first["symbol"] != "AAA" || first["ticker"] != "AAA" {
		t.Errorf("unexpected top gainer: %v", first)
	}

	var index struct {
		Prices map[string]struct {
			Close  float64 `json:"c"`
			Market string  `json:"m"`
		} `json:"prices"`
	}
	data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "prices_index.json"))
	if err != nil {
		t.Fatalf("read prices_index.json: %v", err)
	}
	if err := json.Unmarshal(data, &index); err != nil {
		t.Fatalf("parse prices_index.json: %v", err)
	}
	if entry, ok := index.Prices["US:AAA"]; !ok || entry.Close != 110 {
		t.Errorf("expected prefixed index entry US:AAA, got %+v", index.Prices["US:AAA"])
	}
	if entry, ok := index.Prices["AAA"]; !ok || entry.Market != "US" {
		t.Errorf("expected flat index entry AAA, got %+v", index.Prices["AAA"])
	}
}

func TestRunKeepsUncompressedDBWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.KeepUncompressedDB = true
	fetcher := &collector.MockFetcher{
		LastDay: map[string][]collector.RawRecord{"US": usRecords()},
	}

	if err := Run(context.Background(), cfg, fetcher); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, name := range []string{"daily_market.db", "milestone_prices.db"} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("expected %s to survive: %v", name, err)
		}
	}
}

func TestRunRollingModeDegradesWithoutHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Mode = config.ModeRolling
	cfg.History.BacktrackDays = 1
	fetcher := &collector.MockFetcher{
		LastDay: map[string][]collector.RawRecord{"US": usRecords()},
		// No historical data anywhere: every window except 1D stays empty.
	}

	if err := Run(context.Background(), cfg, fetcher); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc := readTopMovers(t, cfg.Output.Dir)
	markets := doc["markets"].([]any)
	if len(markets) != 1 {
		t.Fatalf("expected one market block, got %d", len(markets))
	}
	tfs := markets[0].(map[string]any)["timeframes"].(map[string]any)
	daily := tfs["1D"].(map[string]any)
	if daily["eligible_symbols"].(float64) != 2 {
		t.Errorf("1D eligible = %v, want 2", daily["eligible_symbols"])
	}
	yearly := tfs["1Y"].(map[string]any)
	if n := len(yearly["gainers"].([]any)); n != 0 {
		t.Errorf("1Y gainers with no history = %d, want 0", n)
	}
}

func TestRunFailsWhenNoMarketYieldsRows(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &collector.MockFetcher{Err: errors.New("network down")}
	if err := Run(context.Background(), cfg, fetcher); err == nil {
		t.Fatal("expected an error when every market fails")
	}
}
