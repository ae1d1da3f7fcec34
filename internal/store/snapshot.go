package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"MarketMovers/internal/model"
)

// WriteSnapshot rebuilds the throwaway daily snapshot database from scratch:
// one row per (market, ticker) plus a metadata table describing the run.
// Unlike the reference store, this file never survives across runs.
func WriteSnapshot(path string, rows []model.PriceRow, markets []model.MarketDefinition, runID string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale snapshot: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open snapshot db: %w", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE daily_prices (
			market_code    TEXT NOT NULL,
			market_name    TEXT NOT NULL,
			ticker         TEXT NOT NULL,
			name           TEXT NOT NULL,
			currency       TEXT NOT NULL,
			close          REAL NOT NULL,
			volume         INTEGER NOT NULL,
			change_percent REAL,
			as_of_date     TEXT NOT NULL,
			PRIMARY KEY (market_code, ticker)
		)`,
		`CREATE INDEX idx_daily_prices_market_code ON daily_prices(market_code)`,
		`CREATE INDEX idx_daily_prices_as_of_date ON daily_prices(as_of_date)`,
		`CREATE INDEX idx_daily_prices_change_percent ON daily_prices(change_percent)`,
		`CREATE TABLE snapshot_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("create snapshot schema: %w", err)
		}
	}

	insert, err := tx.Prepare(`INSERT INTO daily_prices
		(market_code, market_name, ticker, name, currency, close, volume, change_percent, as_of_date)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer insert.Close()

	for _, r := range rows {
		if _, err := insert.Exec(r.MarketCode, r.MarketName, r.Ticker, r.Name,
			r.Currency, r.Close, r.Volume, r.ChangePercent, r.AsOfDate); err != nil {
			return fmt.Errorf("insert snapshot row %s:%s: %w", r.MarketCode, r.Ticker, err)
		}
	}

	marketCodes := ""
	for i, m := range markets {
		if i > 0 {
			marketCodes += ","
		}
		marketCodes += m.Code
	}
	meta := [][2]string{
		{"markets", marketCodes},
		{"source", model.SourceName},
		{"generated_at_utc", time.Now().UTC().Format(time.RFC3339)},
		{"rows", strconv.Itoa(len(rows))},
		{"market_count", strconv.Itoa(len(markets))},
		{"run_id", runID},
	}
	for _, kv := range meta {
		if _, err := tx.Exec(`INSERT INTO snapshot_meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("insert snapshot meta %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	log.Printf("[INFO] SQLite snapshot generated: %s", path)
	return nil
}
