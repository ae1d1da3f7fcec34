// Package store owns the only durable state of the pipeline: an embedded
// SQLite database holding either a rolling per-day close history or the
// milestone reference slots, plus a scalar metadata map. All mutations in a
// run happen inside one transaction scope so a crash mid-run leaves no
// partially-updated history behind.
package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// Store is an open handle on the reference-price database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database and ensures the schema. Schema
// creation is idempotent and tolerates tables left by prior runs, including
// ones missing later-added nullable columns.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] reference store opened: %s", path)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_history (
			market_code TEXT NOT NULL,
			ticker      TEXT NOT NULL,
			name        TEXT NOT NULL,
			currency    TEXT NOT NULL,
			close       REAL NOT NULL,
			volume      INTEGER NOT NULL DEFAULT 0,
			as_of_date  TEXT NOT NULL,
			PRIMARY KEY (market_code, ticker, as_of_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_market_date ON daily_history(market_code, as_of_date)`,
		`CREATE TABLE IF NOT EXISTS history_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS milestone_prices (
			slot        TEXT NOT NULL,
			market_code TEXT NOT NULL,
			ticker      TEXT NOT NULL,
			name        TEXT NOT NULL,
			currency    TEXT NOT NULL,
			close       REAL NOT NULL,
			as_of_date  TEXT NOT NULL,
			PRIMARY KEY (slot, market_code, ticker)
		)`,
		`CREATE TABLE IF NOT EXISTS milestone_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	// Stores written before the column existed are upgraded in place.
	if err := s.ensureColumn("daily_history", "change_percent", "REAL"); err != nil {
		return err
	}
	return nil
}

// ensureColumn adds a nullable column when an older store predates it.
func (s *Store) ensureColumn(table, column, decl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scan %s column: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}

	if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	log.Printf("[INFO] store upgraded: added %s.%s", table, column)
	return nil
}

// Begin opens the run's transaction scope. Rollback after Commit is a no-op,
// so callers defer Rollback unconditionally and every exit path either
// commits fully or rolls back fully.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is the transaction scope of one pipeline run.
type Tx struct {
	tx   *sql.Tx
	done bool
}

// History returns the rolling-history view bound to this transaction.
func (t *Tx) History() *History { return &History{tx: t.tx} }

// Milestone returns the milestone-slot view bound to this transaction.
func (t *Tx) Milestone() *Milestone { return &Milestone{tx: t.tx} }

// Commit commits the run's mutations.
func (t *Tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the run's mutations unless Commit already succeeded.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}
