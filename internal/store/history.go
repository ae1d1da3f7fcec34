package store

import (
	"database/sql"
	"fmt"

	"MarketMovers/internal/model"
)

// History is the rolling per-day close store, keyed (market, ticker, date).
type History struct {
	tx *sql.Tx
}

// Upsert inserts or overwrites rows by identity key. Re-running a day with
// identical input is idempotent; for a repeated key the last write wins.
func (h *History) Upsert(rows []model.PriceRow) error {
	stmt, err := h.tx.Prepare(`INSERT OR REPLACE INTO daily_history
		(market_code, ticker, name, currency, close, volume, change_percent, as_of_date)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare history upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.MarketCode, r.Ticker, r.Name, r.Currency,
			r.Close, r.Volume, r.ChangePercent, r.AsOfDate); err != nil {
			return fmt.Errorf("upsert %s:%s@%s: %w", r.MarketCode, r.Ticker, r.AsOfDate, err)
		}
	}
	return nil
}

// LookupPoint returns the stored close for one (market, ticker, date).
func (h *History) LookupPoint(market, ticker, date string) (float64, bool, error) {
	var close float64
	err := h.tx.QueryRow(
		`SELECT close FROM daily_history WHERE market_code = ? AND ticker = ? AND as_of_date = ?`,
		market, ticker, date,
	).Scan(&close)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup %s:%s@%s: %w", market, ticker, date, err)
	}
	return close, true, nil
}

// LookupRange returns, per ticker, the close at the latest stored date d with
// lower <= d <= target and d strictly before asOf. "Latest within bound" is
// the tie-break policy: prefer the anchor closest to the ideal target, never
// one on or after the as-of date.
func (h *History) LookupRange(market, asOf, target, lower string) (map[string]model.Reference, error) {
	rows, err := h.tx.Query(`
		SELECT h.ticker, h.close, h.as_of_date
		FROM daily_history h
		JOIN (
			SELECT ticker, MAX(as_of_date) AS max_date
			FROM daily_history
			WHERE market_code = ? AND as_of_date >= ? AND as_of_date <= ? AND as_of_date < ?
			GROUP BY ticker
		) latest ON h.ticker = latest.ticker AND h.as_of_date = latest.max_date
		WHERE h.market_code = ?`,
		market, lower, target, asOf, market)
	if err != nil {
		return nil, fmt.Errorf("range lookup %s [%s..%s): %w", market, lower, target, err)
	}
	defer rows.Close()

	refs := make(map[string]model.Reference)
	for rows.Next() {
		var (
			ticker string
			ref    model.Reference
		)
		if err := rows.Scan(&ticker, &ref.Close, &ref.AsOfDate); err != nil {
			return nil, fmt.Errorf("scan range lookup: %w", err)
		}
		refs[ticker] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range lookup %s: %w", market, err)
	}
	return refs, nil
}

// HasMarketDate reports whether any ticker has a row for (market, date).
// Presence implies a fetch already happened for that day.
func (h *History) HasMarketDate(market, date string) (bool, error) {
	var one int
	err := h.tx.QueryRow(
		`SELECT 1 FROM daily_history WHERE market_code = ? AND as_of_date = ? LIMIT 1`,
		market, date,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s@%s: %w", market, date, err)
	}
	return true, nil
}

// Prune deletes rows dated strictly before cutoff and returns the count.
func (h *History) Prune(cutoff string) (int64, error) {
	res, err := h.tx.Exec(`DELETE FROM daily_history WHERE as_of_date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", cutoff, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune count: %w", err)
	}
	return n, nil
}

// GetMeta reads one scalar metadata value; "" when absent.
func (h *History) GetMeta(key string) (string, error) {
	var value string
	err := h.tx.QueryRow(`SELECT value FROM history_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta writes one scalar metadata value.
func (h *History) SetMeta(key, value string) error {
	if _, err := h.tx.Exec(
		`INSERT OR REPLACE INTO history_meta (key, value) VALUES (?, ?)`, key, value,
	); err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}
