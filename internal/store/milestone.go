package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"MarketMovers/internal/model"
)

// Milestone is the slot-based reference store: exactly one row per
// (slot, market, ticker), replaced wholesale when the slot's calendar age
// reaches its target window.
type Milestone struct {
	tx *sql.Tx
}

// Meta returns the full metadata map (per-slot refresh dates, last run).
func (m *Milestone) Meta() (map[string]string, error) {
	rows, err := m.tx.Query(`SELECT key, value FROM milestone_meta`)
	if err != nil {
		return nil, fmt.Errorf("read milestone meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan milestone meta: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read milestone meta: %w", err)
	}
	return meta, nil
}

// SetMeta writes one metadata value.
func (m *Milestone) SetMeta(key, value string) error {
	if _, err := m.tx.Exec(
		`INSERT OR REPLACE INTO milestone_meta (key, value) VALUES (?, ?)`, key, value,
	); err != nil {
		return fmt.Errorf("write milestone meta %s: %w", key, err)
	}
	return nil
}

// LoadSlot returns the stored references of one slot as market -> ticker -> reference.
func (m *Milestone) LoadSlot(slot model.Slot) (map[string]map[string]model.Reference, error) {
	rows, err := m.tx.Query(
		`SELECT market_code, ticker, close, as_of_date FROM milestone_prices WHERE slot = ?`,
		string(slot))
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}
	defer rows.Close()

	prices := make(map[string]map[string]model.Reference)
	for rows.Next() {
		var (
			market, ticker string
			ref            model.Reference
		)
		if err := rows.Scan(&market, &ticker, &ref.Close, &ref.AsOfDate); err != nil {
			return nil, fmt.Errorf("scan slot %s: %w", slot, err)
		}
		if prices[market] == nil {
			prices[market] = make(map[string]model.Reference)
		}
		prices[market][ticker] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}
	return prices, nil
}

// ReplaceSlot replaces a slot wholesale with today's rows and stamps its
// refresh date. Until that age reaches the slot's target window the slot
// stays read-only for subsequent runs.
func (m *Milestone) ReplaceSlot(slot model.Slot, rows []model.PriceRow, today string) error {
	if _, err := m.tx.Exec(`DELETE FROM milestone_prices WHERE slot = ?`, string(slot)); err != nil {
		return fmt.Errorf("clear slot %s: %w", slot, err)
	}

	stmt, err := m.tx.Prepare(`INSERT INTO milestone_prices
		(slot, market_code, ticker, name, currency, close, as_of_date)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare slot insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(string(slot), r.MarketCode, r.Ticker, r.Name,
			r.Currency, r.Close, r.AsOfDate); err != nil {
			return fmt.Errorf("insert slot %s %s:%s: %w", slot, r.MarketCode, r.Ticker, err)
		}
	}
	if err := m.SetMeta(fmt.Sprintf("%s_date", slot), today); err != nil {
		return err
	}

	log.Printf("[INFO] milestone slot %q updated with %d rows (%s)", slot, len(rows), today)
	return nil
}

// SlotSource adapts the milestone store into the ranking engine's reference
// source. Slot data is loaded once up front so ranking never touches the
// database mid-loop.
type SlotSource struct {
	slots map[model.Slot]map[string]map[string]model.Reference
	meta  map[string]string
}

// NewSlotSource preloads every slot and the metadata map.
func NewSlotSource(m *Milestone) (*SlotSource, error) {
	meta, err := m.Meta()
	if err != nil {
		return nil, err
	}
	slots := make(map[model.Slot]map[string]map[string]model.Reference, len(model.Slots))
	for _, slot := range model.Slots {
		prices, err := m.LoadSlot(slot)
		if err != nil {
			return nil, err
		}
		slots[slot] = prices
	}
	return &SlotSource{slots: slots, meta: meta}, nil
}

// References returns the slot's stored closes for one market. Rows written
// before the as-of column existed inherit the slot's refresh date, so the
// engine's strict anti-aliasing guard applies to them too. An uninitialised
// slot yields no references.
func (s *SlotSource) References(_ context.Context, market model.MarketDefinition, _ string, tf model.Timeframe) (map[string]model.Reference, error) {
	slot := tf.Slot()
	if slot == "" {
		return nil, nil
	}
	slotDate := s.meta[fmt.Sprintf("%s_date", slot)]
	if slotDate == "" {
		return nil, nil
	}

	stored := s.slots[slot][market.Code]
	refs := make(map[string]model.Reference, len(stored))
	for ticker, ref := range stored {
		if ref.AsOfDate == "" {
			ref.AsOfDate = slotDate
		}
		refs[ticker] = ref
	}
	return refs, nil
}
