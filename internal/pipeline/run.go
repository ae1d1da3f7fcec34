// Package pipeline orchestrates one daily snapshot run: ingest, rank,
// persist, publish. Markets and windows are processed sequentially; the
// reference store is mutated inside a single transaction scope.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"MarketMovers/internal/anchor"
	"MarketMovers/internal/archive"
	"MarketMovers/internal/collector"
	"MarketMovers/internal/config"
	"MarketMovers/internal/dateutil"
	"MarketMovers/internal/model"
	"MarketMovers/internal/payload"
	"MarketMovers/internal/rank"
	"MarketMovers/internal/store"
)

// Run executes one full snapshot build. Per-market ingestion failures are
// skipped with a logged error; zero rows across all markets is fatal, as is
// any reference-store failure.
func Run(ctx context.Context, cfg *config.Config, fetcher collector.Fetcher) error {
	runID := uuid.NewString()
	markets := model.ResolveMarkets(cfg.Markets)
	if len(markets) == 0 {
		return fmt.Errorf("no valid markets configured")
	}

	codes := ""
	for i, m := range markets {
		if i > 0 {
			codes += ", "
		}
		codes += m.Code
	}
	log.Printf("[INFO] snapshot run %s started (%s mode). Markets: %s", runID, cfg.History.Mode, codes)

	today := dateutil.FormatISO(time.Now().UTC())

	// 1. Fetch today's bulk prices for all markets.
	var rows []model.PriceRow
	var failed []string
	for _, market := range markets {
		raw, err := fetcher.FetchBulkLastDay(ctx, market.Code)
		if err != nil {
			failed = append(failed, market.Code)
			log.Printf("[ERROR] market %s skipped: %v", market.Code, err)
			continue
		}
		marketRows, _, err := collector.BuildPriceRows(market, raw, today)
		if err != nil {
			failed = append(failed, market.Code)
			log.Printf("[ERROR] market %s skipped: %v", market.Code, err)
			continue
		}
		rows = append(rows, marketRows...)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no market rows were generated from configured markets")
	}
	if len(failed) > 0 {
		log.Printf("[WARN] markets skipped: %v", failed)
	}

	// 2. Prepare paths.
	outDir := cfg.Output.Dir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	dbPath := filepath.Join(outDir, cfg.History.DBName)
	dbZipPath := filepath.Join(outDir, cfg.History.ZipName)
	snapshotPath := filepath.Join(outDir, "daily_market.db")
	snapshotZipPath := filepath.Join(outDir, "daily_market.db.zip")
	topMoversPath := filepath.Join(outDir, "top_movers.json")
	pricesIndexPath := filepath.Join(outDir, "prices_index.json")

	// 3. Fetch the published reference store, if configured and absent.
	if cfg.History.URL != "" {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
			if err := archive.FetchDB(cfg.History.URL, dbPath, timeout); err != nil {
				log.Printf("[WARN] could not fetch reference store (starting fresh): %v", err)
			}
		}
	}

	// 4. Open the store and rank inside one transaction scope.
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	tx, err := st.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var source rank.ReferenceSource
	if cfg.History.Mode == config.ModeRolling {
		source = &anchor.Resolver{
			Store:         tx.History(),
			Fetcher:       fetcher,
			BacktrackDays: cfg.History.BacktrackDays,
		}
	} else {
		source, err = store.NewSlotSource(tx.Milestone())
		if err != nil {
			return err
		}
	}

	engine := &rank.Engine{
		Source:       source,
		TopLimit:     cfg.TopLimit,
		MinVolume:    cfg.History.MinVolume,
		FilterVolume: cfg.History.Mode == config.ModeRolling,
	}
	results, err := engine.Rank(ctx, markets, rows)
	if err != nil {
		return err
	}

	if err := payload.WriteJSON(topMoversPath, payload.BuildTopMovers(results, len(rows))); err != nil {
		return err
	}

	// 5. Update the reference store (after computing movers).
	nowUTC := time.Now().UTC().Format(time.RFC3339)
	if cfg.History.Mode == config.ModeRolling {
		if err := updateHistory(tx.History(), cfg, rows, today, nowUTC, runID); err != nil {
			return err
		}
	} else {
		if err := refreshSlots(tx.Milestone(), rows, today, nowUTC, runID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	// Close before compressing so the WAL is checkpointed into the file.
	if err := st.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	// 6. Publish artifacts.
	if err := store.WriteSnapshot(snapshotPath, rows, markets, runID); err != nil {
		return err
	}
	if err := archive.Compress(snapshotPath, snapshotZipPath); err != nil {
		return err
	}
	if err := archive.Compress(dbPath, dbZipPath); err != nil {
		return err
	}
	if err := payload.WriteJSON(pricesIndexPath, payload.BuildPricesIndex(rows, markets)); err != nil {
		return err
	}

	// 7. Cleanup uncompressed databases.
	if !cfg.Output.KeepUncompressedDB {
		for _, p := range []string{snapshotPath, dbPath} {
			if err := os.Remove(p); err == nil {
				log.Printf("[INFO] removed uncompressed file: %s", p)
			}
		}
	}

	log.Printf("[INFO] snapshot run %s completed successfully", runID)
	return nil
}

// updateHistory upserts today's rows into the rolling history and prunes
// rows older than any window could ever reach. The cutoff derives from the
// run's own reference date, not the wall clock, so a late-running process
// does not over-prune.
func updateHistory(h *store.History, cfg *config.Config, rows []model.PriceRow, today, nowUTC, runID string) error {
	if err := h.Upsert(rows); err != nil {
		return err
	}

	dates := make([]string, len(rows))
	for i, r := range rows {
		dates[i] = r.AsOfDate
	}
	refDate := dateutil.MostFrequent(dates)
	if refDate == "" {
		refDate = today
	}

	maxLookback := 0
	for _, tf := range model.Timeframes {
		if d := tf.LookbackDays(); d > maxLookback {
			maxLookback = d
		}
	}
	cutoff, err := dateutil.DaysAgo(refDate, maxLookback+cfg.History.BacktrackDays+cfg.History.PruneMarginDays)
	if err != nil {
		return err
	}
	pruned, err := h.Prune(cutoff)
	if err != nil {
		return err
	}
	log.Printf("[INFO] history pruned: %d rows before %s", pruned, cutoff)

	if err := h.SetMeta("last_reference_date", refDate); err != nil {
		return err
	}
	if err := h.SetMeta("last_run_utc", nowUTC); err != nil {
		return err
	}
	return h.SetMeta("last_run_id", runID)
}

// refreshSlots replaces every milestone slot whose calendar age reached its
// target window. The age check uses the run's wall-clock date, matching the
// published pipeline's observed behavior.
func refreshSlots(m *store.Milestone, rows []model.PriceRow, today, nowUTC, runID string) error {
	meta, err := m.Meta()
	if err != nil {
		return err
	}

	for _, slot := range model.Slots {
		slotDate := meta[fmt.Sprintf("%s_date", slot)]
		age := 0
		needsUpdate := slotDate == ""
		if !needsUpdate {
			age, err = dateutil.DaysBetween(slotDate, today)
			if err != nil {
				return err
			}
			needsUpdate = age >= slot.TargetDays()
		}
		if needsUpdate {
			if err := m.ReplaceSlot(slot, rows, today); err != nil {
				return err
			}
			continue
		}
		log.Printf("[INFO] milestone slot %q is %d days old, no update needed", slot, age)
	}

	if err := m.SetMeta("last_run_utc", nowUTC); err != nil {
		return err
	}
	return m.SetMeta("last_run_id", runID)
}
