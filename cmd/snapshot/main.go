package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"MarketMovers/internal/collector"
	"MarketMovers/internal/config"
	"MarketMovers/internal/pipeline"
)

func main() {
	log.SetFlags(log.LstdFlags)
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath        string
		outputDir      string
		markets        string
		topLimit       int
		maxRetries     int
		timeoutSeconds int
		logFile        string
		mode           string
		dbName         string
		dbURL          string
		backtrackDays  int
		minVolume      int64
		keepDB         bool
		cronExpr       string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build the daily market movers snapshot",
		Long: `Download EODHD bulk daily data, compute top movers across the 1D/5D/1M/1Y
windows from the persisted reference store, and publish JSON payloads plus
compressed SQLite artifacts.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional; real environments set variables directly.
			_ = godotenv.Load()

			if cfgPath == "" {
				cfgPath = "configs/config.yaml"
				if v := os.Getenv("CONFIG_PATH"); v != "" {
					cfgPath = v
				}
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("output-dir") {
				cfg.Output.Dir = outputDir
			}
			if flags.Changed("markets") {
				cfg.Markets = markets
			}
			if flags.Changed("top-limit") {
				cfg.TopLimit = topLimit
			}
			if flags.Changed("max-retries") {
				cfg.API.MaxRetries = maxRetries
			}
			if flags.Changed("timeout-seconds") {
				cfg.API.TimeoutSeconds = timeoutSeconds
			}
			if flags.Changed("log-file") {
				cfg.Output.LogFile = logFile
			}
			if flags.Changed("mode") {
				cfg.History.Mode = mode
			}
			if flags.Changed("db-name") {
				cfg.History.DBName = dbName
				cfg.History.ZipName = dbName + ".zip"
			}
			if flags.Changed("db-url") {
				cfg.History.URL = dbURL
			}
			if flags.Changed("backtrack-days") {
				cfg.History.BacktrackDays = backtrackDays
			}
			if flags.Changed("min-volume") {
				cfg.History.MinVolume = minVolume
			}
			if flags.Changed("keep-uncompressed-db") {
				cfg.Output.KeepUncompressedDB = keepDB
			}
			if flags.Changed("cron") {
				cfg.Schedule.DailyCron = cronExpr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}

			apiKey := os.Getenv(cfg.API.KeyEnv)
			if apiKey == "" {
				return fmt.Errorf("missing API key in environment variable %q", cfg.API.KeyEnv)
			}

			closeLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			fetcher := collector.NewEODHDFetcher(
				cfg.API.BaseURL,
				apiKey,
				time.Duration(cfg.API.TimeoutSeconds)*time.Second,
				cfg.API.MaxRetries,
			)
			log.Printf("[INFO] data source: %s", fetcher.Name())

			if cfg.Schedule.DailyCron == "" {
				return pipeline.Run(cmd.Context(), cfg, fetcher)
			}
			return runDaemon(cfg, fetcher)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Configuration file path")
	cmd.Flags().StringVar(&outputDir, "output-dir", "dist/market-data", "Directory for generated files")
	cmd.Flags().StringVar(&markets, "markets", "", "Comma-separated EODHD market codes (example: US,LSE,XETRA)")
	cmd.Flags().IntVar(&topLimit, "top-limit", 20, "Number of gainers/losers to keep per window")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 4, "Maximum attempts for EODHD downloads")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout-seconds", 90, "HTTP timeout in seconds for EODHD requests")
	cmd.Flags().StringVar(&logFile, "log-file", "pipeline.log", "Log filename (relative to output dir) or absolute path")
	cmd.Flags().StringVar(&mode, "mode", "", "History mode: milestone or rolling")
	cmd.Flags().StringVar(&dbName, "db-name", "", "Filename for the reference SQLite database")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "URL of the previously published reference database .zip")
	cmd.Flags().IntVar(&backtrackDays, "backtrack-days", 5, "Extra calendar days the anchor resolver may search past the target date")
	cmd.Flags().Int64Var(&minVolume, "min-volume", 0, "Minimum volume for ranking eligibility (rolling mode)")
	cmd.Flags().BoolVar(&keepDB, "keep-uncompressed-db", false, "Keep uncompressed SQLite files next to their .zip counterparts")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (with seconds); runs as a daemon when set")

	return cmd
}

// setupLogging mirrors logs to stdout and the pipeline log file.
func setupLogging(cfg *config.Config) (func(), error) {
	logPath := cfg.Output.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(cfg.Output.Dir, logPath)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return func() {
		log.SetOutput(os.Stdout)
		f.Close()
	}, nil
}

// runDaemon schedules the snapshot build on a cron cadence and blocks until
// SIGINT or SIGTERM.
func runDaemon(cfg *config.Config, fetcher collector.Fetcher) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cfg.Schedule.DailyCron, func() {
		if err := pipeline.Run(ctx, cfg, fetcher); err != nil {
			log.Printf("[ERROR] scheduled run failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("register cron task: %w", err)
	}
	c.Start()
	defer c.Stop()
	log.Printf("[INFO] daemon started, schedule %q", cfg.Schedule.DailyCron)

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing snapshot build now")
		go func() {
			if err := pipeline.Run(ctx, cfg, fetcher); err != nil {
				log.Printf("[ERROR] startup run failed: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[INFO] shutdown signal received, stopping")
	return nil
}
