package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"MarketMovers/internal/model"
)

// History modes.
const (
	ModeMilestone = "milestone"
	ModeRolling   = "rolling"
)

// Config holds all application configuration.
type Config struct {
	API struct {
		KeyEnv         string `yaml:"key_env"`
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxRetries     int    `yaml:"max_retries"`
	} `yaml:"api"`
	Markets  string `yaml:"markets"`
	TopLimit int    `yaml:"top_limit"`
	Output   struct {
		Dir                string `yaml:"dir"`
		LogFile            string `yaml:"log_file"`
		KeepUncompressedDB bool   `yaml:"keep_uncompressed_db"`
	} `yaml:"output"`
	History struct {
		Mode            string `yaml:"mode"`
		DBName          string `yaml:"db_name"`
		ZipName         string `yaml:"zip_name"`
		URL             string `yaml:"url"`
		BacktrackDays   int    `yaml:"backtrack_days"`
		MinVolume       int64  `yaml:"min_volume"`
		PruneMarginDays int    `yaml:"prune_margin_days"`
	} `yaml:"history"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is fine: everything has a default
// except the API key, which always stays in the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("EODHD_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("MARKETS"); v != "" {
		cfg.Markets = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("HISTORY_MODE"); v != "" {
		cfg.History.Mode = v
	}
	if v := os.Getenv("HISTORY_DB_URL"); v != "" {
		cfg.History.URL = v
	}
	if v := os.Getenv("TOP_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TopLimit = n
		}
	}
	if v := os.Getenv("MIN_VOLUME"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.History.MinVolume = n
		}
	}
	if v := os.Getenv("DAILY_CRON"); v != "" {
		cfg.Schedule.DailyCron = v
	}

	// Defaults
	if cfg.API.KeyEnv == "" {
		cfg.API.KeyEnv = "EODHD_API_KEY"
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://eodhd.com/api"
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 90
	}
	if cfg.API.MaxRetries == 0 {
		cfg.API.MaxRetries = 4
	}
	if cfg.Markets == "" {
		cfg.Markets = model.DefaultMarkets
	}
	if cfg.TopLimit == 0 {
		cfg.TopLimit = 20
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "dist/market-data"
	}
	if cfg.Output.LogFile == "" {
		cfg.Output.LogFile = "pipeline.log"
	}
	if cfg.History.Mode == "" {
		cfg.History.Mode = ModeMilestone
	}
	if cfg.History.DBName == "" {
		if cfg.History.Mode == ModeRolling {
			cfg.History.DBName = "price_history.db"
		} else {
			cfg.History.DBName = "milestone_prices.db"
		}
	}
	if cfg.History.ZipName == "" {
		cfg.History.ZipName = cfg.History.DBName + ".zip"
	}
	if cfg.History.BacktrackDays == 0 {
		cfg.History.BacktrackDays = 5
	}
	if cfg.History.PruneMarginDays == 0 {
		cfg.History.PruneMarginDays = 7
	}

	return cfg, nil
}

// Validate checks that all required fields are consistent.
func (c *Config) Validate() error {
	if c.History.Mode != ModeMilestone && c.History.Mode != ModeRolling {
		return fmt.Errorf("history.mode must be %q or %q", ModeMilestone, ModeRolling)
	}
	if c.TopLimit <= 0 {
		return fmt.Errorf("top_limit must be positive")
	}
	if c.History.BacktrackDays < 0 {
		return fmt.Errorf("history.backtrack_days must not be negative")
	}
	if c.History.MinVolume < 0 {
		return fmt.Errorf("history.min_volume must not be negative")
	}
	if len(model.ResolveMarkets(c.Markets)) == 0 {
		return fmt.Errorf("markets must contain at least one valid code")
	}
	return nil
}
