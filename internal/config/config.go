// Package config defines the top-level configuration for the funding
// arbitrage scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FUNDARB_* environment
// variables. All values are read once at startup and treated as immutable
// for the run's duration.
type Config struct {
	Trading  TradingConfig  `toml:"trading"`
	Costs    CostsConfig    `toml:"costs"`
	Venues   VenuesConfig   `toml:"venues"`
	Scan     ScanConfig     `toml:"scan"`
	Backtest BacktestConfig `toml:"backtest"`
	Live     LiveConfig     `toml:"live"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// TradingConfig holds opportunity thresholds, lifecycle thresholds, and
// position sizing limits.
type TradingConfig struct {
	// MinNetYieldPct is the minimum annualized net yield (percent, after
	// costs) for an observation to rank as an opportunity.
	MinNetYieldPct float64 `toml:"min_net_yield_pct"`
	// MinFundingRate is the per-period funding rate floor; rates above it
	// (not negative enough) are rejected.
	MinFundingRate float64 `toml:"min_funding_rate"`
	// EntryThreshold / ExitThreshold drive the lifecycle state machine.
	// EntryThreshold must be strictly below ExitThreshold: the hysteresis
	// gap prevents thrashing on noisy rates.
	EntryThreshold float64 `toml:"entry_threshold"`
	ExitThreshold  float64 `toml:"exit_threshold"`
	// HoldPeriods is the assumed minimum hold used to amortize entry/exit
	// costs in the scorer.
	HoldPeriods    int      `toml:"hold_periods"`
	MaxPositionUSD float64  `toml:"max_position_usd"`
	TotalCapital   float64  `toml:"total_capital_usd"`
	MaxPositions   int      `toml:"max_positions"`
	DeltaTolerance float64  `toml:"delta_tolerance"`
	Whitelist      []string `toml:"whitelist"`
}

// FeeConfig is one venue's maker/taker fee pair.
type FeeConfig struct {
	Maker float64 `toml:"maker"`
	Taker float64 `toml:"taker"`
}

// CostsConfig holds the fee schedule and borrow assumptions.
type CostsConfig struct {
	Fees             map[string]FeeConfig `toml:"fees"`
	SlippageEstimate float64              `toml:"slippage_estimate"`
	DefaultBorrowAPR float64              `toml:"default_borrow_apr"`
}

// VenueConfig enables one venue's feed adapter.
type VenueConfig struct {
	Enabled bool     `toml:"enabled"`
	Timeout duration `toml:"timeout"`
}

// VenuesConfig holds per-venue adapter settings.
type VenuesConfig struct {
	Binance     VenueConfig `toml:"binance"`
	Bybit       VenueConfig `toml:"bybit"`
	OKX         VenueConfig `toml:"okx"`
	Hyperliquid VenueConfig `toml:"hyperliquid"`
}

// ScanConfig holds scan/monitor loop parameters.
type ScanConfig struct {
	Interval        duration `toml:"interval"`
	AlertMinYield   float64  `toml:"alert_min_net_yield_pct"`
	TopN            int      `toml:"top_n"`
	PersistEnabled  bool     `toml:"persist_enabled"`
}

// BacktestConfig holds historical replay parameters.
type BacktestConfig struct {
	Symbols         []string `toml:"symbols"`
	Days            int      `toml:"days"`
	PositionSizeUSD float64  `toml:"position_size_usd"`
}

// LiveConfig selects the venue and symbol for live lifecycle monitoring.
type LiveConfig struct {
	Venue  string `toml:"venue"`
	Symbol string `toml:"symbol"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for snapshot
// archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls archival of aged scan snapshots to object storage.
type ArchiveConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the same values as
// config.example.toml. Fee defaults follow the venues' published VIP-0 perp
// schedules.
func Defaults() Config {
	return Config{
		Trading: TradingConfig{
			MinNetYieldPct: 50.0,
			MinFundingRate: -0.0015,
			EntryThreshold: -0.0015,
			ExitThreshold:  -0.0005,
			HoldPeriods:    3,
			MaxPositionUSD: 1000.0,
			TotalCapital:   10000.0,
			MaxPositions:   5,
			DeltaTolerance: 0.01,
			Whitelist: []string{
				"BTC", "ETH", "SOL", "DOGE", "XRP", "ADA", "AVAX", "LINK",
				"DOT", "MATIC", "UNI", "ATOM", "LTC", "BCH", "APT", "ARB",
				"OP", "INJ", "SUI", "SEI", "TIA", "JUP", "PYTH", "JTO",
				"WIF", "BONK", "PEPE", "SHIB", "FIL", "NEAR", "RENDER",
			},
		},
		Costs: CostsConfig{
			Fees: map[string]FeeConfig{
				"binance":     {Maker: 0.0002, Taker: 0.0004},
				"bybit":       {Maker: 0.0002, Taker: 0.00055},
				"hyperliquid": {Maker: 0.0002, Taker: 0.0005},
				"okx":         {Maker: 0.0002, Taker: 0.0005},
			},
			SlippageEstimate: 0.0005,
			DefaultBorrowAPR: 0.30,
		},
		Venues: VenuesConfig{
			Binance:     VenueConfig{Enabled: true, Timeout: duration{10 * time.Second}},
			Bybit:       VenueConfig{Enabled: true, Timeout: duration{10 * time.Second}},
			OKX:         VenueConfig{Enabled: true, Timeout: duration{10 * time.Second}},
			Hyperliquid: VenueConfig{Enabled: true, Timeout: duration{10 * time.Second}},
		},
		Scan: ScanConfig{
			Interval:       duration{5 * time.Minute},
			AlertMinYield:  30.0,
			TopN:           5,
			PersistEnabled: true,
		},
		Backtest: BacktestConfig{
			Symbols:         []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
			Days:            60,
			PositionSizeUSD: 1000.0,
		},
		Live: LiveConfig{
			Venue:  "bybit",
			Symbol: "SOLUSDT",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "fundarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "fundarb-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "leg_imbalance", "position_open"},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// CostModel builds the immutable domain cost model from the configured fee
// schedule.
func (c *Config) CostModel() domain.CostModel {
	fees := make(map[string]domain.FeeSchedule, len(c.Costs.Fees))
	for venue, f := range c.Costs.Fees {
		fees[venue] = domain.FeeSchedule{Maker: f.Maker, Taker: f.Taker}
	}
	return domain.CostModel{
		Fees:             fees,
		SlippageEstimate: c.Costs.SlippageEstimate,
		DefaultBorrowAPR: c.Costs.DefaultBorrowAPR,
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":     true,
	"monitor":  true,
	"backtest": true,
	"analyze":  true,
	"execute":  true,
	"live":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found. Threshold inversion is rejected here
// because it is fatal: entering and exiting on the same rate would make the
// lifecycle state machine thrash.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, monitor, backtest, analyze, execute, live)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Trading thresholds.
	if c.Trading.EntryThreshold >= c.Trading.ExitThreshold {
		errs = append(errs, fmt.Sprintf(
			"trading: entry_threshold (%g) must be strictly below exit_threshold (%g)",
			c.Trading.EntryThreshold, c.Trading.ExitThreshold,
		))
	}
	if c.Trading.HoldPeriods < 1 {
		errs = append(errs, "trading: hold_periods must be >= 1")
	}
	if c.Trading.MaxPositionUSD <= 0 {
		errs = append(errs, "trading: max_position_usd must be > 0")
	}
	if c.Trading.MaxPositions < 1 {
		errs = append(errs, "trading: max_positions must be >= 1")
	}
	if c.Trading.DeltaTolerance <= 0 || c.Trading.DeltaTolerance >= 1 {
		errs = append(errs, "trading: delta_tolerance must be in (0, 1)")
	}
	if needsWhitelist(c.Mode) && len(c.Trading.Whitelist) == 0 {
		errs = append(errs, "trading: whitelist must not be empty for mode "+c.Mode)
	}

	// Costs.
	if c.Costs.SlippageEstimate < 0 {
		errs = append(errs, "costs: slippage_estimate must be >= 0")
	}
	if c.Costs.DefaultBorrowAPR < 0 {
		errs = append(errs, "costs: default_borrow_apr must be >= 0")
	}

	// At least one venue must be enabled for scanning modes.
	if needsVenues(c.Mode) {
		if !c.Venues.Binance.Enabled && !c.Venues.Bybit.Enabled &&
			!c.Venues.OKX.Enabled && !c.Venues.Hyperliquid.Enabled {
			errs = append(errs, "venues: at least one venue must be enabled for mode "+c.Mode)
		}
	}

	// Scan loop.
	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be > 0")
	}
	if c.Scan.TopN < 1 {
		errs = append(errs, "scan: top_n must be >= 1")
	}

	// Backtest.
	if c.Mode == "backtest" {
		if len(c.Backtest.Symbols) == 0 {
			errs = append(errs, "backtest: symbols must not be empty")
		}
		if c.Backtest.Days < 1 {
			errs = append(errs, "backtest: days must be >= 1")
		}
		if c.Backtest.PositionSizeUSD <= 0 {
			errs = append(errs, "backtest: position_size_usd must be > 0")
		}
	}

	// Live.
	if c.Mode == "live" && c.Live.Symbol == "" {
		errs = append(errs, "live: symbol must not be empty")
	}

	// Postgres, only for modes that persist.
	if needsPostgres(c.Mode) && c.Scan.PersistEnabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	// Redis.
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archival.
	if c.Archive.Enabled {
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1 when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archival is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when archival is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// needsWhitelist returns true for modes that run the opportunity scorer.
func needsWhitelist(mode string) bool {
	switch mode {
	case "scan", "monitor", "analyze":
		return true
	default:
		return false
	}
}

// needsVenues returns true for modes that fetch live venue data.
func needsVenues(mode string) bool {
	switch mode {
	case "scan", "monitor", "analyze", "live":
		return true
	default:
		return false
	}
}

// needsPostgres returns true for modes that persist snapshots or trades.
func needsPostgres(mode string) bool {
	switch mode {
	case "scan", "monitor", "backtest":
		return true
	default:
		return false
	}
}
