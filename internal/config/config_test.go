package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	// Defaults target scan mode without persistence dependencies.
	cfg.Scan.PersistEnabled = false
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := Defaults()
	cfg.Scan.PersistEnabled = false
	cfg.Trading.EntryThreshold = -0.0005
	cfg.Trading.ExitThreshold = -0.0015

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry_threshold")

	// Equal thresholds leave no hysteresis gap either.
	cfg.Trading.EntryThreshold = -0.001
	cfg.Trading.ExitThreshold = -0.001
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Scan.PersistEnabled = false
	cfg.Mode = "yolo"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yolo")
}

func TestValidateRequiresVenueForScan(t *testing.T) {
	cfg := Defaults()
	cfg.Scan.PersistEnabled = false
	cfg.Venues.Binance.Enabled = false
	cfg.Venues.Bybit.Enabled = false
	cfg.Venues.OKX.Enabled = false
	cfg.Venues.Hyperliquid.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venues")
}

func TestValidateRequiresWhitelistForScan(t *testing.T) {
	cfg := Defaults()
	cfg.Scan.PersistEnabled = false
	cfg.Trading.Whitelist = nil

	require.Error(t, cfg.Validate())
}

func TestValidateBacktestParams(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Scan.PersistEnabled = false
	cfg.Backtest.Symbols = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backtest")
}

func TestValidatePostgresOnlyWhenPersisting(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	cfg.Postgres.Host = ""
	cfg.Postgres.DSN = ""

	require.Error(t, cfg.Validate())

	cfg.Scan.PersistEnabled = false
	require.NoError(t, cfg.Validate())
}

func TestCostModelFallsBackForUnknownVenue(t *testing.T) {
	cfg := Defaults()
	model := cfg.CostModel()

	fees := model.FeesFor("binance")
	assert.Equal(t, 0.0004, fees.Taker)

	unknown := model.FeesFor("unlisted")
	assert.Positive(t, unknown.Taker)
}
