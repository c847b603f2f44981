package lifecycle

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

func testConfig() EngineConfig {
	return EngineConfig{
		EntryThreshold:  -0.0015,
		ExitThreshold:   -0.0005,
		EntryCost:       0.001,
		ExitCost:        0.0004,
		Slippage:        0.001,
		BorrowPerPeriod: 0.000274,
		PositionSize:    1000,
	}
}

func series(rates ...float64) []domain.FundingObservation {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]domain.FundingObservation, len(rates))
	for i, r := range rates {
		obs[i] = domain.FundingObservation{
			Exchange:  "binance",
			Symbol:    "SOLUSDT",
			BaseAsset: "SOL",
			Rate:      r,
			Timestamp: start.Add(time.Duration(i) * domain.FundingPeriod),
		}
	}
	return obs
}

func TestNewEngineRejectsInvertedThresholds(t *testing.T) {
	cfg := testConfig()
	cfg.EntryThreshold = -0.0005
	cfg.ExitThreshold = -0.0015
	_, err := NewEngine("SOLUSDT", cfg, slog.Default())
	require.Error(t, err)

	// Equal thresholds thrash just the same.
	cfg.ExitThreshold = cfg.EntryThreshold
	_, err = NewEngine("SOLUSDT", cfg, slog.Default())
	require.Error(t, err)
}

func TestSingleOpenCloseCycle(t *testing.T) {
	// Entry at index 0 (rate below -0.0015), funding collected at indexes 1
	// and 2, close at index 2 (rate above -0.0005), holding 2 periods.
	report, err := Replay("SOLUSDT", series(-0.002, -0.0018, -0.0002, 0.0), testConfig(), slog.Default())
	require.NoError(t, err)

	require.Len(t, report.Trades, 1)
	trade := report.Trades[0]
	assert.Equal(t, 2, trade.PeriodsHeld)
	assert.InDelta(t, -0.002, trade.EntryRate, 1e-12)

	// Funding: (0.0018 + 0.0002) × 1000.
	assert.InDelta(t, 2.0, trade.FundingCollected, 1e-9)
	// Costs: (entry + slippage + exit) × 1000 + borrow × 1000 × 2 periods.
	wantCosts := (0.001+0.001+0.0004)*1000 + 0.000274*1000*2
	assert.InDelta(t, wantCosts, trade.TotalCosts, 1e-9)
	assert.InDelta(t, trade.FundingCollected-trade.TotalCosts, trade.PnL, 1e-12)

	assert.Nil(t, report.StillOpen)
	assert.Equal(t, 4, report.DataPoints)
}

func TestNeverCrossingSeriesProducesZeroTrades(t *testing.T) {
	report, err := Replay("SOLUSDT", series(-0.001, -0.0012, -0.0008, -0.0011), testConfig(), slog.Default())
	require.NoError(t, err)

	assert.Empty(t, report.Trades)
	assert.Nil(t, report.StillOpen)

	// Aggregates are defined neutral values, never a division fault.
	assert.Zero(t, report.WinRatePct)
	assert.Zero(t, report.AvgHoldPeriods)
	assert.Zero(t, report.PnLPerTrade)
	assert.Zero(t, report.TotalPnL)
}

func TestEmptySeriesIsNoData(t *testing.T) {
	_, err := Replay("SOLUSDT", nil, testConfig(), slog.Default())
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestStillOpenPositionIsReportedSeparately(t *testing.T) {
	// Rate enters at index 1 and never normalizes before the series ends.
	report, err := Replay("SOLUSDT", series(-0.001, -0.002, -0.0019, -0.0021), testConfig(), slog.Default())
	require.NoError(t, err)

	assert.Empty(t, report.Trades, "an unclosed position must not count as completed")
	require.NotNil(t, report.StillOpen)
	assert.Equal(t, 1, report.StillOpen.EntryIndex)
	assert.Equal(t, 2, report.StillOpen.PeriodsHeld)
	assert.InDelta(t, (0.0019+0.0021)*1000, report.StillOpen.FundingCollected, 1e-9)
}

func TestHysteresisHoldsThroughMidBandRates(t *testing.T) {
	// Rates between the two thresholds neither open nor close a position.
	eng, err := NewEngine("SOLUSDT", testConfig(), slog.Default())
	require.NoError(t, err)

	at := time.Now().UTC()
	assert.Nil(t, eng.Step(-0.001, 0, at)) // mid-band while idle: stays idle
	assert.Equal(t, StateIdle, eng.State())

	assert.Nil(t, eng.Step(-0.002, 1, at)) // opens
	assert.Equal(t, StateOpen, eng.State())

	assert.Nil(t, eng.Step(-0.001, 2, at)) // mid-band while open: stays open
	assert.Equal(t, StateOpen, eng.State())

	trade := eng.Step(-0.0001, 3, at) // above exit: closes
	require.NotNil(t, trade)
	assert.Equal(t, 2, trade.PeriodsHeld)
	assert.Equal(t, StateIdle, eng.State())
}

func TestMultipleCyclesInOneSeries(t *testing.T) {
	rates := []float64{
		-0.002, -0.0001, // open, close (1 period)
		-0.001,          // idle
		-0.0025, -0.0018, 0.0001, // open, hold, close (2 periods)
	}
	report, err := Replay("SOLUSDT", series(rates...), testConfig(), slog.Default())
	require.NoError(t, err)

	require.Len(t, report.Trades, 2)
	assert.Equal(t, 1, report.Trades[0].PeriodsHeld)
	assert.Equal(t, 2, report.Trades[1].PeriodsHeld)
	assert.InDelta(t, 1.5, report.AvgHoldPeriods, 1e-12)
}

func TestSummarizeWinRate(t *testing.T) {
	trades := []domain.ClosedTrade{
		{PnL: 5, PeriodsHeld: 2},
		{PnL: -1, PeriodsHeld: 4},
		{PnL: 2, PeriodsHeld: 3},
	}
	report := Summarize("SOLUSDT", trades, 1000)

	assert.InDelta(t, 66.666, report.WinRatePct, 0.01)
	assert.InDelta(t, 3.0, report.AvgHoldPeriods, 1e-12)
	assert.InDelta(t, 2.0, report.PnLPerTrade, 1e-12)
	assert.InDelta(t, 6.0, report.TotalPnL, 1e-12)
}
