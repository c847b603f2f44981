package executor

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fundarb/internal/domain"
	"github.com/alanyoungcy/fundarb/internal/exchange"
)

func testCoordinator(t *testing.T) (*Coordinator, *exchange.SimulatedClient, *exchange.SimulatedClient) {
	t.Helper()
	logger := slog.Default()
	binance := exchange.NewSimulatedClient("binance", 10000, 100, logger)
	bybit := exchange.NewSimulatedClient("bybit", 10000, 100, logger)
	coord := NewCoordinator(map[string]exchange.Client{
		"binance": binance,
		"bybit":   bybit,
	}, 0.01, logger)
	return coord, binance, bybit
}

func openParams() OpenParams {
	return OpenParams{
		LongExchange:  "binance",
		ShortExchange: "bybit",
		Symbol:        "SOLUSDT",
		BaseAsset:     "SOL",
		NotionalUSD:   1000,
		TargetRate:    -0.002,
		RefPrice:      100,
	}
}

func TestOpenFillsBothLegs(t *testing.T) {
	coord, binance, bybit := testCoordinator(t)

	pos, err := coord.Open(context.Background(), openParams())
	require.NoError(t, err)
	require.NotNil(t, pos)

	assert.Equal(t, domain.SideLong, pos.LongLeg.Side)
	assert.Equal(t, domain.SideShort, pos.ShortLeg.Side)
	assert.InDelta(t, 10.0, pos.LongLeg.Size, 1e-12)
	assert.InDelta(t, pos.LongLeg.Size, pos.ShortLeg.Size, 1e-12)
	assert.True(t, pos.CheckDeltaNeutral(0.01))

	longPos, err := binance.GetPosition(context.Background(), "SOLUSDT")
	require.NoError(t, err)
	assert.Equal(t, domain.SideLong, longPos.Side)
	shortPos, err := bybit.GetPosition(context.Background(), "SOLUSDT")
	require.NoError(t, err)
	assert.Equal(t, domain.SideShort, shortPos.Side)
}

func TestOpenShortLegFailureIsLegImbalance(t *testing.T) {
	coord, _, bybit := testCoordinator(t)
	bybit.FailNext = true

	pos, err := coord.Open(context.Background(), openParams())
	assert.Nil(t, pos, "a one-sided fill must not yield a completed position")

	var imbalance *domain.LegImbalanceError
	require.ErrorAs(t, err, &imbalance)
	assert.NoError(t, imbalance.Long.Err)
	assert.Error(t, imbalance.Short.Err)
	assert.NotEmpty(t, imbalance.PositionID)

	// The filled long leg is retained for explicit recovery.
	partial, err := coord.Position(imbalance.PositionID)
	require.NoError(t, err)
	assert.NotZero(t, partial.LongLeg.Size)
	assert.Zero(t, partial.ShortLeg.Size)

	require.NoError(t, coord.UnwindLeg(context.Background(), imbalance.PositionID, domain.SideLong))
	_, err = coord.Position(imbalance.PositionID)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestOpenBothLegsFailedIsPlainError(t *testing.T) {
	coord, binance, bybit := testCoordinator(t)
	binance.FailNext = true
	bybit.FailNext = true

	pos, err := coord.Open(context.Background(), openParams())
	assert.Nil(t, pos)
	require.Error(t, err)

	var imbalance *domain.LegImbalanceError
	assert.False(t, errors.As(err, &imbalance), "nothing filled, nothing to unwind")
	assert.Empty(t, coord.OpenPositions())
}

func TestCloseEmitsClosedTrade(t *testing.T) {
	coord, binance, bybit := testCoordinator(t)

	pos, err := coord.Open(context.Background(), openParams())
	require.NoError(t, err)

	// Two funding periods at the target rate before closing.
	require.NoError(t, coord.AccrueFunding(pos.ID, -0.002, 0.000274))
	require.NoError(t, coord.AccrueFunding(pos.ID, -0.002, 0.000274))

	trade, err := coord.Close(context.Background(), pos.ID)
	require.NoError(t, err)

	assert.Equal(t, pos.ID, trade.PositionID)
	assert.InDelta(t, 0.002*1000*2, trade.FundingCollected, 1e-9)
	assert.InDelta(t, 0.000274*1000*2, trade.TotalCosts, 1e-9)
	assert.InDelta(t, trade.FundingCollected-trade.TotalCosts, trade.PnL, 1e-12)

	// Both venues are flat and the table entry is gone.
	_, err = binance.GetPosition(context.Background(), "SOLUSDT")
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
	_, err = bybit.GetPosition(context.Background(), "SOLUSDT")
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
	_, err = coord.Position(pos.ID)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestCloseLegFailureKeepsPositionOpen(t *testing.T) {
	coord, _, bybit := testCoordinator(t)

	pos, err := coord.Open(context.Background(), openParams())
	require.NoError(t, err)

	bybit.FailNext = true
	_, err = coord.Close(context.Background(), pos.ID)

	var imbalance *domain.LegImbalanceError
	require.ErrorAs(t, err, &imbalance)

	kept, err := coord.Position(pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusOpen, kept.Status)

	// A retry once the venue recovers succeeds.
	_, err = coord.Close(context.Background(), pos.ID)
	require.NoError(t, err)
}

func TestCloseUnknownPosition(t *testing.T) {
	coord, _, _ := testCoordinator(t)
	_, err := coord.Close(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestOpenRejectsBadParams(t *testing.T) {
	coord, _, _ := testCoordinator(t)

	p := openParams()
	p.NotionalUSD = 0
	_, err := coord.Open(context.Background(), p)
	assert.Error(t, err)

	p = openParams()
	p.LongExchange = "okx"
	_, err = coord.Open(context.Background(), p)
	assert.Error(t, err)
}
