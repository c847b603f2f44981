package scanner

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

func TestExtractBaseAsset(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"BTCUSDT", "BTC"},
		{"ETHUSD", "ETH"},
		{"SOLPERP", "SOL"},
		// The most specific suffix must win: stripping "USDT" first would
		// leave "BTC-" behind.
		{"BTC-USDT-SWAP", "BTC"},
		{"ETH-USD-SWAP", "ETH"},
		// Bare asset names (Hyperliquid) pass through unchanged.
		{"WIF", "WIF"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractBaseAsset(tt.symbol), "symbol %q", tt.symbol)
	}
}

func TestNormalizeValidRecord(t *testing.T) {
	n := NewNormalizer(slog.Default())
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	obs, ok := n.Normalize(domain.RawRateRecord{Symbol: "SOLUSDT", Rate: "-0.0021"}, "binance", at)
	require.True(t, ok)
	assert.Equal(t, "binance", obs.Exchange)
	assert.Equal(t, "SOLUSDT", obs.Symbol)
	assert.Equal(t, "SOL", obs.BaseAsset)
	assert.InDelta(t, -0.0021, obs.Rate, 1e-12)
	assert.Equal(t, at, obs.Timestamp)
	assert.EqualValues(t, 0, n.Dropped())
}

func TestNormalizeDropsMalformedRecords(t *testing.T) {
	n := NewNormalizer(slog.Default())
	at := time.Now().UTC()

	for _, raw := range []domain.RawRateRecord{
		{Symbol: "BTCUSDT", Rate: ""},
		{Symbol: "BTCUSDT", Rate: "not-a-number"},
		{Symbol: "", Rate: "-0.001"},
	} {
		_, ok := n.Normalize(raw, "bybit", at)
		assert.False(t, ok, "record %+v should be dropped", raw)
	}
	assert.EqualValues(t, 3, n.Dropped())
}

func TestNormalizeBatchSurvivesMalformedEntries(t *testing.T) {
	n := NewNormalizer(slog.Default())
	raws := []domain.RawRateRecord{
		{Symbol: "BTCUSDT", Rate: "-0.001"},
		{Symbol: "ETHUSDT", Rate: "garbage"},
		{Symbol: "SOLUSDT", Rate: "-0.002"},
	}

	obs := n.NormalizeBatch(raws, "binance", time.Now().UTC())

	// One bad record must not abort the batch.
	require.Len(t, obs, 2)
	assert.Equal(t, "BTC", obs[0].BaseAsset)
	assert.Equal(t, "SOL", obs[1].BaseAsset)
	assert.EqualValues(t, 1, n.Dropped())
}
