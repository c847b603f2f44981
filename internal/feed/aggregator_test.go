package feed

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

type stubFetcher struct {
	name    string
	records []domain.RawRateRecord
	err     error
	delay   time.Duration
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) FundingRates(ctx context.Context) ([]domain.RawRateRecord, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.records, s.err
}

func TestFetchMergesAllVenues(t *testing.T) {
	agg := NewAggregator([]Fetcher{
		&stubFetcher{name: "binance", records: []domain.RawRateRecord{{Symbol: "BTCUSDT", Rate: "-0.001"}}},
		&stubFetcher{name: "bybit", records: []domain.RawRateRecord{{Symbol: "ETHUSDT", Rate: "-0.002"}}},
	}, time.Second, slog.Default())

	batches, faults, err := agg.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, faults)
	require.Len(t, batches, 2)
}

func TestOneVenueFailureDoesNotPropagate(t *testing.T) {
	agg := NewAggregator([]Fetcher{
		&stubFetcher{name: "binance", records: []domain.RawRateRecord{{Symbol: "BTCUSDT", Rate: "-0.001"}}},
		&stubFetcher{name: "bybit", err: errors.New("502 bad gateway")},
		&stubFetcher{name: "okx", records: []domain.RawRateRecord{{Symbol: "BTC-USDT-SWAP", Rate: "-0.003"}}},
		&stubFetcher{name: "hyperliquid", records: []domain.RawRateRecord{{Symbol: "BTC", Rate: "-0.002"}}},
	}, time.Second, slog.Default())

	batches, faults, err := agg.Fetch(context.Background())
	require.NoError(t, err, "per-venue failures must not surface as aggregate errors")

	require.Len(t, batches, 3)
	venues := make([]string, 0, len(batches))
	for _, b := range batches {
		venues = append(venues, b.Venue)
	}
	assert.ElementsMatch(t, []string{"binance", "okx", "hyperliquid"}, venues)

	require.Len(t, faults, 1)
	assert.Equal(t, "bybit", faults[0].Venue)
}

func TestSlowVenueTimesOutIndividually(t *testing.T) {
	agg := NewAggregator([]Fetcher{
		&stubFetcher{name: "binance", records: []domain.RawRateRecord{{Symbol: "BTCUSDT", Rate: "-0.001"}}},
		&stubFetcher{name: "okx", delay: 500 * time.Millisecond},
	}, 20*time.Millisecond, slog.Default())

	batches, faults, err := agg.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "binance", batches[0].Venue)
	require.Len(t, faults, 1)
	assert.Equal(t, "okx", faults[0].Venue)
}

func TestFetchHonoursCancelledContext(t *testing.T) {
	agg := NewAggregator(nil, time.Second, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := agg.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
