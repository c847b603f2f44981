package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fundarb/internal/domain"
	"github.com/alanyoungcy/fundarb/internal/feed"
	"github.com/alanyoungcy/fundarb/internal/notify"
	"github.com/alanyoungcy/fundarb/internal/scanner"
)

type stubFetcher struct {
	name    string
	records []domain.RawRateRecord
	err     error
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) FundingRates(ctx context.Context) ([]domain.RawRateRecord, error) {
	return f.records, f.err
}

type memSnapshotStore struct {
	mu    sync.Mutex
	snaps []domain.ScanSnapshot
}

func (s *memSnapshotStore) Append(ctx context.Context, snap domain.ScanSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *memSnapshotStore) ListRecent(ctx context.Context, limit int) ([]domain.ScanSnapshot, error) {
	return nil, nil
}

func (s *memSnapshotStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ScanSnapshot, error) {
	return nil, nil
}

func (s *memSnapshotStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *memSnapshotStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.snaps)), nil
}

type memRateCache struct {
	mu   sync.Mutex
	byID map[string][]domain.FundingObservation
}

func newMemRateCache() *memRateCache {
	return &memRateCache{byID: make(map[string][]domain.FundingObservation)}
}

func (c *memRateCache) SetRates(ctx context.Context, obs []domain.FundingObservation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range obs {
		c.byID[o.BaseAsset] = append(c.byID[o.BaseAsset], o)
	}
	return nil
}

func (c *memRateCache) RatesForAsset(ctx context.Context, baseAsset string) ([]domain.FundingObservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obs, ok := c.byID[baseAsset]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return obs, nil
}

type heldLockManager struct{}

func (heldLockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

type recordingSender struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) Send(ctx context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func testCostModel() domain.CostModel {
	return domain.CostModel{
		Fees: map[string]domain.FeeSchedule{
			"binance": {Maker: 0.0002, Taker: 0.0005},
		},
		SlippageEstimate: 0.0005,
		DefaultBorrowAPR: 0.30,
	}
}

func newTestScanService(t *testing.T, fetchers ...feed.Fetcher) *ScanService {
	t.Helper()
	logger := testLogger()
	scorer := scanner.NewScorer(scanner.ScorerConfig{
		MinFundingRate: -0.0001,
		MinNetYieldPct: 0.0,
		HoldPeriods:    3,
		Whitelist:      []string{"BTC", "SOL"},
	}, testCostModel(), logger)
	return NewScanService(
		feed.NewAggregator(fetchers, time.Second, logger),
		scanner.NewNormalizer(logger),
		scorer,
		ScanConfig{Interval: time.Minute, AlertMinYield: 30.0, TopN: 5, PersistEnabled: true},
		logger,
	)
}

func TestScanOnceProducesOpportunities(t *testing.T) {
	svc := newTestScanService(t,
		&stubFetcher{name: "binance", records: []domain.RawRateRecord{
			{Symbol: "SOLUSDT", Rate: "-0.0030"},
			{Symbol: "BTCUSDT", Rate: "0.0001"},
		}},
		&stubFetcher{name: "bybit", records: []domain.RawRateRecord{
			{Symbol: "SOLUSDT", Rate: "-0.0025"},
		}},
	)

	result, err := svc.ScanOnce(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Observations, 3)
	require.NotEmpty(t, result.Opportunities)
	// Most negative rate ranks first.
	assert.Equal(t, "binance", result.Opportunities[0].Exchange)
	assert.Equal(t, "SOL", result.Opportunities[0].BaseAsset)
	assert.Empty(t, result.Faults)
}

func TestScanOnceSurvivesVenueFailure(t *testing.T) {
	svc := newTestScanService(t,
		&stubFetcher{name: "binance", records: []domain.RawRateRecord{
			{Symbol: "SOLUSDT", Rate: "-0.0030"},
		}},
		&stubFetcher{name: "okx", err: errors.New("gateway timeout")},
	)

	result, err := svc.ScanOnce(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Observations, 1)
	require.Len(t, result.Faults, 1)
	assert.Equal(t, "okx", result.Faults[0].Venue)
}

func TestScanOncePersistsSnapshot(t *testing.T) {
	svc := newTestScanService(t, &stubFetcher{name: "binance", records: []domain.RawRateRecord{
		{Symbol: "SOLUSDT", Rate: "-0.0030"},
	}})
	store := &memSnapshotStore{}
	svc.SetSnapshotStore(store)

	_, err := svc.ScanOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, store.snaps, 1)
	assert.Equal(t, 1, store.snaps[0].ObservationCount)
	assert.Len(t, store.snaps[0].TopOpportunities, 1)
}

func TestScanOnceSkipsPersistWhenLockHeld(t *testing.T) {
	svc := newTestScanService(t, &stubFetcher{name: "binance", records: []domain.RawRateRecord{
		{Symbol: "SOLUSDT", Rate: "-0.0030"},
	}})
	store := &memSnapshotStore{}
	svc.SetSnapshotStore(store)
	svc.SetLockManager(heldLockManager{})

	_, err := svc.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.snaps)
}

func TestScanOnceAlertsAboveThreshold(t *testing.T) {
	// -0.30% per period is roughly -985% funding APR, far above any
	// plausible alert floor after costs.
	svc := newTestScanService(t, &stubFetcher{name: "binance", records: []domain.RawRateRecord{
		{Symbol: "SOLUSDT", Rate: "-0.0030"},
	}})
	sender := &recordingSender{}
	svc.SetNotifier(notify.NewNotifier([]notify.Sender{sender}, []string{notify.EventOpportunity}, testLogger()))

	_, err := svc.ScanOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, sender.count())
	assert.Contains(t, sender.messages[0], "SOL @ binance")
}

func TestScanOnceNoAlertBelowThreshold(t *testing.T) {
	svc := newTestScanService(t, &stubFetcher{name: "binance", records: []domain.RawRateRecord{
		{Symbol: "SOLUSDT", Rate: "-0.0002"},
	}})
	sender := &recordingSender{}
	svc.SetNotifier(notify.NewNotifier([]notify.Sender{sender}, []string{notify.EventOpportunity}, testLogger()))

	_, err := svc.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sender.count())
}

func TestAnalyzeServesFromCache(t *testing.T) {
	// The fetcher errors so a cache miss would surface as a fault-only scan.
	svc := newTestScanService(t, &stubFetcher{name: "binance", err: errors.New("down")})
	cache := newMemRateCache()
	require.NoError(t, cache.SetRates(context.Background(), []domain.FundingObservation{
		{Exchange: "bybit", Symbol: "SOLUSDT", BaseAsset: "SOL", Rate: -0.001},
		{Exchange: "binance", Symbol: "SOLUSDT", BaseAsset: "SOL", Rate: -0.003},
	}))
	svc.SetRateCache(cache)

	obs, err := svc.Analyze(context.Background(), "SOL")
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "binance", obs[0].Exchange)
	assert.Equal(t, -0.003, obs[0].Rate)
}

func TestAnalyzeFallsBackToFetchOnCacheMiss(t *testing.T) {
	svc := newTestScanService(t, &stubFetcher{name: "binance", records: []domain.RawRateRecord{
		{Symbol: "SOLUSDT", Rate: "-0.0030"},
		{Symbol: "BTCUSDT", Rate: "0.0001"},
	}})
	svc.SetRateCache(newMemRateCache())

	obs, err := svc.Analyze(context.Background(), "SOL")
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "SOLUSDT", obs[0].Symbol)
}

func TestAnalyzeUnknownAssetIsNoData(t *testing.T) {
	svc := newTestScanService(t, &stubFetcher{name: "binance", records: []domain.RawRateRecord{
		{Symbol: "BTCUSDT", Rate: "0.0001"},
	}})

	_, err := svc.Analyze(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestMonitorStopsOnCancel(t *testing.T) {
	svc := newTestScanService(t, &stubFetcher{name: "binance", records: []domain.RawRateRecord{
		{Symbol: "SOLUSDT", Rate: "-0.0030"},
	}})
	svc.cfg.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Monitor(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
