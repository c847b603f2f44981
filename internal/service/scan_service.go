// Package service composes the scanner, feed, and persistence layers into
// the operations the CLI modes invoke.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/fundarb/internal/domain"
	"github.com/alanyoungcy/fundarb/internal/feed"
	"github.com/alanyoungcy/fundarb/internal/notify"
	"github.com/alanyoungcy/fundarb/internal/scanner"
)

// snapshotLockName guards snapshot writes so two monitor processes against
// the same store never double-write.
const snapshotLockName = "scan_snapshot"

// ScanResult is the outcome of a single scan pass. Faults list the venues
// whose fetch failed; their absence from Observations is the only effect.
type ScanResult struct {
	Timestamp     time.Time
	Observations  []domain.FundingObservation
	Opportunities []domain.Opportunity
	Faults        []*domain.FetchFault
	Dropped       int64
}

// ScanConfig holds the scan loop parameters the service needs.
type ScanConfig struct {
	Interval       time.Duration
	AlertMinYield  float64
	TopN           int
	PersistEnabled bool
}

// ScanService runs the fetch, normalize, score pipeline and fans the result
// out to the cache, the snapshot store, and the notifier. The store, cache,
// lock manager, and notifier are all optional; a nil dependency simply skips
// that side effect.
type ScanService struct {
	aggregator *feed.Aggregator
	normalizer *scanner.Normalizer
	scorer     *scanner.Scorer
	snapshots  domain.SnapshotStore
	rateCache  domain.RateCache
	locks      domain.LockManager
	notifier   *notify.Notifier
	cfg        ScanConfig
	logger     *slog.Logger
}

// NewScanService creates a ScanService over the given pipeline components.
func NewScanService(
	aggregator *feed.Aggregator,
	normalizer *scanner.Normalizer,
	scorer *scanner.Scorer,
	cfg ScanConfig,
	logger *slog.Logger,
) *ScanService {
	return &ScanService{
		aggregator: aggregator,
		normalizer: normalizer,
		scorer:     scorer,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "scan_service")),
	}
}

// SetSnapshotStore enables snapshot persistence.
func (s *ScanService) SetSnapshotStore(store domain.SnapshotStore) {
	s.snapshots = store
}

// SetRateCache enables latest-rate caching for the analyze path.
func (s *ScanService) SetRateCache(cache domain.RateCache) {
	s.rateCache = cache
}

// SetLockManager enables distributed locking around snapshot writes.
func (s *ScanService) SetLockManager(locks domain.LockManager) {
	s.locks = locks
}

// SetNotifier enables opportunity alerts.
func (s *ScanService) SetNotifier(n *notify.Notifier) {
	s.notifier = n
}

// ScanOnce performs one full scan pass: fetch all venues, normalize, score,
// then cache, persist, and alert. Per-venue fetch failures and side-effect
// failures are reported in the result or logged; only a cancelled context
// fails the scan itself.
func (s *ScanService) ScanOnce(ctx context.Context) (ScanResult, error) {
	started := time.Now().UTC()

	batches, faults, err := s.aggregator.Fetch(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("service: scan fetch: %w", err)
	}

	var observations []domain.FundingObservation
	for _, batch := range batches {
		observations = append(observations, s.normalizer.NormalizeBatch(batch.Records, batch.Venue, started)...)
	}

	opportunities := s.scorer.Score(observations)

	result := ScanResult{
		Timestamp:     started,
		Observations:  observations,
		Opportunities: opportunities,
		Faults:        faults,
		Dropped:       s.normalizer.Dropped(),
	}

	s.cacheRates(ctx, observations)
	s.persistSnapshot(ctx, result)
	s.alert(ctx, opportunities)

	s.logger.Info("scan complete",
		slog.Int("observations", len(observations)),
		slog.Int("opportunities", len(opportunities)),
		slog.Int("venue_faults", len(faults)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// Monitor runs ScanOnce at the configured interval until ctx is cancelled.
// Cancellation lands between scans, never mid-scan, so no partially-applied
// state is left behind.
func (s *ScanService) Monitor(ctx context.Context) error {
	s.logger.Info("monitor started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Float64("alert_min_yield_pct", s.cfg.AlertMinYield),
	)
	defer s.logger.Info("monitor stopped")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.ScanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logger.Error("scan failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Analyze returns all current observations for one base asset, most negative
// rate first. It serves from the rate cache when one is wired and falls back
// to a fresh fetch otherwise.
func (s *ScanService) Analyze(ctx context.Context, baseAsset string) ([]domain.FundingObservation, error) {
	if s.rateCache != nil {
		obs, err := s.rateCache.RatesForAsset(ctx, baseAsset)
		if err == nil {
			sortByRate(obs)
			return obs, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("rate cache lookup failed, refetching",
				slog.String("asset", baseAsset),
				slog.String("error", err.Error()),
			)
		}
	}

	result, err := s.ScanOnce(ctx)
	if err != nil {
		return nil, err
	}

	var obs []domain.FundingObservation
	for _, o := range result.Observations {
		if o.BaseAsset == baseAsset {
			obs = append(obs, o)
		}
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("service: analyze %s: %w", baseAsset, domain.ErrNoData)
	}
	sortByRate(obs)
	return obs, nil
}

func sortByRate(obs []domain.FundingObservation) {
	sort.Slice(obs, func(i, j int) bool { return obs[i].Rate < obs[j].Rate })
}

func (s *ScanService) cacheRates(ctx context.Context, obs []domain.FundingObservation) {
	if s.rateCache == nil || len(obs) == 0 {
		return
	}
	if err := s.rateCache.SetRates(ctx, obs); err != nil {
		s.logger.Warn("rate cache update failed", slog.String("error", err.Error()))
	}
}

func (s *ScanService) persistSnapshot(ctx context.Context, result ScanResult) {
	if s.snapshots == nil || !s.cfg.PersistEnabled {
		return
	}

	if s.locks != nil {
		release, err := s.locks.Acquire(ctx, snapshotLockName, s.cfg.Interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.Debug("snapshot lock held elsewhere, skipping persist")
			} else {
				s.logger.Warn("snapshot lock failed", slog.String("error", err.Error()))
			}
			return
		}
		defer release()
	}

	topN := s.cfg.TopN
	if topN > len(result.Opportunities) {
		topN = len(result.Opportunities)
	}
	snap := domain.ScanSnapshot{
		Timestamp:        result.Timestamp,
		ObservationCount: len(result.Observations),
		OpportunityCount: len(result.Opportunities),
		TopOpportunities: result.Opportunities[:topN],
	}
	if err := s.snapshots.Append(ctx, snap); err != nil {
		s.logger.Error("snapshot persist failed", slog.String("error", err.Error()))
	}
}

func (s *ScanService) alert(ctx context.Context, opportunities []domain.Opportunity) {
	if s.notifier == nil || len(opportunities) == 0 {
		return
	}
	if opportunities[0].NetYieldAPR < s.cfg.AlertMinYield {
		return
	}

	title := fmt.Sprintf("Funding arb: %d opportunities", len(opportunities))
	body := notify.FormatOpportunityAlert(opportunities, s.cfg.TopN)
	if err := s.notifier.Notify(ctx, notify.EventOpportunity, title, body); err != nil {
		s.logger.Warn("opportunity alert failed", slog.String("error", err.Error()))
	}
}
