package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// Fetcher is one venue's funding rate source. Each returned record, once
// normalized, yields a unique (exchange, symbol) key per call.
type Fetcher interface {
	Name() string
	FundingRates(ctx context.Context) ([]domain.RawRateRecord, error)
}

// VenueBatch is one venue's records from a single aggregate fetch.
type VenueBatch struct {
	Venue   string
	Records []domain.RawRateRecord
}

// Aggregator fans a funding rate fetch out across all configured venues. One
// venue's failure never cancels or blocks the others: the aggregate completes
// when every venue call has individually resolved, and partial results are
// valid scorer input.
type Aggregator struct {
	fetchers []Fetcher
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAggregator creates an aggregator over the given fetchers. timeout bounds
// each venue call independently; an expired venue is reported as that venue's
// fetch fault.
func NewAggregator(fetchers []Fetcher, timeout time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		fetchers: fetchers,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "feed_aggregator")),
	}
}

// Fetch requests funding rates from every venue concurrently and returns the
// batches that succeeded plus a fault per venue that failed. The error
// returned is always nil unless ctx itself is done; per-venue failures do not
// propagate.
func (a *Aggregator) Fetch(ctx context.Context) ([]VenueBatch, []*domain.FetchFault, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	type result struct {
		batch VenueBatch
		fault *domain.FetchFault
	}
	results := make([]result, len(a.fetchers))

	var wg sync.WaitGroup
	for i, f := range a.fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()
			venueCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			records, err := f.FundingRates(venueCtx)
			if err != nil {
				results[i] = result{fault: &domain.FetchFault{Venue: f.Name(), Err: err}}
				return
			}
			results[i] = result{batch: VenueBatch{Venue: f.Name(), Records: records}}
		}(i, f)
	}
	wg.Wait()

	batches := make([]VenueBatch, 0, len(a.fetchers))
	var faults []*domain.FetchFault
	for _, r := range results {
		if r.fault != nil {
			a.logger.Warn("venue fetch failed",
				slog.String("venue", r.fault.Venue),
				slog.String("error", r.fault.Err.Error()),
			)
			faults = append(faults, r.fault)
			continue
		}
		batches = append(batches, r.batch)
	}

	a.logger.Debug("aggregate fetch complete",
		slog.Int("venues_ok", len(batches)),
		slog.Int("venues_failed", len(faults)),
	)
	return batches, faults, nil
}
