package domain

import (
	"context"
	"time"
)

// RateCache stores the latest funding observation per (exchange, symbol) so
// display paths can reuse the most recent scan without refetching.
type RateCache interface {
	SetRates(ctx context.Context, obs []FundingObservation) error
	// RatesForAsset returns the cached observations whose base asset matches.
	RatesForAsset(ctx context.Context, baseAsset string) ([]FundingObservation, error)
}

// LockManager provides coarse distributed locks so a single monitor process
// owns snapshot writing at a time.
type LockManager interface {
	// Acquire takes the named lock for ttl. Returns ErrLockHeld when another
	// holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}
