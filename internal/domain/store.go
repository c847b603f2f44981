package domain

import (
	"context"
	"time"
)

// ScanSnapshot is the append-only record persisted once per scan. The core
// produces these records; it never reads its own history back except for
// display and archival.
type ScanSnapshot struct {
	ID               int64
	Timestamp        time.Time
	ObservationCount int
	OpportunityCount int
	TopOpportunities []Opportunity
}

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SnapshotStore persists scan snapshots append-only.
type SnapshotStore interface {
	Append(ctx context.Context, snap ScanSnapshot) error
	ListRecent(ctx context.Context, limit int) ([]ScanSnapshot, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]ScanSnapshot, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// ClosedTradeStore persists completed trade lifecycles.
type ClosedTradeStore interface {
	Insert(ctx context.Context, trade ClosedTrade) error
	ListBySymbol(ctx context.Context, symbol string, opts ListOpts) ([]ClosedTrade, error)
	ListRecent(ctx context.Context, limit int) ([]ClosedTrade, error)
}

// FundingHistoryStore caches historical funding series fetched for backtests
// so repeat runs over the same window skip the network.
type FundingHistoryStore interface {
	UpsertBatch(ctx context.Context, exchange, symbol string, obs []FundingObservation) error
	// Series returns cached observations for [since, until] in ascending
	// timestamp order. Returns ErrNoData when nothing is cached.
	Series(ctx context.Context, exchange, symbol string, since, until time.Time) ([]FundingObservation, error)
}
