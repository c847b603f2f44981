package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// FundingHistoryStore implements domain.FundingHistoryStore using PostgreSQL.
// It caches historical funding series so repeated backtests over the same
// window skip the venue API.
type FundingHistoryStore struct {
	pool *pgxpool.Pool
}

var _ domain.FundingHistoryStore = (*FundingHistoryStore)(nil)

// NewFundingHistoryStore creates a FundingHistoryStore backed by the given pool.
func NewFundingHistoryStore(pool *pgxpool.Pool) *FundingHistoryStore {
	return &FundingHistoryStore{pool: pool}
}

// UpsertBatch stores a fetched funding series. Rows already present for the
// same (exchange, symbol, timestamp) are overwritten; settled rates are
// immutable upstream so this only matters for partial refetches.
func (s *FundingHistoryStore) UpsertBatch(ctx context.Context, exchange, symbol string, obs []domain.FundingObservation) error {
	if len(obs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO funding_history (exchange, symbol, ts, rate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (exchange, symbol, ts) DO UPDATE SET rate = EXCLUDED.rate`

	for _, o := range obs {
		batch.Queue(query, exchange, symbol, o.Timestamp, o.Rate)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range obs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert funding history item %d: %w", i, err)
		}
	}
	return nil
}

// Series returns cached observations for [since, until] in ascending
// timestamp order, or domain.ErrNoData when nothing is cached for the range.
func (s *FundingHistoryStore) Series(ctx context.Context, exchange, symbol string, since, until time.Time) ([]domain.FundingObservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, rate FROM funding_history
		WHERE exchange = $1 AND symbol = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC`,
		exchange, symbol, since, until,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: funding history series: %w", err)
	}
	defer rows.Close()

	var out []domain.FundingObservation
	for rows.Next() {
		o := domain.FundingObservation{Exchange: exchange, Symbol: symbol}
		if err := rows.Scan(&o.Timestamp, &o.Rate); err != nil {
			return nil, fmt.Errorf("postgres: scan funding history row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read funding history rows: %w", err)
	}
	if len(out) == 0 {
		return nil, domain.ErrNoData
	}
	return out, nil
}
