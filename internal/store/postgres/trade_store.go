package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// TradeStore implements domain.ClosedTradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.ClosedTradeStore = (*TradeStore)(nil)

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, position_id, symbol, base_asset, entry_rate,
	entry_time, exit_time, periods_held, position_size,
	funding_collected, total_costs, pnl`

func scanTradeRows(rows pgx.Rows) ([]domain.ClosedTrade, error) {
	var trades []domain.ClosedTrade
	for rows.Next() {
		var t domain.ClosedTrade
		if err := rows.Scan(
			&t.ID, &t.PositionID, &t.Symbol, &t.BaseAsset, &t.EntryRate,
			&t.EntryTime, &t.ExitTime, &t.PeriodsHeld, &t.PositionSize,
			&t.FundingCollected, &t.TotalCosts, &t.PnL,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert records one closed trade. Re-inserting the same trade ID is a no-op:
// a trade is produced exactly once per closure, so a conflict means a retry.
func (s *TradeStore) Insert(ctx context.Context, trade domain.ClosedTrade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO closed_trades (
			id, position_id, symbol, base_asset, entry_rate,
			entry_time, exit_time, periods_held, position_size,
			funding_collected, total_costs, pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		trade.ID, trade.PositionID, trade.Symbol, trade.BaseAsset, trade.EntryRate,
		trade.EntryTime, trade.ExitTime, trade.PeriodsHeld, trade.PositionSize,
		trade.FundingCollected, trade.TotalCosts, trade.PnL,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert closed trade: %w", err)
	}
	return nil
}

// ListBySymbol returns closed trades for a symbol with pagination and
// optional time filtering, newest exits first.
func (s *TradeStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.ClosedTrade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM closed_trades WHERE symbol = $1`
	args := []any{symbol}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND exit_time >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND exit_time <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY exit_time DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed trades by symbol: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed trades: %w", err)
	}
	return trades, nil
}

// ListRecent returns the newest closed trades across all symbols.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.ClosedTrade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM closed_trades ORDER BY exit_time DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent closed trades: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}
