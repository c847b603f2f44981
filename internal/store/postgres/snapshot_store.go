package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotSelectCols = `id, ts, observation_count, opportunity_count, top_opportunities`

func scanSnapshotRows(rows pgx.Rows) ([]domain.ScanSnapshot, error) {
	var snaps []domain.ScanSnapshot
	for rows.Next() {
		var (
			s    domain.ScanSnapshot
			tops []byte
		)
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.ObservationCount, &s.OpportunityCount, &tops); err != nil {
			return nil, err
		}
		if len(tops) > 0 {
			if err := json.Unmarshal(tops, &s.TopOpportunities); err != nil {
				return nil, fmt.Errorf("decode top opportunities for snapshot %d: %w", s.ID, err)
			}
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// Append inserts one scan snapshot. The table is append-only; snapshots are
// never updated.
func (s *SnapshotStore) Append(ctx context.Context, snap domain.ScanSnapshot) error {
	tops, err := json.Marshal(snap.TopOpportunities)
	if err != nil {
		return fmt.Errorf("postgres: encode top opportunities: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO scan_snapshots (ts, observation_count, opportunity_count, top_opportunities)
		VALUES ($1, $2, $3, $4)`,
		snap.Timestamp, snap.ObservationCount, snap.OpportunityCount, tops,
	)
	if err != nil {
		return fmt.Errorf("postgres: append snapshot: %w", err)
	}
	return nil
}

// ListRecent returns the newest snapshots, most recent first.
func (s *SnapshotStore) ListRecent(ctx context.Context, limit int) ([]domain.ScanSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotSelectCols+` FROM scan_snapshots ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshotRows(rows)
}

// ListBefore returns snapshots older than cutoff, oldest first, for archiving.
func (s *SnapshotStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ScanSnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + ` FROM scan_snapshots WHERE ts < $1 ORDER BY ts ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before: %w", err)
	}
	defer rows.Close()
	return scanSnapshotRows(rows)
}

// DeleteBefore removes snapshots older than cutoff. Returns the number deleted.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scan_snapshots WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the total number of stored snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scan_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count snapshots: %w", err)
	}
	return n, nil
}
