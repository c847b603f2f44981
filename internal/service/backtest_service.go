package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/fundarb/internal/domain"
	"github.com/alanyoungcy/fundarb/internal/lifecycle"
)

// HistorySource fetches a historical funding series for one symbol from a
// venue. The binance client satisfies it.
type HistorySource interface {
	Name() string
	FundingHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.FundingObservation, error)
}

// BacktestParams describes one backtest run.
type BacktestParams struct {
	Symbols         []string
	Days            int
	PositionSizeUSD float64
	EntryThreshold  float64
	ExitThreshold   float64
}

// BacktestService replays historical funding series through the lifecycle
// engine. Series are served from the history store when cached, and fetched
// plus cached on a miss. The history store and trade store are optional.
type BacktestService struct {
	source  HistorySource
	history domain.FundingHistoryStore
	trades  domain.ClosedTradeStore
	costs   domain.CostModel
	logger  *slog.Logger
}

// NewBacktestService creates a BacktestService over the given history source
// and cost model.
func NewBacktestService(source HistorySource, costs domain.CostModel, logger *slog.Logger) *BacktestService {
	return &BacktestService{
		source: source,
		costs:  costs,
		logger: logger.With(slog.String("component", "backtest_service")),
	}
}

// SetHistoryStore enables series caching between runs.
func (s *BacktestService) SetHistoryStore(store domain.FundingHistoryStore) {
	s.history = store
}

// SetTradeStore enables persisting each simulated closed trade.
func (s *BacktestService) SetTradeStore(store domain.ClosedTradeStore) {
	s.trades = store
}

// Run backtests every requested symbol and returns one report per symbol
// that had data. A symbol with no history is skipped with a warning; Run
// fails only when no symbol produced a report.
func (s *BacktestService) Run(ctx context.Context, params BacktestParams) ([]domain.BacktestReport, error) {
	if len(params.Symbols) == 0 {
		return nil, errors.New("service: backtest: no symbols given")
	}
	if params.Days <= 0 {
		return nil, fmt.Errorf("service: backtest: days must be > 0, got %d", params.Days)
	}

	until := time.Now().UTC()
	since := until.AddDate(0, 0, -params.Days)
	cfg := s.engineConfig(params)

	reports := make([]domain.BacktestReport, 0, len(params.Symbols))
	for _, symbol := range params.Symbols {
		series, err := s.series(ctx, symbol, since, until)
		if err != nil {
			if errors.Is(err, domain.ErrNoData) {
				s.logger.Warn("no history for symbol, skipping", slog.String("symbol", symbol))
				continue
			}
			return nil, fmt.Errorf("service: backtest %s: %w", symbol, err)
		}

		report, err := lifecycle.Replay(symbol, series, cfg, s.logger)
		if err != nil {
			return nil, fmt.Errorf("service: backtest %s: %w", symbol, err)
		}
		reports = append(reports, report)

		s.persistTrades(ctx, report.Trades)

		s.logger.Info("symbol backtested",
			slog.String("symbol", symbol),
			slog.Int("data_points", report.DataPoints),
			slog.Int("trades", len(report.Trades)),
			slog.Float64("total_pnl_usd", report.TotalPnL),
		)
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("service: backtest: %w", domain.ErrNoData)
	}
	return reports, nil
}

// series returns the funding series for [since, until], preferring the
// cached copy and falling back to a venue fetch.
func (s *BacktestService) series(ctx context.Context, symbol string, since, until time.Time) ([]domain.FundingObservation, error) {
	venue := s.source.Name()

	if s.history != nil {
		cached, err := s.history.Series(ctx, venue, symbol, since, until)
		if err == nil && coversWindow(cached, since) {
			s.logger.Debug("history served from cache",
				slog.String("symbol", symbol),
				slog.Int("points", len(cached)),
			)
			return cached, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNoData) {
			s.logger.Warn("history cache read failed, refetching",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	fetched, err := s.source.FundingHistory(ctx, symbol, since, until)
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.UpsertBatch(ctx, venue, symbol, fetched); err != nil {
			s.logger.Warn("history cache write failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
	return fetched, nil
}

// coversWindow reports whether a cached series actually reaches back to the
// requested start. A series that begins much later is a stale partial fill
// from a shorter earlier run, so refetch.
func coversWindow(series []domain.FundingObservation, since time.Time) bool {
	if len(series) == 0 {
		return false
	}
	return series[0].Timestamp.Before(since.Add(2 * domain.FundingPeriod))
}

func (s *BacktestService) persistTrades(ctx context.Context, trades []domain.ClosedTrade) {
	if s.trades == nil {
		return
	}
	for _, trade := range trades {
		if err := s.trades.Insert(ctx, trade); err != nil {
			s.logger.Warn("trade persist failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// engineConfig translates the run parameters and cost model into the
// lifecycle engine's per-trade fractions. Entry is taker on both legs, exit
// is maker on both legs, slippage covers the round trip.
func (s *BacktestService) engineConfig(params BacktestParams) lifecycle.EngineConfig {
	fees := s.costs.FeesFor(s.source.Name())
	return lifecycle.EngineConfig{
		EntryThreshold:  params.EntryThreshold,
		ExitThreshold:   params.ExitThreshold,
		EntryCost:       2 * fees.Taker,
		ExitCost:        2 * fees.Maker,
		Slippage:        2 * s.costs.SlippageEstimate,
		BorrowPerPeriod: s.costs.BorrowPerPeriod(),
		PositionSize:    params.PositionSizeUSD,
	}
}
