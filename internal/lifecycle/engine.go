// Package lifecycle implements the open/hold/close state machine for a
// delta-neutral funding position. The same engine is driven by the
// backtester (replaying a historical series) and by the live monitor
// (feeding one real-time period at a time), so entry and exit decisions are
// identical in both.
package lifecycle

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// State is the engine's position state. Closed is terminal per position; a
// fresh Idle→Open starts a new position.
type State int

const (
	StateIdle State = iota
	StateOpen
)

// EngineConfig holds the thresholds and per-trade cost fractions for one
// engine instance. All cost fields are fractions of position notional.
type EngineConfig struct {
	// EntryThreshold opens a position when the period rate drops below it.
	// ExitThreshold closes when the rate rises above it. Entry must be
	// strictly below Exit: the hysteresis gap prevents open/close thrashing
	// on noisy rates.
	EntryThreshold float64
	ExitThreshold  float64

	EntryCost       float64 // taker both legs
	ExitCost        float64 // maker both legs
	Slippage        float64 // round trip
	BorrowPerPeriod float64

	PositionSize float64 // USD notional
}

// Engine drives a single symbol's position lifecycle. It is single-writer:
// one goroutine owns an engine and its position state; concurrent opens on
// the same symbol across engines are a caller error.
type Engine struct {
	cfg    EngineConfig
	symbol string
	logger *slog.Logger

	state      State
	entryRate  float64
	entryIndex int
	entryTime  time.Time
	funding    float64 // USD, current position
	costs      float64 // USD, current position

	trades []domain.ClosedTrade
}

// NewEngine creates an Engine for one symbol. It rejects inverted or equal
// thresholds and non-positive sizing up front: both are configuration
// faults, not runtime conditions.
func NewEngine(symbol string, cfg EngineConfig, logger *slog.Logger) (*Engine, error) {
	if cfg.EntryThreshold >= cfg.ExitThreshold {
		return nil, fmt.Errorf(
			"lifecycle: entry threshold %g must be strictly below exit threshold %g",
			cfg.EntryThreshold, cfg.ExitThreshold,
		)
	}
	if cfg.PositionSize <= 0 {
		return nil, fmt.Errorf("lifecycle: position size must be > 0, got %g", cfg.PositionSize)
	}
	return &Engine{
		cfg:    cfg,
		symbol: symbol,
		logger: logger.With(
			slog.String("component", "lifecycle"),
			slog.String("symbol", symbol),
		),
	}, nil
}

// State returns the engine's current position state.
func (e *Engine) State() State { return e.state }

// Step feeds one funding period into the state machine. It returns a
// non-nil ClosedTrade exactly when this period closed the position.
//
// While open, the period's funding is accrued before the exit check, so the
// closing period's funding is collected (matching settlement: the position
// is held through the settlement that triggers the exit decision).
func (e *Engine) Step(rate float64, index int, at time.Time) *domain.ClosedTrade {
	size := e.cfg.PositionSize

	if e.state == StateIdle {
		if rate < e.cfg.EntryThreshold {
			e.state = StateOpen
			e.entryRate = rate
			e.entryIndex = index
			e.entryTime = at
			e.funding = 0
			e.costs = (e.cfg.EntryCost + e.cfg.Slippage) * size
			e.logger.Debug("position opened",
				slog.Int("index", index),
				slog.Float64("rate", rate),
			)
		}
		return nil
	}

	// Open: collect this period's funding and pay the borrow.
	e.funding += -rate * size
	e.costs += e.cfg.BorrowPerPeriod * size

	if rate <= e.cfg.ExitThreshold {
		return nil
	}

	// Rate has normalized; close.
	e.costs += e.cfg.ExitCost * size
	trade := domain.ClosedTrade{
		ID:               uuid.New().String(),
		Symbol:           e.symbol,
		EntryRate:        e.entryRate,
		EntryTime:        e.entryTime,
		ExitTime:         at,
		PeriodsHeld:      index - e.entryIndex,
		PositionSize:     size,
		FundingCollected: e.funding,
		TotalCosts:       e.costs,
		PnL:              e.funding - e.costs,
	}
	e.trades = append(e.trades, trade)
	e.state = StateIdle
	e.logger.Debug("position closed",
		slog.Int("periods_held", trade.PeriodsHeld),
		slog.Float64("pnl", trade.PnL),
	)
	return &trade
}

// Trades returns all trades completed so far, in close order.
func (e *Engine) Trades() []domain.ClosedTrade { return e.trades }

// StillOpen reports the current position when the engine finished a series
// in the Open state. It returns nil when idle. Open positions carry no
// realized P&L and are excluded from completed-trade statistics, but must be
// surfaced rather than dropped.
func (e *Engine) StillOpen(lastIndex int) *domain.OpenTradeReport {
	if e.state != StateOpen {
		return nil
	}
	return &domain.OpenTradeReport{
		Symbol:           e.symbol,
		EntryRate:        e.entryRate,
		EntryIndex:       e.entryIndex,
		PeriodsHeld:      lastIndex - e.entryIndex,
		FundingCollected: e.funding,
		CostsAccrued:     e.costs,
	}
}

// Replay drives a full observation series through a fresh engine and
// returns the aggregated report. An empty series yields domain.ErrNoData.
func Replay(symbol string, series []domain.FundingObservation, cfg EngineConfig, logger *slog.Logger) (domain.BacktestReport, error) {
	if len(series) == 0 {
		return domain.BacktestReport{}, domain.ErrNoData
	}

	engine, err := NewEngine(symbol, cfg, logger)
	if err != nil {
		return domain.BacktestReport{}, err
	}

	for i, obs := range series {
		engine.Step(obs.Rate, i, obs.Timestamp)
	}

	report := Summarize(symbol, engine.Trades(), cfg.PositionSize)
	report.DataPoints = len(series)
	report.StillOpen = engine.StillOpen(len(series) - 1)

	days := series[len(series)-1].Timestamp.Sub(series[0].Timestamp).Hours() / 24
	if days < 1 {
		days = 1
	}
	report.PeriodDays = days
	report.AnnualizedPct = report.TotalPnL / cfg.PositionSize * (365 / days) * 100
	return report, nil
}

// Summarize aggregates completed trades into a report. Every average and
// rate is defined as 0 when no trades completed; an empty backtest is a
// result, not a fault.
func Summarize(symbol string, trades []domain.ClosedTrade, positionSize float64) domain.BacktestReport {
	report := domain.BacktestReport{
		Symbol: symbol,
		Trades: trades,
	}
	if len(trades) == 0 {
		return report
	}

	wins := 0
	holdSum := 0
	for _, t := range trades {
		report.TotalFunding += t.FundingCollected
		report.TotalCosts += t.TotalCosts
		report.TotalPnL += t.PnL
		holdSum += t.PeriodsHeld
		if t.PnL > 0 {
			wins++
		}
	}
	n := float64(len(trades))
	report.PnLPerTrade = report.TotalPnL / n
	report.WinRatePct = float64(wins) / n * 100
	report.AvgHoldPeriods = float64(holdSum) / n
	return report
}
