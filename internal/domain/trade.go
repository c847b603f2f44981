package domain

import "time"

// ClosedTrade is the terminal, immutable summary of one full position
// lifecycle. It is produced exactly once per closure.
type ClosedTrade struct {
	ID               string
	PositionID       string
	Symbol           string
	BaseAsset        string
	EntryRate        float64
	EntryTime        time.Time
	ExitTime         time.Time
	PeriodsHeld      int
	PositionSize     float64 // USD notional
	FundingCollected float64 // USD
	TotalCosts       float64 // USD
	PnL              float64 // FundingCollected - TotalCosts
}

// PnLPct returns the trade P&L as a percentage of position size, or 0 for a
// zero-sized position.
func (t ClosedTrade) PnLPct() float64 {
	if t.PositionSize == 0 {
		return 0
	}
	return t.PnL / t.PositionSize * 100
}

// OpenTradeReport describes a position still open at the end of a replayed
// series. It has no realized P&L and is excluded from completed-trade
// statistics, but is reported rather than silently dropped.
type OpenTradeReport struct {
	Symbol           string
	EntryRate        float64
	EntryIndex       int
	PeriodsHeld      int
	FundingCollected float64
	CostsAccrued     float64
}

// BacktestReport aggregates the outcome of replaying one symbol's funding
// series through the lifecycle engine. All averages and rates are defined as
// 0 when no trades completed.
type BacktestReport struct {
	Symbol           string
	DataPoints       int
	PeriodDays       float64
	Trades           []ClosedTrade
	StillOpen        *OpenTradeReport
	TotalFunding     float64
	TotalCosts       float64
	TotalPnL         float64
	PnLPerTrade      float64
	WinRatePct       float64
	AvgHoldPeriods   float64
	AnnualizedPct    float64
}
