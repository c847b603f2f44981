package domain

// FeeSchedule holds one venue's maker and taker fees as decimal fractions
// (0.0002 = 0.02%).
type FeeSchedule struct {
	Maker float64
	Taker float64
}

// defaultFees is applied when an exchange has no configured schedule.
var defaultFees = FeeSchedule{Maker: 0.0005, Taker: 0.0005}

// CostModel is the immutable per-venue fee and borrow-rate configuration
// shared read-only by the scorer and the lifecycle engine. Construct it once
// at startup and pass it by value.
type CostModel struct {
	// Fees maps exchange name to its fee schedule.
	Fees map[string]FeeSchedule
	// SlippageEstimate is the estimated one-leg slippage fraction for a
	// position around the configured sizing.
	SlippageEstimate float64
	// DefaultBorrowAPR is the assumed annual borrow rate for the short leg
	// when it is a spot borrow (0.30 = 30% APR).
	DefaultBorrowAPR float64
}

// FeesFor returns the fee schedule for an exchange, falling back to a
// conservative default for unknown venues.
func (m CostModel) FeesFor(exchange string) FeeSchedule {
	if f, ok := m.Fees[exchange]; ok {
		return f
	}
	return defaultFees
}

// BorrowPerPeriod converts the annual borrow rate into a per-funding-period
// cost fraction.
func (m CostModel) BorrowPerPeriod() float64 {
	return m.DefaultBorrowAPR / PeriodsPerYear
}
