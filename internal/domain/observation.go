package domain

import "time"

// Funding period conventions. All major perp venues settle funding every
// eight hours, so rates quoted per period annualize at 3 × 365 periods.
const (
	PeriodsPerDay  = 3
	PeriodsPerYear = PeriodsPerDay * 365
	FundingPeriod  = 8 * time.Hour
)

// RawRateRecord is a venue-native funding rate record as returned by a feed
// adapter, before normalization. Symbol keeps the venue's own naming
// ("BTCUSDT", "BTC-USDT-SWAP", "BTC"); Rate is the undecoded string because
// several venues return funding rates as JSON strings.
type RawRateRecord struct {
	Symbol string
	Rate   string
}

// FundingObservation is the canonical form of one venue's funding rate for
// one symbol at one point in time. Rate is the fractional rate for a single
// funding period; negative means the short side pays the long side.
// Observations are immutable once created.
type FundingObservation struct {
	Exchange  string
	Symbol    string
	BaseAsset string
	Rate      float64
	Timestamp time.Time
}

// AnnualizedPct returns the funding rate annualized as a percentage,
// before any cost adjustment.
func (o FundingObservation) AnnualizedPct() float64 {
	return o.Rate * PeriodsPerYear * 100
}
