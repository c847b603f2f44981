package domain

import (
	"math"
	"time"
)

// PositionStatus tracks whether an arb position is open or closed. There is
// no partially-open state: a position is atomically open or atomically closed
// from the engine's point of view even though the legs are separate orders.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Position is a single leg of a delta-neutral pair. It is owned by its
// exchange context and mutated only by fill events from that leg's
// execution path.
type Position struct {
	Exchange   string
	Symbol     string
	Side       Side
	Size       float64
	EntryPrice float64
	EntryTime  time.Time
}

// Notional returns the leg's USD notional at entry.
func (p Position) Notional() float64 {
	return p.Size * p.EntryPrice
}

// ArbPosition is a combined delta-neutral position: exactly one long leg and
// one short leg on the same base asset, plus cumulative funding and cost
// accounting. Mutation is single-writer: only the coordinator or engine
// owning the position may touch it.
type ArbPosition struct {
	ID               string
	BaseAsset        string
	Symbol           string
	LongLeg          Position
	ShortLeg         Position
	TargetRate       float64 // funding rate the position was opened against
	FundingCollected float64 // cumulative, USD
	CostsAccrued     float64 // cumulative, USD (entry, borrow, exit)
	RealizedPnL      float64
	Status           PositionStatus
	OpenedAt         time.Time
}

// CheckDeltaNeutral reports whether the two legs' notional sizes match within
// tolerance (a fraction of the larger leg). Divergence is a detectable fault,
// never silently ignored.
func (p ArbPosition) CheckDeltaNeutral(tolerance float64) bool {
	long, short := p.LongLeg.Notional(), p.ShortLeg.Notional()
	larger := math.Max(math.Abs(long), math.Abs(short))
	if larger == 0 {
		return false
	}
	return math.Abs(long-short)/larger <= tolerance
}
