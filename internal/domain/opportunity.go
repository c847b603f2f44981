package domain

import "time"

// Opportunity is a scored, cost-adjusted funding-rate arbitrage candidate.
// It is derived on every scan and never persisted authoritatively: NetYieldAPR
// is reproducible as a pure function of (FundingRate, CostModel, hold
// periods), so recomputation from a FundingObservation always yields an
// identical Opportunity.
type Opportunity struct {
	ID        string
	Exchange  string
	Symbol    string
	BaseAsset string

	FundingRate float64 // fractional, per 8h period
	FundingAPR  float64 // annualized, as percentage

	// Cost estimates, each as fraction of notional for the round trip of
	// both legs.
	EntryCost       float64
	ExitCost        float64
	SlippageCost    float64
	BorrowPerPeriod float64

	NetYieldPerPeriod float64
	NetYieldAPR       float64 // annualized, as percentage, after costs

	LiquidityScore float64 // 0-1, coarse
	Timestamp      time.Time
}
