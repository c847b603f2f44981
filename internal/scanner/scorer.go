package scanner

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// LiquidityScorer assigns a coarse 0-1 liquidity score to a base asset. The
// default is a placeholder policy, not a market-depth measurement, and can be
// replaced wholesale through ScorerConfig.
type LiquidityScorer func(baseAsset string) float64

// majorAssets are assumed deep enough to absorb a small position at the
// estimated slippage.
var majorAssets = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "XRP": true, "DOGE": true,
}

// DefaultLiquidityScorer scores major assets 0.9 and everything else 0.5.
func DefaultLiquidityScorer(baseAsset string) float64 {
	if majorAssets[baseAsset] {
		return 0.9
	}
	return 0.5
}

// ScorerConfig configures the opportunity scorer. The Skip* flags disable
// individual filter steps so each can be exercised in isolation.
type ScorerConfig struct {
	// MinFundingRate is the per-period rate ceiling: rates above it are not
	// negative enough to act on.
	MinFundingRate float64
	// MinNetYieldPct is the floor on annualized net yield after costs.
	MinNetYieldPct float64
	// HoldPeriods is the assumed minimum hold over which entry/exit costs
	// are amortized. The lifecycle engine later accounts exact per-trade
	// costs; this estimate is a pre-filter only.
	HoldPeriods int
	Whitelist   []string

	Liquidity LiquidityScorer

	SkipSignFilter      bool
	SkipWhitelist       bool
	SkipRateThreshold   bool
	SkipYieldThreshold  bool
}

// Scorer filters and ranks funding observations into opportunities using the
// shared cost model.
type Scorer struct {
	cfg       ScorerConfig
	costs     domain.CostModel
	whitelist map[string]bool
	liquidity LiquidityScorer
	logger    *slog.Logger
}

// NewScorer creates a Scorer. A nil ScorerConfig.Liquidity falls back to
// DefaultLiquidityScorer.
func NewScorer(cfg ScorerConfig, costs domain.CostModel, logger *slog.Logger) *Scorer {
	wl := make(map[string]bool, len(cfg.Whitelist))
	for _, a := range cfg.Whitelist {
		wl[a] = true
	}
	liq := cfg.Liquidity
	if liq == nil {
		liq = DefaultLiquidityScorer
	}
	return &Scorer{
		cfg:       cfg,
		costs:     costs,
		whitelist: wl,
		liquidity: liq,
		logger:    logger.With(slog.String("component", "scorer")),
	}
}

// ScoreOne evaluates a single observation against the filter pipeline. The
// second return value is false when any enabled filter rejects it.
func (s *Scorer) ScoreOne(obs domain.FundingObservation) (domain.Opportunity, bool) {
	// 1. Only negative funding (shorts pay longs) is actionable.
	if !s.cfg.SkipSignFilter && obs.Rate >= 0 {
		return domain.Opportunity{}, false
	}

	// 2. Whitelist.
	if !s.cfg.SkipWhitelist && !s.whitelist[obs.BaseAsset] {
		return domain.Opportunity{}, false
	}

	// 3. Rate must be at least as negative as the threshold.
	if !s.cfg.SkipRateThreshold && obs.Rate > s.cfg.MinFundingRate {
		return domain.Opportunity{}, false
	}

	// 4-6. Cost-adjusted yield.
	fees := s.costs.FeesFor(obs.Exchange)
	entryCost := 2 * fees.Taker
	exitCost := 2 * fees.Maker
	slippageCost := 2 * s.costs.SlippageEstimate
	borrow := s.costs.BorrowPerPeriod()

	amortized := (entryCost + exitCost + slippageCost) / float64(s.cfg.HoldPeriods)
	netPerPeriod := -obs.Rate - borrow - amortized
	netAPR := netPerPeriod * domain.PeriodsPerYear * 100

	// 7. Yield floor.
	if !s.cfg.SkipYieldThreshold && netAPR < s.cfg.MinNetYieldPct {
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		ID:                uuid.New().String(),
		Exchange:          obs.Exchange,
		Symbol:            obs.Symbol,
		BaseAsset:         obs.BaseAsset,
		FundingRate:       obs.Rate,
		FundingAPR:        obs.AnnualizedPct(),
		EntryCost:         entryCost,
		ExitCost:          exitCost,
		SlippageCost:      slippageCost,
		BorrowPerPeriod:   borrow,
		NetYieldPerPeriod: netPerPeriod,
		NetYieldAPR:       netAPR,
		LiquidityScore:    s.liquidity(obs.BaseAsset),
		Timestamp:         obs.Timestamp,
	}, true
}

// Score evaluates every observation and returns the surviving opportunities
// ranked best-first: descending net yield, ties broken by descending
// liquidity score, then ascending (exchange, symbol) for determinism.
func (s *Scorer) Score(observations []domain.FundingObservation) []domain.Opportunity {
	opps := make([]domain.Opportunity, 0, len(observations))
	for _, obs := range observations {
		if opp, ok := s.ScoreOne(obs); ok {
			opps = append(opps, opp)
		}
	}

	sort.Slice(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.NetYieldAPR != b.NetYieldAPR {
			return a.NetYieldAPR > b.NetYieldAPR
		}
		if a.LiquidityScore != b.LiquidityScore {
			return a.LiquidityScore > b.LiquidityScore
		}
		if a.Exchange != b.Exchange {
			return a.Exchange < b.Exchange
		}
		return a.Symbol < b.Symbol
	})

	if len(opps) > 0 {
		s.logger.Debug("scored observations",
			slog.Int("observations", len(observations)),
			slog.Int("opportunities", len(opps)),
			slog.Float64("best_net_apr", opps[0].NetYieldAPR),
		)
	}
	return opps
}

// NetYieldAPR computes the annualized post-cost yield for a raw rate without
// building a full opportunity. It is the same pure function the pipeline
// applies, exposed for display paths.
func NetYieldAPR(rate float64, costs domain.CostModel, exchange string, holdPeriods int) float64 {
	if rate >= 0 {
		return 0
	}
	fees := costs.FeesFor(exchange)
	amortized := (2*fees.Taker + 2*fees.Maker + 2*costs.SlippageEstimate) / float64(holdPeriods)
	return (-rate - costs.BorrowPerPeriod() - amortized) * domain.PeriodsPerYear * 100
}
