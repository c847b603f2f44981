package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/fundarb/internal/domain"
	"github.com/alanyoungcy/fundarb/internal/exchange"
	"github.com/alanyoungcy/fundarb/internal/executor"
	"github.com/alanyoungcy/fundarb/internal/feed"
	"github.com/alanyoungcy/fundarb/internal/lifecycle"
	"github.com/alanyoungcy/fundarb/internal/notify"
	"github.com/alanyoungcy/fundarb/internal/platform/bybit"
	"github.com/alanyoungcy/fundarb/internal/scanner"
	"github.com/alanyoungcy/fundarb/internal/service"
)

// archiveInterval paces the snapshot archival sweep in monitor mode.
const archiveInterval = 24 * time.Hour

// buildScanService assembles the scan pipeline from wired dependencies.
func (a *App) buildScanService(deps *Dependencies) *service.ScanService {
	logger := a.logger
	scorer := scanner.NewScorer(scanner.ScorerConfig{
		MinFundingRate: a.cfg.Trading.MinFundingRate,
		MinNetYieldPct: a.cfg.Trading.MinNetYieldPct,
		HoldPeriods:    a.cfg.Trading.HoldPeriods,
		Whitelist:      a.cfg.Trading.Whitelist,
	}, a.cfg.CostModel(), logger)

	venueTimeout := a.cfg.Venues.Binance.Timeout.Duration
	if venueTimeout <= 0 {
		venueTimeout = 10 * time.Second
	}
	svc := service.NewScanService(
		feed.NewAggregator(deps.Fetchers, venueTimeout, logger),
		scanner.NewNormalizer(logger),
		scorer,
		service.ScanConfig{
			Interval:       a.cfg.Scan.Interval.Duration,
			AlertMinYield:  a.cfg.Scan.AlertMinYield,
			TopN:           a.cfg.Scan.TopN,
			PersistEnabled: a.cfg.Scan.PersistEnabled,
		},
		logger,
	)

	if deps.SnapshotStore != nil {
		svc.SetSnapshotStore(deps.SnapshotStore)
	}
	if deps.RateCache != nil {
		svc.SetRateCache(deps.RateCache)
	}
	if deps.LockManager != nil {
		svc.SetLockManager(deps.LockManager)
	}
	if deps.Notifier != nil {
		svc.SetNotifier(deps.Notifier)
	}
	return svc
}

// ScanMode runs a single scan pass and prints the ranked opportunities.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	svc := a.buildScanService(deps)
	result, err := svc.ScanOnce(ctx)
	if err != nil {
		return fmt.Errorf("app: scan: %w", err)
	}

	printOpportunities(result.Opportunities, a.cfg.Scan.TopN)
	for _, fault := range result.Faults {
		fmt.Fprintf(os.Stdout, "venue unavailable: %s (%v)\n", fault.Venue, fault.Err)
	}
	a.printStatusFooter(ctx, deps, result)
	return nil
}

// MonitorMode runs the scan loop continuously, plus a daily archival sweep
// when archival is enabled. Both goroutines stop on context cancellation.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	svc := a.buildScanService(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Monitor(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			ticker := time.NewTicker(archiveInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
					archived, err := deps.Archiver.ArchiveSnapshots(ctx, cutoff)
					if err != nil {
						a.logger.ErrorContext(ctx, "snapshot archival failed",
							slog.String("error", err.Error()),
						)
						continue
					}
					if archived > 0 {
						a.logger.InfoContext(ctx, "snapshots archived",
							slog.Int64("count", archived),
						)
					}
				}
			}
		})
	}

	return g.Wait()
}

// BacktestMode replays the configured symbols through the lifecycle engine
// and prints one report per symbol.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backtest mode",
		slog.Any("symbols", a.cfg.Backtest.Symbols),
		slog.Int("days", a.cfg.Backtest.Days),
	)

	svc := service.NewBacktestService(deps.HistorySource, a.cfg.CostModel(), a.logger)
	if deps.HistoryStore != nil {
		svc.SetHistoryStore(deps.HistoryStore)
	}
	if deps.TradeStore != nil {
		svc.SetTradeStore(deps.TradeStore)
	}

	reports, err := svc.Run(ctx, service.BacktestParams{
		Symbols:         a.cfg.Backtest.Symbols,
		Days:            a.cfg.Backtest.Days,
		PositionSizeUSD: a.cfg.Backtest.PositionSizeUSD,
		EntryThreshold:  a.cfg.Trading.EntryThreshold,
		ExitThreshold:   a.cfg.Trading.ExitThreshold,
	})
	if err != nil {
		return fmt.Errorf("app: backtest: %w", err)
	}

	for _, report := range reports {
		printBacktestReport(report)
	}
	return nil
}

// AnalyzeMode shows every venue's current rate for one base asset with a
// net-yield verdict per venue.
func (a *App) AnalyzeMode(ctx context.Context, deps *Dependencies) error {
	asset := strings.ToUpper(a.analyzeAsset)
	if asset == "" {
		return fmt.Errorf("app: analyze: no asset given (usage: analyze <asset>)")
	}
	a.logger.InfoContext(ctx, "starting analyze mode", slog.String("asset", asset))

	svc := a.buildScanService(deps)
	observations, err := svc.Analyze(ctx, asset)
	if err != nil {
		return fmt.Errorf("app: analyze %s: %w", asset, err)
	}

	costs := a.cfg.CostModel()
	fmt.Fprintf(os.Stdout, "%s funding rates\n", asset)
	fmt.Fprintf(os.Stdout, "%-12s %-16s %12s %12s %12s  %s\n",
		"EXCHANGE", "SYMBOL", "RATE/8H", "FUNDING APR", "NET APR", "VERDICT")
	for _, obs := range observations {
		netAPR := scanner.NetYieldAPR(obs.Rate, costs, obs.Exchange, a.cfg.Trading.HoldPeriods)
		verdict := "skip"
		if netAPR >= a.cfg.Trading.MinNetYieldPct {
			verdict = "opportunity"
		}
		fmt.Fprintf(os.Stdout, "%-12s %-16s %11.4f%% %11.1f%% %11.1f%%  %s\n",
			obs.Exchange, obs.Symbol, obs.Rate*100, obs.AnnualizedPct(), netAPR, verdict)
	}
	return nil
}

// ExecuteMode demonstrates the two-leg coordinator against simulated venues:
// open a delta-neutral pair, accrue the configured hold, close, and print
// the resulting trade.
func (a *App) ExecuteMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting execute mode (simulated venues)")

	const refPrice = 100.0
	capital := a.cfg.Trading.TotalCapital
	clients := map[string]exchange.Client{
		"binance": exchange.NewSimulatedClient("binance", capital, refPrice, a.logger),
		"bybit":   exchange.NewSimulatedClient("bybit", capital, refPrice, a.logger),
	}
	coord := executor.NewCoordinator(clients, a.cfg.Trading.DeltaTolerance, a.logger)

	symbol := a.cfg.Live.Symbol
	if symbol == "" {
		symbol = "SOLUSDT"
	}
	pos, err := coord.Open(ctx, executor.OpenParams{
		LongExchange:  "binance",
		ShortExchange: "bybit",
		Symbol:        symbol,
		BaseAsset:     scanner.ExtractBaseAsset(symbol),
		NotionalUSD:   a.cfg.Trading.MaxPositionUSD,
		TargetRate:    a.cfg.Trading.EntryThreshold,
		RefPrice:      refPrice,
	})
	if err != nil {
		var imbalance *domain.LegImbalanceError
		if errors.As(err, &imbalance) && deps.Notifier != nil {
			_ = deps.Notifier.Notify(ctx, notify.EventLegImbalance,
				"Leg imbalance", imbalance.Error())
		}
		return fmt.Errorf("app: execute: open: %w", err)
	}
	fmt.Fprintf(os.Stdout, "opened %s: long %s / short %s, %.0f USD per leg\n",
		pos.ID, "binance", "bybit", a.cfg.Trading.MaxPositionUSD)
	if deps.Notifier != nil {
		_ = deps.Notifier.Notify(ctx, notify.EventPositionOpen, "Position opened",
			fmt.Sprintf("%s long binance / short bybit, %.0f USD per leg",
				symbol, a.cfg.Trading.MaxPositionUSD))
	}

	borrow := a.cfg.CostModel().BorrowPerPeriod()
	for i := 0; i < a.cfg.Trading.HoldPeriods; i++ {
		if err := coord.AccrueFunding(pos.ID, a.cfg.Trading.EntryThreshold, borrow); err != nil {
			return fmt.Errorf("app: execute: accrue: %w", err)
		}
	}

	trade, err := coord.Close(ctx, pos.ID)
	if err != nil {
		return fmt.Errorf("app: execute: close: %w", err)
	}
	fmt.Fprintf(os.Stdout,
		"closed %s after %d periods: funding %.2f USD, costs %.2f USD, pnl %.2f USD (%.3f%%)\n",
		trade.PositionID, a.cfg.Trading.HoldPeriods,
		trade.FundingCollected, trade.TotalCosts, trade.PnL, trade.PnLPct(),
	)
	return nil
}

// LiveMode subscribes to the live funding ticker for one symbol and drives
// the lifecycle engine one funding period at a time. Entry and exit are
// logged decisions only; no orders are routed.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	symbol := a.cfg.Live.Symbol
	a.logger.InfoContext(ctx, "starting live mode", slog.String("symbol", symbol))

	eng, err := lifecycle.NewEngine(symbol, lifecycle.EngineConfig{
		EntryThreshold:  a.cfg.Trading.EntryThreshold,
		ExitThreshold:   a.cfg.Trading.ExitThreshold,
		EntryCost:       2 * a.cfg.CostModel().FeesFor("bybit").Taker,
		ExitCost:        2 * a.cfg.CostModel().FeesFor("bybit").Maker,
		Slippage:        2 * a.cfg.Costs.SlippageEstimate,
		BorrowPerPeriod: a.cfg.CostModel().BorrowPerPeriod(),
		PositionSize:    a.cfg.Trading.MaxPositionUSD,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("app: live: %w", err)
	}

	ws := bybit.NewWSClient("")
	if err := ws.Connect(ctx); err != nil {
		return fmt.Errorf("app: live: connect: %w", err)
	}
	defer func() { _ = ws.Close() }()

	// The ticker streams sub-period updates; the engine accounts funding
	// once per period, so updates inside the current period are skipped.
	var (
		lastStep time.Time
		index    int
	)
	ws.OnFunding(func(obs domain.FundingObservation) {
		if !lastStep.IsZero() && obs.Timestamp.Sub(lastStep) < domain.FundingPeriod {
			return
		}
		lastStep = obs.Timestamp
		if trade := eng.Step(obs.Rate, index, obs.Timestamp); trade != nil {
			fmt.Fprintf(os.Stdout, "trade closed: pnl %.2f USD over %d periods\n",
				trade.PnL, trade.PeriodsHeld)
		}
		index++
	})

	if err := ws.SubscribeTicker([]string{symbol}); err != nil {
		return fmt.Errorf("app: live: subscribe: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

// printOpportunities writes the ranked opportunity table to stdout.
func printOpportunities(opportunities []domain.Opportunity, topN int) {
	if len(opportunities) == 0 {
		fmt.Fprintln(os.Stdout, "no opportunities above thresholds")
		return
	}
	if topN > 0 && topN < len(opportunities) {
		opportunities = opportunities[:topN]
	}
	fmt.Fprintf(os.Stdout, "%-4s %-8s %-12s %-16s %12s %12s %6s\n",
		"#", "ASSET", "EXCHANGE", "SYMBOL", "RATE/8H", "NET APR", "LIQ")
	for i, opp := range opportunities {
		fmt.Fprintf(os.Stdout, "%-4d %-8s %-12s %-16s %11.4f%% %11.1f%% %6.2f\n",
			i+1, opp.BaseAsset, opp.Exchange, opp.Symbol,
			opp.FundingRate*100, opp.NetYieldAPR, opp.LiquidityScore)
	}
}

// printStatusFooter appends store counts to one-shot scan output.
func (a *App) printStatusFooter(ctx context.Context, deps *Dependencies, result service.ScanResult) {
	fmt.Fprintf(os.Stdout, "\n%d observations across %d venues, %d dropped records\n",
		len(result.Observations), len(deps.Fetchers)-len(result.Faults), result.Dropped)
	if deps.SnapshotStore != nil {
		if count, err := deps.SnapshotStore.Count(ctx); err == nil {
			fmt.Fprintf(os.Stdout, "%d scan snapshots stored\n", count)
		}
	}
}

// printBacktestReport writes one symbol's replay summary to stdout.
func printBacktestReport(report domain.BacktestReport) {
	fmt.Fprintf(os.Stdout, "\n=== %s (%d points, %.1f days) ===\n",
		report.Symbol, report.DataPoints, report.PeriodDays)
	fmt.Fprintf(os.Stdout, "trades %d, win rate %.1f%%, avg hold %.1f periods\n",
		len(report.Trades), report.WinRatePct, report.AvgHoldPeriods)
	fmt.Fprintf(os.Stdout, "funding %.2f USD, costs %.2f USD, pnl %.2f USD (%.2f%% annualized)\n",
		report.TotalFunding, report.TotalCosts, report.TotalPnL, report.AnnualizedPct)
	if report.StillOpen != nil {
		fmt.Fprintf(os.Stdout, "still open: entered at %.4f%%, %d periods held, funding %.2f USD so far\n",
			report.StillOpen.EntryRate*100, report.StillOpen.PeriodsHeld, report.StillOpen.FundingCollected)
	}
}
