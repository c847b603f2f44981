package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/fundarb/internal/domain"
	"github.com/alanyoungcy/fundarb/internal/exchange"
)

// OpenParams describes one delta-neutral open: a long perp on one venue and a
// short of equal size on another (or the same) venue.
type OpenParams struct {
	LongExchange  string
	ShortExchange string
	Symbol        string
	BaseAsset     string
	NotionalUSD   float64
	TargetRate    float64
	// RefPrice converts USD notional into contract size. It is the caller's
	// best known mark price for the symbol.
	RefPrice float64
}

func (p OpenParams) validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("executor: open: empty symbol")
	}
	if p.NotionalUSD <= 0 {
		return fmt.Errorf("executor: open: notional must be positive, got %v", p.NotionalUSD)
	}
	if p.RefPrice <= 0 {
		return fmt.Errorf("executor: open: reference price must be positive, got %v", p.RefPrice)
	}
	return nil
}

// Coordinator opens and closes delta-neutral position pairs. Both legs of an
// open or close are submitted concurrently and both awaited; a one-sided fill
// is surfaced as *domain.LegImbalanceError with the partial position retained
// for UnwindLeg. The position table is single-writer behind the mutex:
// concurrent opens on distinct symbols are fine, concurrent opens on the same
// symbol are a caller error.
type Coordinator struct {
	mu        sync.Mutex
	clients   map[string]exchange.Client
	positions map[string]*domain.ArbPosition
	tolerance float64
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator over the given venue clients, keyed by
// exchange tag. tolerance is the delta-neutrality bound: the fraction by which
// the two legs' notionals may diverge before the pair is declared imbalanced.
func NewCoordinator(clients map[string]exchange.Client, tolerance float64, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		clients:   clients,
		positions: make(map[string]*domain.ArbPosition),
		tolerance: tolerance,
		logger:    logger.With(slog.String("component", "coordinator")),
	}
}

func (c *Coordinator) client(tag string) (exchange.Client, error) {
	cl, ok := c.clients[tag]
	if !ok {
		return nil, fmt.Errorf("executor: no client for exchange %q", tag)
	}
	return cl, nil
}

// placeLegs submits the long and short orders concurrently and waits for both
// outcomes. Neither leg's failure cancels the other: a cancelled in-flight
// order is indistinguishable from an unknown fill state, so both always run to
// their own completion or timeout.
func (c *Coordinator) placeLegs(ctx context.Context, longClient, shortClient exchange.Client, long, short domain.Order) (domain.LegOutcome, domain.LegOutcome) {
	longOut := domain.LegOutcome{Exchange: long.Exchange, Side: long.Side}
	shortOut := domain.LegOutcome{Exchange: short.Exchange, Side: short.Side}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		longOut.Order, longOut.Err = longClient.PlaceOrder(ctx, long)
	}()
	go func() {
		defer wg.Done()
		shortOut.Order, shortOut.Err = shortClient.PlaceOrder(ctx, short)
	}()
	wg.Wait()

	return longOut, shortOut
}

// Open submits both legs concurrently and reconciles the fills into a single
// ArbPosition. When exactly one leg fills, the filled leg is kept in the
// position table and the returned *domain.LegImbalanceError carries its
// position ID so the caller can invoke UnwindLeg. When both legs fail there is
// nothing to recover and a plain error is returned.
func (c *Coordinator) Open(ctx context.Context, p OpenParams) (*domain.ArbPosition, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	longClient, err := c.client(p.LongExchange)
	if err != nil {
		return nil, err
	}
	shortClient, err := c.client(p.ShortExchange)
	if err != nil {
		return nil, err
	}

	size := p.NotionalUSD / p.RefPrice
	now := time.Now().UTC()
	longOrder := domain.Order{
		Exchange:  p.LongExchange,
		Symbol:    p.Symbol,
		Side:      domain.SideLong,
		Type:      domain.OrderTypeMarket,
		Size:      size,
		CreatedAt: now,
	}
	shortOrder := longOrder
	shortOrder.Exchange = p.ShortExchange
	shortOrder.Side = domain.SideShort

	longOut, shortOut := c.placeLegs(ctx, longClient, shortClient, longOrder, shortOrder)

	if longOut.Err != nil && shortOut.Err != nil {
		return nil, fmt.Errorf("executor: open %s: both legs failed: long: %v; short: %v", p.Symbol, longOut.Err, shortOut.Err)
	}

	pos := &domain.ArbPosition{
		ID:         uuid.New().String(),
		BaseAsset:  p.BaseAsset,
		Symbol:     p.Symbol,
		TargetRate: p.TargetRate,
		Status:     domain.PositionStatusOpen,
		OpenedAt:   now,
	}
	if longOut.Err == nil {
		pos.LongLeg = legPosition(longOut.Order)
	}
	if shortOut.Err == nil {
		pos.ShortLeg = legPosition(shortOut.Order)
	}

	if longOut.Err != nil || shortOut.Err != nil {
		c.mu.Lock()
		c.positions[pos.ID] = pos
		c.mu.Unlock()
		c.logger.Error("one-sided fill",
			slog.String("position_id", pos.ID),
			slog.String("symbol", p.Symbol),
			slog.Any("long_err", longOut.Err),
			slog.Any("short_err", shortOut.Err),
		)
		return nil, &domain.LegImbalanceError{
			PositionID: pos.ID,
			Symbol:     p.Symbol,
			Long:       longOut,
			Short:      shortOut,
			Reason:     "one leg failed while the other filled",
		}
	}

	if !pos.CheckDeltaNeutral(c.tolerance) {
		c.mu.Lock()
		c.positions[pos.ID] = pos
		c.mu.Unlock()
		return nil, &domain.LegImbalanceError{
			PositionID: pos.ID,
			Symbol:     p.Symbol,
			Long:       longOut,
			Short:      shortOut,
			Reason: fmt.Sprintf("fill notionals diverge beyond tolerance: long %.2f vs short %.2f",
				pos.LongLeg.Notional(), pos.ShortLeg.Notional()),
		}
	}

	c.mu.Lock()
	c.positions[pos.ID] = pos
	c.mu.Unlock()

	c.logger.Info("position opened",
		slog.String("position_id", pos.ID),
		slog.String("symbol", p.Symbol),
		slog.String("long_exchange", p.LongExchange),
		slog.String("short_exchange", p.ShortExchange),
		slog.Float64("size", size),
		slog.Float64("target_rate", p.TargetRate),
	)
	return pos, nil
}

// AccrueFunding adds one period's funding and borrow cost to an open
// position. rate is that period's funding rate; negative rates pay the
// position.
func (c *Coordinator) AccrueFunding(positionID string, rate, borrowPerPeriod float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.positions[positionID]
	if !ok {
		return domain.ErrPositionNotFound
	}
	notional := math.Max(pos.LongLeg.Notional(), pos.ShortLeg.Notional())
	pos.FundingCollected += -rate * notional
	pos.CostsAccrued += borrowPerPeriod * notional
	return nil
}

// Close submits both closing legs concurrently and converts the position into
// a ClosedTrade. A one-sided close failure leaves the position in the table
// with both legs intact and returns *domain.LegImbalanceError.
func (c *Coordinator) Close(ctx context.Context, positionID string) (domain.ClosedTrade, error) {
	c.mu.Lock()
	pos, ok := c.positions[positionID]
	c.mu.Unlock()
	if !ok {
		return domain.ClosedTrade{}, domain.ErrPositionNotFound
	}
	if pos.Status == domain.PositionStatusClosed {
		return domain.ClosedTrade{}, domain.ErrPositionClosed
	}

	longClient, err := c.client(pos.LongLeg.Exchange)
	if err != nil {
		return domain.ClosedTrade{}, err
	}
	shortClient, err := c.client(pos.ShortLeg.Exchange)
	if err != nil {
		return domain.ClosedTrade{}, err
	}

	now := time.Now().UTC()
	closeLong := domain.Order{
		Exchange:  pos.LongLeg.Exchange,
		Symbol:    pos.Symbol,
		Side:      pos.LongLeg.Side.Opposite(),
		Type:      domain.OrderTypeMarket,
		Size:      pos.LongLeg.Size,
		CreatedAt: now,
	}
	closeShort := domain.Order{
		Exchange:  pos.ShortLeg.Exchange,
		Symbol:    pos.Symbol,
		Side:      pos.ShortLeg.Side.Opposite(),
		Type:      domain.OrderTypeMarket,
		Size:      pos.ShortLeg.Size,
		CreatedAt: now,
	}

	longOut, shortOut := c.placeLegs(ctx, longClient, shortClient, closeLong, closeShort)
	if longOut.Err != nil || shortOut.Err != nil {
		return domain.ClosedTrade{}, &domain.LegImbalanceError{
			PositionID: pos.ID,
			Symbol:     pos.Symbol,
			Long:       longOut,
			Short:      shortOut,
			Reason:     "close leg failed, position still open",
		}
	}

	c.mu.Lock()
	pos.Status = domain.PositionStatusClosed
	pos.RealizedPnL = pos.FundingCollected - pos.CostsAccrued
	delete(c.positions, positionID)
	c.mu.Unlock()

	held := int(now.Sub(pos.OpenedAt) / domain.FundingPeriod)
	trade := domain.ClosedTrade{
		ID:               uuid.New().String(),
		PositionID:       pos.ID,
		Symbol:           pos.Symbol,
		BaseAsset:        pos.BaseAsset,
		EntryRate:        pos.TargetRate,
		EntryTime:        pos.OpenedAt,
		ExitTime:         now,
		PeriodsHeld:      held,
		PositionSize:     math.Max(pos.LongLeg.Notional(), pos.ShortLeg.Notional()),
		FundingCollected: pos.FundingCollected,
		TotalCosts:       pos.CostsAccrued,
		PnL:              pos.RealizedPnL,
	}

	c.logger.Info("position closed",
		slog.String("position_id", pos.ID),
		slog.String("symbol", pos.Symbol),
		slog.Float64("funding_collected", trade.FundingCollected),
		slog.Float64("pnl", trade.PnL),
	)
	return trade, nil
}

// UnwindLeg closes a single leg of a position. It is the explicit recovery
// action after a LegImbalanceError; the decision to call it belongs to the
// caller. Once the last remaining leg is unwound the position is dropped.
func (c *Coordinator) UnwindLeg(ctx context.Context, positionID string, side domain.Side) error {
	c.mu.Lock()
	pos, ok := c.positions[positionID]
	c.mu.Unlock()
	if !ok {
		return domain.ErrPositionNotFound
	}

	leg := pos.LongLeg
	if side == domain.SideShort {
		leg = pos.ShortLeg
	}
	if leg.Size == 0 {
		return fmt.Errorf("executor: unwind %s: no %s leg to unwind", positionID, side)
	}

	client, err := c.client(leg.Exchange)
	if err != nil {
		return err
	}
	order := domain.Order{
		Exchange:  leg.Exchange,
		Symbol:    pos.Symbol,
		Side:      leg.Side.Opposite(),
		Type:      domain.OrderTypeMarket,
		Size:      leg.Size,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := client.PlaceOrder(ctx, order); err != nil {
		return fmt.Errorf("executor: unwind %s %s leg: %w", positionID, side, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if side == domain.SideLong {
		pos.LongLeg = domain.Position{}
	} else {
		pos.ShortLeg = domain.Position{}
	}
	if pos.LongLeg.Size == 0 && pos.ShortLeg.Size == 0 {
		delete(c.positions, positionID)
	}
	c.logger.Info("leg unwound",
		slog.String("position_id", positionID),
		slog.String("side", string(side)),
	)
	return nil
}

// Position returns a copy of an open position.
func (c *Coordinator) Position(positionID string) (domain.ArbPosition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.positions[positionID]
	if !ok {
		return domain.ArbPosition{}, domain.ErrPositionNotFound
	}
	return *pos, nil
}

// OpenPositions returns copies of all open positions.
func (c *Coordinator) OpenPositions() []domain.ArbPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ArbPosition, 0, len(c.positions))
	for _, pos := range c.positions {
		out = append(out, *pos)
	}
	return out
}

func legPosition(o domain.Order) domain.Position {
	return domain.Position{
		Exchange:   o.Exchange,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Size:       o.FilledSize,
		EntryPrice: o.FillPrice,
		EntryTime:  o.CreatedAt,
	}
}
