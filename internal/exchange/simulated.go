package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// SimulatedClient is an in-memory venue that fills every market order at a
// fixed reference price. It backs demo execution runs and the coordinator
// tests. All methods are safe for concurrent use.
type SimulatedClient struct {
	mu        sync.Mutex
	exchange  string
	balance   float64
	fillPrice float64
	positions map[string]domain.Position
	orders    []domain.Order
	logger    *slog.Logger

	// FailNext makes the next PlaceOrder call return an error, used to
	// exercise one-leg failure handling.
	FailNext bool
}

var _ Client = (*SimulatedClient)(nil)

// NewSimulatedClient creates a simulated venue with the given starting USDT
// balance. Orders fill at fillPrice unless they carry a limit price.
func NewSimulatedClient(exchange string, initialBalance, fillPrice float64, logger *slog.Logger) *SimulatedClient {
	return &SimulatedClient{
		exchange:  exchange,
		balance:   initialBalance,
		fillPrice: fillPrice,
		positions: make(map[string]domain.Position),
		logger:    logger.With(slog.String("component", "sim_exchange"), slog.String("exchange", exchange)),
	}
}

// PlaceOrder fills the order immediately and nets it against any existing
// position on the same symbol: same side adds at a blended entry price,
// opposite side reduces or closes.
func (c *SimulatedClient) PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailNext {
		c.FailNext = false
		return domain.Order{}, fmt.Errorf("exchange: %s: simulated order rejection", c.exchange)
	}

	order.ID = "sim_" + uuid.New().String()
	order.Status = domain.OrderStatusFilled
	order.FilledSize = order.Size
	order.FillPrice = order.Price
	if order.FillPrice == 0 {
		order.FillPrice = c.fillPrice
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	pos, exists := c.positions[order.Symbol]
	switch {
	case !exists:
		c.positions[order.Symbol] = domain.Position{
			Exchange:   c.exchange,
			Symbol:     order.Symbol,
			Side:       order.Side,
			Size:       order.FilledSize,
			EntryPrice: order.FillPrice,
			EntryTime:  time.Now().UTC(),
		}
	case pos.Side == order.Side:
		newSize := pos.Size + order.FilledSize
		pos.EntryPrice = (pos.EntryPrice*pos.Size + order.FillPrice*order.FilledSize) / newSize
		pos.Size = newSize
		c.positions[order.Symbol] = pos
	default:
		if order.FilledSize >= pos.Size {
			delete(c.positions, order.Symbol)
		} else {
			pos.Size -= order.FilledSize
			c.positions[order.Symbol] = pos
		}
	}

	c.orders = append(c.orders, order)
	c.logger.Debug("order filled",
		slog.String("order_id", order.ID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Float64("size", order.FilledSize),
		slog.Float64("fill_price", order.FillPrice),
	)
	return order, nil
}

// CancelOrder is a no-op: simulated orders fill instantly.
func (c *SimulatedClient) CancelOrder(ctx context.Context, orderID, symbol string) error {
	return ctx.Err()
}

func (c *SimulatedClient) GetPosition(ctx context.Context, symbol string) (domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return domain.Position{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.positions[symbol]
	if !ok {
		return domain.Position{}, domain.ErrPositionNotFound
	}
	return pos, nil
}

func (c *SimulatedClient) GetBalance(ctx context.Context) (domain.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Balance{"USDT": c.balance}, nil
}

// OrderCount returns the number of orders placed so far.
func (c *SimulatedClient) OrderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.orders)
}
