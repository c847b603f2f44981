package exchange

import (
	"context"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// Client is the interface through which the coordinator submits orders to a
// venue. Live implementations wrap a venue's private REST API; SimulatedClient
// fills orders locally for demo and test runs.
type Client interface {
	// PlaceOrder submits an order and returns the (possibly partially) filled
	// result. The returned order carries its venue-assigned ID and fill price.
	PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	// CancelOrder cancels an open order by its venue-assigned ID.
	CancelOrder(ctx context.Context, orderID, symbol string) error

	// GetPosition returns the current net position for symbol, or
	// domain.ErrPositionNotFound when the venue holds none.
	GetPosition(ctx context.Context, symbol string) (domain.Position, error)

	// GetBalance returns free balances keyed by asset.
	GetBalance(ctx context.Context) (domain.Balance, error)
}
