package domain

import "time"

// Side indicates the direction of a position or order leg.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the closing side for this side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// OrderType indicates how an order is priced.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusFilled  OrderStatus = "filled"
	OrderStatusFailed  OrderStatus = "failed"
)

// Order is one order submitted to a venue.
type Order struct {
	ID         string
	Exchange   string
	Symbol     string
	Side       Side
	Type       OrderType
	Size       float64
	Price      float64 // limit price; zero for market orders
	FillPrice  float64
	FilledSize float64
	Status     OrderStatus
	CreatedAt  time.Time
}

// Balance is a per-currency account balance at one venue.
type Balance map[string]float64
