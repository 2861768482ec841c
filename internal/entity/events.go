package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a domain event published to the message broker.
type Event interface {
	EventType() string
}

// OrderPlaced is emitted when an order record has been created.
type OrderPlaced struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PlacedAt    time.Time       `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// OrderConfirmed is emitted once payment is captured and the order settled.
// Downstream consumers use it for confirmation notifications.
type OrderConfirmed struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Method      string          `json:"method"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

func (e OrderConfirmed) EventType() string { return "OrderConfirmed" }
