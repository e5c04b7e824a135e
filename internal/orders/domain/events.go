package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const EventTypeOrderPlaced = "order.placed"

type OrderPlacedEvent struct {
	OrderID  string      `json:"order_id"`
	UserID   string      `json:"user_id"`
	Amount   string      `json:"amount"`
	Items    []OrderItem `json:"items"`
	PlacedAt time.Time   `json:"placed_at"`
}

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:  o.ID.String(),
		UserID:   o.UserID,
		Amount:   o.Amount.StringFixed(2),
		Items:    o.Items,
		PlacedAt: o.CreatedAt,
	}
}

// OutboxEvent is a row of the orders outbox waiting to be published.
type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}
