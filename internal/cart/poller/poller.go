package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic = "orders.placed"
	groupID      = "cart-service-consumer"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// Poller consumes order-placed events and clears the ordering user's saved cart.
type Poller struct {
	carts  CartClearer
	reader MessageReader
	log    *slog.Logger
}

type orderPlaced struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

func NewPoller(carts CartClearer, log *slog.Logger, topic string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return NewPollerWithReader(carts, reader, log)
}

func NewPollerWithReader(carts CartClearer, reader MessageReader, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{carts: carts, reader: reader, log: log.With("component", "cart-poller")}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for ctx.Err() == nil {
		p.handleNext(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing reader", "error", err)
	}
}

func (p *Poller) handleNext(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.log.Error("error reading message", "error", err)
		}
		return
	}

	var event orderPlaced
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.Error("error parsing message", "offset", m.Offset, "error", err)
		return
	}
	if event.UserID == "" {
		p.log.Warn("order event without user_id", "offset", m.Offset, "order_id", event.OrderID)
		return
	}

	if err := p.carts.Clear(ctx, event.UserID); err != nil {
		p.log.Error("failed to clear cart", "user_id", event.UserID, "order_id", event.OrderID, "error", err)
		return
	}
	p.log.Debug("cart cleared after order", "user_id", event.UserID, "order_id", event.OrderID)
}
