package repository

import (
	"context"
	"errors"

	"github.com/fjod/quickcart/internal/orders/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicateOrder means an order with the same (user, idempotency key) exists.
	ErrDuplicateOrder = errors.New("duplicate order for idempotency key")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

type OrderRepository interface {
	// CreateOrder stores the order and its order.placed outbox event atomically.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}

type OutboxRepository interface {
	GetUnpublishedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsPublished(ctx context.Context, id uuid.UUID) error
}
