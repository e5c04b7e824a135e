package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/quickcart/internal/orders/domain"
	"github.com/fjod/quickcart/internal/orders/repository"
	productdomain "github.com/fjod/quickcart/internal/product/domain"
	"github.com/fjod/quickcart/pkg/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogReader resolves products at order time. A missing product must be
// reported with an error matching ErrProductNotFound.
type CatalogReader interface {
	GetProduct(ctx context.Context, id string) (*productdomain.Product, error)
}

// MaxLineQuantity caps one product's quantity in an order after repeated
// lines are merged.
const MaxLineQuantity = 10_000

type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type CreateOrderRequest struct {
	UserID         string
	AddressID      string
	Items          []domain.LineItem
	IdempotencyKey string
}

type CreateOrderResult struct {
	Order *domain.Order
	// Created is false when an earlier order with the same idempotency key was returned.
	Created bool
}

type OrderService struct {
	repo    repository.OrderRepository
	catalog CatalogReader
	locker  Locker
	clock   clock.Clock
	log     *slog.Logger
}

func NewOrderService(
	repo repository.OrderRepository,
	catalog CatalogReader,
	locker Locker,
	clk clock.Clock,
	log *slog.Logger,
) *OrderService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = slog.Default()
	}
	return &OrderService{
		repo:    repo,
		catalog: catalog,
		locker:  locker,
		clock:   clk,
		log:     log.With("component", "order-service"),
	}
}

// CreateOrder prices req.Items against the catalog and stores one order in
// status Placed. Nothing is written unless every product resolves.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUnauthorized
	}
	lines, err := validate(req)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, req.UserID)
		if err != nil {
			s.log.WarnContext(ctx, "checkout lock not acquired", "user_id", req.UserID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrCheckoutInProgress, err)
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				s.log.Warn("checkout lock release failed", "user_id", req.UserID, "error", err)
			}
		}()
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.GetOrderByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		switch {
		case err == nil:
			s.log.InfoContext(ctx, "duplicate checkout request",
				"user_id", req.UserID, "idempotency_key", req.IdempotencyKey, "order_id", existing.ID)
			return &CreateOrderResult{Order: existing, Created: false}, nil
		case !errors.Is(err, repository.ErrOrderNotFound):
			return nil, fmt.Errorf("%w: idempotency lookup: %v", ErrPersistenceFailure, err)
		}
	}

	items, amount, err := s.price(ctx, lines)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:             uuid.New(),
		UserID:         req.UserID,
		Items:          items,
		Amount:         amount,
		AddressID:      req.AddressID,
		Status:         domain.OrderStatusPlaced,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.clock.Now(),
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			existing, getErr := s.repo.GetOrderByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if getErr == nil {
				return &CreateOrderResult{Order: existing, Created: false}, nil
			}
			err = errors.Join(err, getErr)
		}
		s.log.ErrorContext(ctx, "order persist failed", "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	s.log.InfoContext(ctx, "order placed",
		"order_id", order.ID, "user_id", order.UserID, "amount", order.Amount.StringFixed(2), "lines", len(order.Items))
	return &CreateOrderResult{Order: order, Created: true}, nil
}

// validate checks the request shape and merges repeated product ids,
// keeping first-seen order.
func validate(req CreateOrderRequest) ([]domain.LineItem, error) {
	if strings.TrimSpace(req.AddressID) == "" {
		return nil, fmt.Errorf("%w: address id is required", ErrInvalidRequest)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	}

	lines := make([]domain.LineItem, 0, len(req.Items))
	index := make(map[string]int, len(req.Items))
	for _, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, fmt.Errorf("%w: item without product id", ErrInvalidRequest)
		}
		if it.Quantity <= 0 || it.Quantity > MaxLineQuantity {
			return nil, fmt.Errorf("%w: quantity of %s must be between 1 and %d", ErrInvalidRequest, it.ProductID, MaxLineQuantity)
		}
		if i, ok := index[it.ProductID]; ok {
			if lines[i].Quantity > MaxLineQuantity-it.Quantity {
				return nil, fmt.Errorf("%w: quantity of %s exceeds %d", ErrInvalidRequest, it.ProductID, MaxLineQuantity)
			}
			lines[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(lines)
		lines = append(lines, it)
	}
	return lines, nil
}

// price resolves every line in order and stops at the first failure.
func (s *OrderService) price(ctx context.Context, lines []domain.LineItem) ([]domain.OrderItem, decimal.Decimal, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	amount := decimal.Zero

	for _, line := range lines {
		p, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				s.log.InfoContext(ctx, "order rejected, unknown product", "product_id", line.ProductID)
				return nil, decimal.Zero, &ProductNotFoundError{ProductID: line.ProductID}
			}
			return nil, decimal.Zero, fmt.Errorf("%w: resolve %s: %v", ErrCatalogUnavailable, line.ProductID, err)
		}

		amount = amount.Add(p.OfferPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			UnitPrice:   p.OfferPrice,
		})
	}
	return items, amount, nil
}

// GetOrder returns the order only to its owner.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed order id", ErrInvalidRequest)
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) || (err == nil && order.UserID != userID) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	orders, err := s.repo.ListOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
