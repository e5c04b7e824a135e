package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/quickcart/internal/orders/domain"
	orderservice "github.com/fjod/quickcart/internal/orders/service"
)

const idempotencyHeader = "Idempotency-Key"

type OrderPlacer interface {
	CreateOrder(ctx context.Context, req orderservice.CreateOrderRequest) (*orderservice.CreateOrderResult, error)
}

type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

type CheckoutHandler struct {
	orders OrderPlacer
	// carts is cleared after a new order. Nil when the order-placed consumer
	// does it instead.
	carts   CartClearer
	timeout time.Duration
	log     *slog.Logger
}

func NewCheckoutHandler(orders OrderPlacer, carts CartClearer, timeout time.Duration, log *slog.Logger) *CheckoutHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CheckoutHandler{
		orders:  orders,
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

type CheckoutItemDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderRequestDTO struct {
	AddressID string            `json:"addressId"`
	Items     []CheckoutItemDTO `json:"items"`
}

type PlaceOrderResponseDTO struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Order   *OrderDTO `json:"order,omitempty"`
}

// POST /api/v1/orders
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondJSON(w, http.StatusUnauthorized, PlaceOrderResponseDTO{Message: "missing user authentication"})
		return
	}

	var req PlaceOrderRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, PlaceOrderResponseDTO{Message: err.Error()})
		return
	}

	items := make([]domain.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	res, err := h.orders.CreateOrder(ctx, orderservice.CreateOrderRequest{
		UserID:         userID,
		AddressID:      req.AddressID,
		Items:          items,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
	})
	if err != nil {
		status, code := statusFor(err)
		message := clientMessage(err, status, code)
		if status == http.StatusInternalServerError {
			message = "order could not be placed"
		}
		if status >= http.StatusInternalServerError || status == http.StatusConflict {
			h.log.ErrorContext(ctx, "place order failed", "user_id", userID, "status", status, "error", err)
		}
		respondJSON(w, status, PlaceOrderResponseDTO{Message: message})
		return
	}

	if !res.Created {
		respondJSON(w, http.StatusOK, PlaceOrderResponseDTO{
			Success: true,
			Message: "order already placed",
			Order:   toOrderDTO(res.Order),
		})
		return
	}

	if h.carts != nil {
		if err := h.carts.Clear(ctx, userID); err != nil {
			h.log.WarnContext(ctx, "cart clear after order failed", "user_id", userID, "order_id", res.Order.ID, "error", err)
		}
	}

	respondJSON(w, http.StatusCreated, PlaceOrderResponseDTO{
		Success: true,
		Message: "Order Placed Successfully",
		Order:   toOrderDTO(res.Order),
	})
}
