package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/quickcart/internal/cart/domain"
	cartservice "github.com/fjod/quickcart/internal/cart/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxAddQuantity = 99

type CartOpener interface {
	Open(ctx context.Context, userID string) *cartservice.Store
	Clear(ctx context.Context, userID string) error
}

type PriceLister interface {
	PriceList(ctx context.Context) (map[string]decimal.Decimal, error)
}

type CartHandler struct {
	carts   CartOpener
	prices  PriceLister
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(carts CartOpener, prices PriceLister, timeout time.Duration, log *slog.Logger) *CartHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CartHandler{
		carts:   carts,
		prices:  prices,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartLineDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CartResponseDTO struct {
	Items []CartLineDTO `json:"items"`
	Count int           `json:"count"`
	Total string        `json:"total"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	store := h.carts.Open(ctx, userID)
	respondJSON(w, http.StatusOK, h.toDTO(ctx, store.Snapshot()))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxAddQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	store := h.carts.Open(ctx, userID)
	for i := 0; i < req.Quantity; i++ {
		store.Add(req.ProductID)
	}
	if err := store.Save(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved")
		return
	}

	respondJSON(w, http.StatusCreated, h.toDTO(ctx, store.Snapshot()))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if strings.TrimSpace(productID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	store := h.carts.Open(ctx, userID)
	if _, err := store.SetQuantity(productID, *req.Quantity); err != nil {
		if errors.Is(err, cartservice.ErrInvalidRequest) {
			respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
			return
		}
		handleServiceError(w, err)
		return
	}
	if err := store.Save(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved")
		return
	}

	respondJSON(w, http.StatusOK, h.toDTO(ctx, store.Snapshot()))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := h.carts.Clear(ctx, userID); err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be cleared")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toDTO prices the cart with the current catalog snapshot. Without one the
// total is reported as zero.
func (h *CartHandler) toDTO(ctx context.Context, cart domain.Cart) CartResponseDTO {
	catalog := domain.Catalog{}
	if h.prices != nil {
		prices, err := h.prices.PriceList(ctx)
		if err != nil {
			h.log.WarnContext(ctx, "price list unavailable", "error", err)
		} else {
			catalog = domain.Catalog(prices)
		}
	}

	lines := cart.Lines()
	items := make([]CartLineDTO, len(lines))
	for i, l := range lines {
		items[i] = CartLineDTO{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return CartResponseDTO{
		Items: items,
		Count: cart.Count(),
		Total: cart.TotalAmount(catalog).StringFixed(2),
	}
}
