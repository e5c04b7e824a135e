package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/quickcart/internal/orders/domain"
	orderservice "github.com/fjod/quickcart/internal/orders/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type placerMock struct {
	result *orderservice.CreateOrderResult
	err    error
	got    orderservice.CreateOrderRequest
	calls  int
}

func (m *placerMock) CreateOrder(_ context.Context, req orderservice.CreateOrderRequest) (*orderservice.CreateOrderResult, error) {
	m.calls++
	m.got = req
	return m.result, m.err
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:        uuid.MustParse("6f1c2d1e-1c8b-4b7e-9a3e-2f4d5c6b7a80"),
		UserID:    "user-1",
		AddressID: "addr-1",
		Amount:    decimal.RequireFromString("25"),
		Status:    domain.OrderStatusPlaced,
		Items: []domain.OrderItem{
			{ProductID: "P1", ProductName: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("10")},
			{ProductID: "P2", ProductName: "Pen", Quantity: 1, UnitPrice: decimal.RequireFromString("5")},
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func postOrder(h *CheckoutHandler, userID, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewBufferString(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	if userID != "" {
		req = withUser(req, userID)
	}
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)
	return rec
}

func decodePlaceOrder(t *testing.T, rec *httptest.ResponseRecorder) PlaceOrderResponseDTO {
	t.Helper()
	var resp PlaceOrderResponseDTO
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

const validOrderBody = `{"addressId":"addr-1","items":[{"productId":"P1","quantity":2},{"productId":"P2","quantity":1}]}`

func TestPlaceOrder_Created(t *testing.T) {
	placer := &placerMock{result: &orderservice.CreateOrderResult{Order: sampleOrder(), Created: true}}
	carts := newCartsMock()
	handler := NewCheckoutHandler(placer, carts, 5*time.Second, nil)

	rec := postOrder(handler, "user-1", validOrderBody, "key-1")

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status code %d, got %d", http.StatusCreated, rec.Code)
	}
	resp := decodePlaceOrder(t, rec)
	if !resp.Success || resp.Order == nil {
		t.Fatalf("Expected success with order, got %+v", resp)
	}
	if resp.Order.Amount != "25.00" || resp.Order.Status != "Placed" {
		t.Errorf("Expected amount 25.00 and status Placed, got %s and %s", resp.Order.Amount, resp.Order.Status)
	}
	if resp.Order.CreatedAt != "2026-01-02T03:04:05Z" {
		t.Errorf("Unexpected createdAt %s", resp.Order.CreatedAt)
	}

	if placer.got.UserID != "user-1" || placer.got.AddressID != "addr-1" || placer.got.IdempotencyKey != "key-1" {
		t.Errorf("Unexpected request forwarded: %+v", placer.got)
	}
	if len(placer.got.Items) != 2 || placer.got.Items[0] != (domain.LineItem{ProductID: "P1", Quantity: 2}) {
		t.Errorf("Unexpected items forwarded: %+v", placer.got.Items)
	}
	if len(carts.cleared) != 1 || carts.cleared[0] != "user-1" {
		t.Errorf("Expected cart of user-1 to be cleared, got %v", carts.cleared)
	}
}

func TestPlaceOrder_Replay(t *testing.T) {
	placer := &placerMock{result: &orderservice.CreateOrderResult{Order: sampleOrder(), Created: false}}
	carts := newCartsMock()
	handler := NewCheckoutHandler(placer, carts, 5*time.Second, nil)

	rec := postOrder(handler, "user-1", validOrderBody, "key-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, rec.Code)
	}
	resp := decodePlaceOrder(t, rec)
	if !resp.Success || resp.Order == nil || resp.Order.ID != sampleOrder().ID.String() {
		t.Errorf("Expected replayed order, got %+v", resp)
	}
	if len(carts.cleared) != 0 {
		t.Errorf("Replay must not clear the cart, cleared %v", carts.cleared)
	}
}

func TestPlaceOrder_NoCartClearer(t *testing.T) {
	placer := &placerMock{result: &orderservice.CreateOrderResult{Order: sampleOrder(), Created: true}}
	handler := NewCheckoutHandler(placer, nil, 5*time.Second, nil)

	rec := postOrder(handler, "user-1", validOrderBody, "")

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, rec.Code)
	}
}

func TestPlaceOrder_Unauthorized(t *testing.T) {
	placer := &placerMock{}
	handler := NewCheckoutHandler(placer, nil, 5*time.Second, nil)

	rec := postOrder(handler, "", validOrderBody, "")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status code %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if resp := decodePlaceOrder(t, rec); resp.Success || resp.Message == "" {
		t.Errorf("Expected failure envelope with message, got %+v", resp)
	}
	if placer.calls != 0 {
		t.Errorf("Expected no service calls, got %d", placer.calls)
	}
}

func TestPlaceOrder_BadBody(t *testing.T) {
	placer := &placerMock{}
	handler := NewCheckoutHandler(placer, nil, 5*time.Second, nil)

	rec := postOrder(handler, "user-1", `{"addressId":`, "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if placer.calls != 0 {
		t.Errorf("Expected no service calls, got %d", placer.calls)
	}
}

func TestPlaceOrder_ErrorStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{fmt.Errorf("%w: at least one item is required", orderservice.ErrInvalidRequest), http.StatusBadRequest},
		{orderservice.ErrUnauthorized, http.StatusUnauthorized},
		{&orderservice.ProductNotFoundError{ProductID: "GHOST"}, http.StatusNotFound},
		{fmt.Errorf("%w: timeout", orderservice.ErrCheckoutInProgress), http.StatusConflict},
		{fmt.Errorf("%w: breaker open", orderservice.ErrCatalogUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: connection reset", orderservice.ErrPersistenceFailure), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			placer := &placerMock{err: tt.err}
			carts := newCartsMock()
			handler := NewCheckoutHandler(placer, carts, 5*time.Second, nil)

			rec := postOrder(handler, "user-1", validOrderBody, "")

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status code %d, got %d", tt.wantStatus, rec.Code)
			}
			resp := decodePlaceOrder(t, rec)
			if resp.Success || resp.Order != nil || resp.Message == "" {
				t.Errorf("Expected failure envelope, got %+v", resp)
			}
			if len(carts.cleared) != 0 {
				t.Errorf("Failed order must not clear the cart")
			}
		})
	}
}

func TestPlaceOrder_ServerSideMessagesHideCause(t *testing.T) {
	tests := []struct {
		err         error
		wantMessage string
	}{
		{fmt.Errorf("%w: lock lock:checkout:user-1 not acquired", orderservice.ErrCheckoutInProgress),
			"another checkout for this user is in progress"},
		{fmt.Errorf("%w: resolve P1: circuit breaker is open", orderservice.ErrCatalogUnavailable),
			"product catalog is temporarily unavailable"},
		{fmt.Errorf("%w: pq: connection refused", orderservice.ErrPersistenceFailure),
			"order could not be placed"},
	}

	for _, tt := range tests {
		t.Run(tt.wantMessage, func(t *testing.T) {
			handler := NewCheckoutHandler(&placerMock{err: tt.err}, nil, 5*time.Second, nil)

			resp := decodePlaceOrder(t, postOrder(handler, "user-1", validOrderBody, ""))

			if resp.Message != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, resp.Message)
			}
			if strings.Contains(resp.Message, "lock:") || strings.Contains(resp.Message, "pq:") ||
				strings.Contains(resp.Message, "breaker") {
				t.Errorf("Message leaks internal detail: %q", resp.Message)
			}
		})
	}
}

func TestPlaceOrder_ProductNotFoundNamesProduct(t *testing.T) {
	placer := &placerMock{err: &orderservice.ProductNotFoundError{ProductID: "GHOST"}}
	handler := NewCheckoutHandler(placer, nil, 5*time.Second, nil)

	resp := decodePlaceOrder(t, postOrder(handler, "user-1", validOrderBody, ""))

	if resp.Message != "product not found: GHOST" {
		t.Errorf("Unexpected message %q", resp.Message)
	}
}
