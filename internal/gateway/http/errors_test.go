package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	orderservice "github.com/fjod/quickcart/internal/orders/service"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"invalid request keeps cause", fmt.Errorf("%w: malformed order id", orderservice.ErrInvalidRequest),
			http.StatusBadRequest, "invalid_request", "invalid request: malformed order id"},
		{"order not found", orderservice.ErrOrderNotFound,
			http.StatusNotFound, "order_not_found", orderservice.ErrOrderNotFound.Error()},
		{"lock key hidden", fmt.Errorf("%w: lock:checkout:u1 held", orderservice.ErrCheckoutInProgress),
			http.StatusConflict, "checkout_in_progress", "another checkout for this user is in progress"},
		{"breaker hidden", fmt.Errorf("%w: circuit breaker is open", orderservice.ErrCatalogUnavailable),
			http.StatusServiceUnavailable, "catalog_unavailable", "product catalog is temporarily unavailable"},
		{"driver error hidden", fmt.Errorf("%w: pq: connection refused", orderservice.ErrPersistenceFailure),
			http.StatusInternalServerError, "persistence_failure", "internal server error"},
		{"unknown error hidden", errors.New("boom"),
			http.StatusInternalServerError, "internal_error", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status code %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Code != tt.wantCode || resp.Error != tt.wantMessage {
				t.Errorf("Expected %s %q, got %s %q", tt.wantCode, tt.wantMessage, resp.Code, resp.Error)
			}
		})
	}
}
