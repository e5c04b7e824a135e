package http

import (
	"errors"
	"log/slog"
	"net/http"

	orderservice "github.com/fjod/quickcart/internal/orders/service"
	productdomain "github.com/fjod/quickcart/internal/product/domain"
	productrepo "github.com/fjod/quickcart/internal/product/repository"
)

// statusFor maps service errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, orderservice.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, orderservice.ErrInvalidRequest), errors.Is(err, productdomain.ErrInvalidProduct):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, orderservice.ErrProductNotFound), errors.Is(err, productrepo.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, orderservice.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, orderservice.ErrCheckoutInProgress):
		return http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, orderservice.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable, "catalog_unavailable"
	case errors.Is(err, orderservice.ErrPersistenceFailure):
		return http.StatusInternalServerError, "persistence_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// clientMessage is the text shown to callers. Client errors keep the service
// message; conflicts and server-side failures get a fixed text since their
// causes carry lock keys and driver errors.
func clientMessage(err error, status int, code string) string {
	switch {
	case code == "checkout_in_progress":
		return "another checkout for this user is in progress"
	case code == "catalog_unavailable":
		return "product catalog is temporarily unavailable"
	case status >= http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusConflict {
		slog.Error("request failed", "status", status, "code", code, "error", err)
	}
	respondError(w, status, code, clientMessage(err, status, code))
}
