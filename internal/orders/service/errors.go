package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrProductNotFound    = errors.New("product not found")
	ErrPersistenceFailure = errors.New("order could not be saved")
	ErrCheckoutInProgress = errors.New("another checkout is in progress for this user")
	ErrCatalogUnavailable = errors.New("product catalog unavailable")
	ErrOrderNotFound      = errors.New("order not found")
)

// ProductNotFoundError names the product that failed to resolve.
// It matches ErrProductNotFound with errors.Is.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}
