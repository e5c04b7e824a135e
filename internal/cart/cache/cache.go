package cache

import (
	"context"
	"errors"

	"github.com/fjod/quickcart/internal/cart/domain"
)

// CartCache fronts the cart repository. Get reports ErrCacheMiss when the
// user has no entry.
type CartCache interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Set(ctx context.Context, userID string, cart domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
