package repository

import (
	"context"
	"errors"

	"github.com/fjod/quickcart/internal/cart/domain"
)

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrMalformedCart = errors.New("stored cart is malformed")
)

// CartRepository persists the per-user cart blob.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	SaveCart(ctx context.Context, userID string, cart domain.Cart) error
	DeleteCart(ctx context.Context, userID string) error
}
