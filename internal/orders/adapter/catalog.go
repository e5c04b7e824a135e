package adapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/quickcart/internal/orders/service"
	productdomain "github.com/fjod/quickcart/internal/product/domain"
	productrepo "github.com/fjod/quickcart/internal/product/repository"
	"github.com/fjod/quickcart/pkg/circuitbreaker"
)

type ProductGetter interface {
	GetProduct(ctx context.Context, id string) (*productdomain.Product, error)
}

// Catalog reads products for the order service through a circuit breaker
// and a per-call timeout. Not-found answers do not count against the breaker.
type Catalog struct {
	products ProductGetter
	breaker  *circuitbreaker.Breaker[*productdomain.Product]
	timeout  time.Duration
}

func NewCatalog(products ProductGetter, timeout time.Duration, log *slog.Logger) *Catalog {
	return &Catalog{
		products: products,
		timeout:  timeout,
		breaker: circuitbreaker.New[*productdomain.Product](circuitbreaker.Options{
			Name:     "product-catalog",
			Expected: func(err error) bool { return errors.Is(err, productrepo.ErrProductNotFound) },
			Logger:   log,
		}),
	}
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (*productdomain.Product, error) {
	p, err := c.breaker.Execute(func() (*productdomain.Product, error) {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return c.products.GetProduct(callCtx, id)
	})
	if errors.Is(err, productrepo.ErrProductNotFound) {
		return nil, &service.ProductNotFoundError{ProductID: id}
	}
	return p, err
}
