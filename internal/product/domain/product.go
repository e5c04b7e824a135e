package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("invalid product")

type Product struct {
	ID          string          `json:"id"`
	SellerID    string          `json:"seller_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	OfferPrice  decimal.Decimal `json:"offer_price"`
	ImageURLs   []string        `json:"image_urls"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate checks the fields a seller must supply. OfferPrice is what buyers pay.
func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case p.OfferPrice.IsNegative():
		return fmt.Errorf("%w: offer price must not be negative", ErrInvalidProduct)
	}
	return nil
}
