package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/quickcart/internal/product/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductStore interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
}

type ProductHandler struct {
	products ProductStore
	timeout  time.Duration
}

func NewProductHandler(products ProductStore, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
	}
}

type ProductResponse struct {
	ID          string   `json:"id"`
	SellerID    string   `json:"sellerId,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       string   `json:"price"`
	OfferPrice  string   `json:"offerPrice"`
	ImageURLs   []string `json:"imageUrls"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

// CreateProductRequestDTO has no seller field; the seller is always the
// authenticated user.
type CreateProductRequestDTO struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	OfferPrice  decimal.Decimal `json:"offerPrice"`
	ImageURLs   []string        `json:"imageUrls"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	images := p.ImageURLs
	if images == nil {
		images = []string{}
	}
	return ProductResponse{
		ID:          p.ID,
		SellerID:    p.SellerID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price.StringFixed(2),
		OfferPrice:  p.OfferPrice.StringFixed(2),
		ImageURLs:   images,
	}
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.products.GetAllProducts(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	products := make([]ProductResponse, len(res))
	for i, p := range res {
		products[i] = toProductResponse(p)
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.products.GetProduct(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p))
}

// POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateProductRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	p := &domain.Product{
		SellerID:    userID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		OfferPrice:  req.OfferPrice,
		ImageURLs:   req.ImageURLs,
	}
	if err := h.products.CreateProduct(ctx, p); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProductResponse(p))
}
