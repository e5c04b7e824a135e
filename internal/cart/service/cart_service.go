package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/quickcart/internal/cart/cache"
	"github.com/fjod/quickcart/internal/cart/domain"
	"github.com/fjod/quickcart/internal/cart/repository"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // collapses concurrent loads of the same user
	log   *slog.Logger

	// gens counts cache invalidations per user. A cache fill started before
	// an invalidation must not land after it.
	genMu sync.Mutex
	gens  map[string]uint64
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, log *slog.Logger) *CartService {
	if log == nil {
		log = slog.Default()
	}
	return &CartService{
		repo:  repo,
		cache: cache,
		log:   log,
		gens:  make(map[string]uint64),
	}
}

// Load returns the saved cart of userID. It never fails: a missing,
// malformed or unreadable cart loads as empty and the cause is logged.
func (s *CartService) Load(ctx context.Context, userID string) domain.Cart {
	v, _, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cart cache get failed", "user_id", userID, "error", err)
		}

		gen := s.generation(userID)
		cart, err = s.repo.GetCart(ctx, userID)
		switch {
		case errors.Is(err, repository.ErrCartNotFound):
			return domain.Empty(), nil
		case errors.Is(err, repository.ErrMalformedCart):
			s.log.WarnContext(ctx, "discarding malformed cart", "user_id", userID, "error", err)
			return domain.Empty(), nil
		case err != nil:
			s.log.ErrorContext(ctx, "cart load failed, starting empty", "user_id", userID, "error", err)
			return domain.Empty(), nil
		}

		go s.fillCache(userID, cart, gen)

		return cart, nil
	})

	return v.(domain.Cart)
}

// Open hydrates a Store for userID that saves back through this service.
func (s *CartService) Open(ctx context.Context, userID string) *Store {
	return NewStore(userID, s.Load(ctx, userID), s)
}

func (s *CartService) Save(ctx context.Context, userID string, cart domain.Cart) error {
	if err := s.repo.SaveCart(ctx, userID, cart); err != nil {
		s.log.ErrorContext(ctx, "cart save failed", "user_id", userID, "error", err)
		return fmt.Errorf("save cart: %w", err)
	}

	s.invalidateCache(userID)
	return nil
}

// Clear removes the saved cart. Clearing a cart that does not exist succeeds.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.log.ErrorContext(ctx, "cart delete failed", "user_id", userID, "error", err)
		return fmt.Errorf("clear cart: %w", err)
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[userID]
}

// fillCache writes cart unless the user's cache was invalidated after gen
// was read. The check and the write share genMu with invalidateCache.
func (s *CartService) fillCache(userID string, cart domain.Cart, gen uint64) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[userID] != gen {
		s.log.Debug("skipping stale cart cache fill", "user_id", userID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, userID, cart); err != nil {
		s.log.Warn("cart cache set failed", "user_id", userID, "error", err)
	}
}

func (s *CartService) invalidateCache(userID string) {
	s.genMu.Lock()
	s.gens[userID]++
	s.genMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cart cache invalidate failed", "user_id", userID, "error", err)
	}
}
