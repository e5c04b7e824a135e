package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fjod/quickcart/internal/cart/domain"
	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("invalid request")

type Saver interface {
	Save(ctx context.Context, userID string, cart domain.Cart) error
}

// Store is one session's view of a cart. Mutations publish a new snapshot
// atomically; readers always see a whole snapshot.
type Store struct {
	userID string
	snap   atomic.Pointer[domain.Cart]
	saver  Saver
}

func NewStore(userID string, initial domain.Cart, saver Saver) *Store {
	s := &Store{userID: userID, saver: saver}
	s.snap.Store(&initial)
	return s
}

func (s *Store) UserID() string {
	return s.userID
}

func (s *Store) Snapshot() domain.Cart {
	return *s.snap.Load()
}

// update applies fn to the current snapshot and retries if another mutation
// won the race.
func (s *Store) update(fn func(domain.Cart) (domain.Cart, error)) (domain.Cart, error) {
	for {
		cur := s.snap.Load()
		next, err := fn(*cur)
		if err != nil {
			return *cur, err
		}
		if s.snap.CompareAndSwap(cur, &next) {
			return next, nil
		}
	}
}

func (s *Store) Add(productID string) domain.Cart {
	next, _ := s.update(func(c domain.Cart) (domain.Cart, error) {
		return c.Add(productID), nil
	})
	return next
}

// SetQuantity sets productID to qty; zero removes it. Negative quantities
// are rejected with ErrInvalidRequest and the snapshot is left as is.
func (s *Store) SetQuantity(productID string, qty int) (domain.Cart, error) {
	next, err := s.update(func(c domain.Cart) (domain.Cart, error) {
		return c.SetQuantity(productID, qty)
	})
	if err != nil {
		return next, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return next, nil
}

func (s *Store) Count() int {
	return s.Snapshot().Count()
}

func (s *Store) TotalAmount(catalog domain.Catalog) decimal.Decimal {
	return s.Snapshot().TotalAmount(catalog)
}

// Reset drops every line locally. Persist with Save.
func (s *Store) Reset() {
	empty := domain.Empty()
	s.snap.Store(&empty)
}

// Save writes the current snapshot. A failure is returned to the caller and
// the in-memory snapshot is kept.
func (s *Store) Save(ctx context.Context) error {
	if s.saver == nil {
		return nil
	}
	return s.saver.Save(ctx, s.userID, s.Snapshot())
}
