package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/ports"
)

// CartService manages per-user booking carts.
type CartService struct {
	carts ports.CartStore
	now   func() time.Time
}

// NewCartService creates a new CartService.
func NewCartService(carts ports.CartStore) *CartService {
	return &CartService{carts: carts, now: time.Now}
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return nil
}

// Get returns the user's cart; an unknown user has an empty cart.
func (s *CartService) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		cart = &domain.Cart{}
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return cart, nil
}

// Add appends an item with a fresh id and returns the updated cart.
func (s *CartService) Add(ctx context.Context, userID string, item domain.CartItem) (*domain.Cart, error) {
	if item.StationName == "" {
		return nil, fmt.Errorf("%w: station name is required", domain.ErrInvalidInput)
	}
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	item.ID = uuid.NewString()
	item.AddedAt = s.now().UTC()
	cart.Items = append(cart.Items, item)

	if err := s.carts.Save(ctx, userID, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// Remove drops one item. Removing an unknown id leaves the cart unchanged.
func (s *CartService) Remove(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := cart.Items[:0]
	for _, it := range cart.Items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	cart.Items = kept

	if err := s.carts.Save(ctx, userID, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := s.carts.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	return &domain.Cart{Items: []domain.CartItem{}}, nil
}

// Total sums the item amounts.
func (s *CartService) Total(cart *domain.Cart) float64 {
	var total float64
	for _, it := range cart.Items {
		total += it.Amount
	}
	return total
}
