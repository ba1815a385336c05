package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/ports"
)

// DefaultCartTTL keeps an untouched cart for a week.
const DefaultCartTTL = 7 * 24 * time.Hour

// CartStore implements ports.CartStore as one JSON document per user under cart:{user}.
type CartStore struct {
	kv  ports.CacheService
	ttl time.Duration
}

func NewCartStore(kv ports.CacheService, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &CartStore{kv: kv, ttl: ttl}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

// Get returns the stored cart, or an empty one when the user has none.
func (s *CartStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := s.kv.Get(ctx, cartKey(userID))
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Cart{Items: []domain.CartItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

func (s *CartStore) Save(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, cartKey(userID), data, int(s.ttl.Seconds())); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *CartStore) Delete(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, cartKey(userID))
}
