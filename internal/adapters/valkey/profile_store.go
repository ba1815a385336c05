package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/ports"
)

// ProfileStore implements ports.ProfileStore under profile:{user}. Profiles do not expire.
type ProfileStore struct {
	kv ports.CacheService
}

func NewProfileStore(kv ports.CacheService) *ProfileStore {
	return &ProfileStore{kv: kv}
}

func profileKey(userID string) string {
	return "profile:" + userID
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	data, err := s.kv.Get(ctx, profileKey(userID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no profile for user %s", domain.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.Favorites == nil {
		p.Favorites = []string{}
	}
	return &p, nil
}

func (s *ProfileStore) Save(ctx context.Context, p *domain.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, profileKey(p.ID), data, 0); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
