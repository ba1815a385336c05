package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/ports"
)

// MaxFavorites bounds the favorite stations kept per profile.
const MaxFavorites = 200

// ProfileService reads and updates user profiles.
type ProfileService struct {
	profiles ports.ProfileStore
	now      func() time.Time
}

func NewProfileService(profiles ports.ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles, now: time.Now}
}

// Get returns the user's profile, or domain.ErrNotFound when none was saved yet.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Update merges upd into the stored profile. The first update of a user creates it.
func (s *ProfileService) Update(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	p, err := s.profiles.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		p = &domain.Profile{ID: userID, Favorites: []string{}, CreatedAt: now}
	case err != nil:
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if upd.Email != nil {
		p.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be blank", domain.ErrInvalidInput)
		}
		p.Name = name
	}
	if upd.Favorites != nil {
		favs, err := normalizeFavorites(upd.Favorites)
		if err != nil {
			return nil, err
		}
		p.Favorites = favs
	}
	p.ID = userID
	p.UpdatedAt = now

	if err := s.profiles.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

// normalizeFavorites trims ids, drops blanks and duplicates, and keeps the first
// occurrence order.
func normalizeFavorites(ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) > MaxFavorites {
		return nil, fmt.Errorf("%w: at most %d favorites, got %d", domain.ErrInvalidInput, MaxFavorites, len(out))
	}
	return out, nil
}
