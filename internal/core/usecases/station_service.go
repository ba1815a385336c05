package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stazy/chargeshare/internal/core/catalog"
	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/filter"
	"github.com/stazy/chargeshare/internal/core/ports"
)

// Station listing limits.
const (
	MaxListLimit      = 5000
	DefaultSearchSize = 100
	MaxSearchSize     = 1000
)

// StationService handles catalog queries.
type StationService struct {
	stations ports.StationRepository
	cache    ports.CacheService
	store    *catalog.Store
}

// NewStationService creates a new StationService.
func NewStationService(stations ports.StationRepository, cache ports.CacheService, store *catalog.Store) *StationService {
	return &StationService{stations: stations, cache: cache, store: store}
}

// List returns one page of the persisted catalog. When the database cannot be read a
// page of placeholder stations flagged as fallback is returned instead of an error.
func (s *StationService) List(ctx context.Context, q domain.StationQuery) (*domain.StationPage, error) {
	if q.Limit <= 0 || q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	cacheKey := fmt.Sprintf("stations:list:%d:%d:%s:%s", q.Offset, q.Limit, q.Region, q.City)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var page domain.StationPage
			if err := json.Unmarshal(data, &page); err == nil {
				return &page, nil
			}
		}
	}

	if s.stations == nil {
		return FallbackPage(), nil
	}
	page, err := s.stations.List(ctx, q)
	if err != nil {
		slog.Warn("station list failed, serving fallback stations", "error", err)
		return FallbackPage(), nil
	}

	// Cache for 5 minutes; the catalog changes with imports only.
	if s.cache != nil {
		if data, err := json.Marshal(page); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}
	return page, nil
}

// FetchPage implements ports.StationPager over List.
func (s *StationService) FetchPage(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
	return s.List(ctx, domain.StationQuery{Offset: offset, Limit: limit})
}

// Search filters the in-memory catalog. membership marks on-route stations and may be nil.
func (s *StationService) Search(state domain.FilterState, membership map[string]bool, limit int) []domain.DisplayStation {
	if limit <= 0 {
		limit = DefaultSearchSize
	}
	limit = min(limit, MaxSearchSize)

	out := filter.Apply(s.store.Load().Stations, membership, state)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
