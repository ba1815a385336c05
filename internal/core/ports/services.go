package ports

import (
	"context"

	"github.com/stazy/chargeshare/internal/core/domain"
)

// Geocoder resolves place names to coordinates.
type Geocoder interface {
	// Geocode returns the best match for place. It fails with domain.ErrNotFound
	// when nothing matches or the service cannot be reached.
	Geocode(ctx context.Context, place string) (domain.GeoPoint, error)
	Search(ctx context.Context, query string, limit int) ([]domain.GeocodeResult, error)
}

// Router resolves a driving route between two points.
type Router interface {
	Route(ctx context.Context, start, end domain.GeoPoint, opts domain.RouteOptions) (*domain.RoutePlan, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishCatalogUpdated(ctx context.Context, ev domain.CatalogUpdated) error
	PublishReservationCreated(ctx context.Context, r *domain.Reservation) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeCatalogUpdated(ctx context.Context, handler func(ctx context.Context, ev domain.CatalogUpdated) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
