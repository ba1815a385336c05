package ports

import (
	"context"

	"github.com/stazy/chargeshare/internal/core/domain"
)

// StationPager fetches the catalog one page at a time.
type StationPager interface {
	FetchPage(ctx context.Context, offset, limit int) (*domain.StationPage, error)
}

// StationRepository persists charging stations.
type StationRepository interface {
	List(ctx context.Context, q domain.StationQuery) (*domain.StationPage, error)
	// NearRoute returns the stations within radiusKm of any polyline vertex, nearest
	// first, cut to limit when limit > 0, together with the uncut match count.
	NearRoute(ctx context.Context, polyline []domain.GeoPoint, radiusKm float64, limit int) ([]domain.ChargingStation, int, error)
	UpsertBatch(ctx context.Context, stations []domain.ChargingStation) error
}

// StationWriter is the write side used by the importer.
type StationWriter interface {
	UpsertBatch(ctx context.Context, stations []domain.ChargingStation) error
}

// ReservationRepository persists reservations.
type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	ListByClient(ctx context.Context, clientID string) ([]domain.Reservation, error)
}

// CartStore keeps one cart per user.
type CartStore interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// ProfileStore keeps one profile per user. Get returns domain.ErrNotFound for an
// unknown user.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Save(ctx context.Context, p *domain.Profile) error
}
