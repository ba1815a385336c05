package usecases_test

import (
	"context"
	"sync"

	"github.com/stazy/chargeshare/internal/core/domain"
)

// --- Mock StationPager ---

type mockPager struct {
	mu      sync.Mutex
	calls   []int
	fetchFn func(ctx context.Context, offset, limit int) (*domain.StationPage, error)
}

func (m *mockPager) FetchPage(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, offset)
	m.mu.Unlock()
	return m.fetchFn(ctx, offset, limit)
}

// pagesOf serves fixed pages in order; offsets are checked by the caller.
func pagesOf(pages ...*domain.StationPage) *mockPager {
	i := 0
	return &mockPager{fetchFn: func(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
		p := pages[i]
		i++
		return p, nil
	}}
}

// --- Mock StationRepository ---

type mockStationRepo struct {
	listFn      func(ctx context.Context, q domain.StationQuery) (*domain.StationPage, error)
	nearRouteFn func(ctx context.Context, polyline []domain.GeoPoint, radiusKm float64, limit int) ([]domain.ChargingStation, error)
}

func (m *mockStationRepo) List(ctx context.Context, q domain.StationQuery) (*domain.StationPage, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return &domain.StationPage{}, nil
}

func (m *mockStationRepo) NearRoute(ctx context.Context, polyline []domain.GeoPoint, radiusKm float64, limit int) ([]domain.ChargingStation, int, error) {
	if m.nearRouteFn != nil {
		found, err := m.nearRouteFn(ctx, polyline, radiusKm, limit)
		return found, len(found), err
	}
	return nil, 0, nil
}

func (m *mockStationRepo) UpsertBatch(ctx context.Context, stations []domain.ChargingStation) error {
	return nil
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	geocodeFn func(ctx context.Context, place string) (domain.GeoPoint, error)
}

func (m *mockGeocoder) Geocode(ctx context.Context, place string) (domain.GeoPoint, error) {
	return m.geocodeFn(ctx, place)
}

func (m *mockGeocoder) Search(ctx context.Context, query string, limit int) ([]domain.GeocodeResult, error) {
	return nil, nil
}

// --- Mock Router ---

type mockRouter struct {
	calls   int
	routeFn func(ctx context.Context, start, end domain.GeoPoint, opts domain.RouteOptions) (*domain.RoutePlan, error)
}

func (m *mockRouter) Route(ctx context.Context, start, end domain.GeoPoint, opts domain.RouteOptions) (*domain.RoutePlan, error) {
	m.calls++
	return m.routeFn(ctx, start, end, opts)
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.sets++
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Mock CartStore ---

type mockCartStore struct {
	carts   map[string]*domain.Cart
	saveErr error
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{carts: map[string]*domain.Cart{}}
}

func (m *mockCartStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return nil, nil
	}
	cp := &domain.Cart{Items: append([]domain.CartItem(nil), c.Items...)}
	return cp, nil
}

func (m *mockCartStore) Save(ctx context.Context, userID string, cart *domain.Cart) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.carts[userID] = &domain.Cart{Items: append([]domain.CartItem(nil), cart.Items...)}
	return nil
}

func (m *mockCartStore) Delete(ctx context.Context, userID string) error {
	delete(m.carts, userID)
	return nil
}

// --- Mock ProfileStore ---

type mockProfileStore struct {
	profiles map[string]domain.Profile
	getErr   error
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: map[string]domain.Profile{}}
}

func (m *mockProfileStore) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p.Favorites = append([]string(nil), p.Favorites...)
	return &p, nil
}

func (m *mockProfileStore) Save(ctx context.Context, p *domain.Profile) error {
	m.profiles[p.ID] = *p
	return nil
}

// --- Mock ReservationRepository ---

type mockReservationRepo struct {
	created []domain.Reservation
	err     error
}

func (m *mockReservationRepo) Create(ctx context.Context, r *domain.Reservation) error {
	if m.err != nil {
		return m.err
	}
	r.ID = "res-1"
	m.created = append(m.created, *r)
	return nil
}

func (m *mockReservationRepo) ListByClient(ctx context.Context, clientID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range m.created {
		if r.ClientID == clientID {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	reservations []string
	catalog      []domain.CatalogUpdated
	err          error
}

func (m *mockPublisher) PublishCatalogUpdated(ctx context.Context, ev domain.CatalogUpdated) error {
	m.catalog = append(m.catalog, ev)
	return m.err
}

func (m *mockPublisher) PublishReservationCreated(ctx context.Context, r *domain.Reservation) error {
	m.reservations = append(m.reservations, r.ID)
	return m.err
}

func st(id string, lat, lon float64) domain.ChargingStation {
	return domain.ChargingStation{ID: id, Name: id, Latitude: lat, Longitude: lon, Available: true}
}
