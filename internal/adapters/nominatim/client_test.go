package nominatim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stazy/chargeshare/internal/core/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Country: "France", UserAgent: "Stazy/1.0"}, nil)
}

func TestGeocode_ParsesFirstResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Paris,France", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "Stazy/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"lat":"48.8566","lon":"2.3522","display_name":"Paris"}]`))
	})

	pt, err := c.Geocode(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}, pt)
}

func TestGeocode_EmptyResultIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.Geocode(context.Background(), "Atlantis")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrServiceUnavailable))
}

func TestGeocode_ServerErrorIsNotFoundAndUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Geocode(context.Background(), "Lyon")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
}

func TestGeocode_MalformedCoordinates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"north","lon":"2.35"}]`))
	})

	_, err := c.Geocode(context.Background(), "Paris")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGeocode_EmptyName(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.Geocode(context.Background(), "   ")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestGeocode_NoMatchDoesNotTripBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	for i := 0; i < 10; i++ {
		_, _ = c.Geocode(context.Background(), "Nowhere")
	}
	assert.Equal(t, "closed", c.breaker.State())
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestGeocode_UsesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[{"lat":"45.764","lon":"4.8357"}]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Country: "France"}, &memCache{data: map[string][]byte{}})

	first, err := c.Geocode(context.Background(), "Lyon")
	require.NoError(t, err)
	second, err := c.Geocode(context.Background(), "lyon")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestSearch_MapsAddressFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, SearchCountries, q.Get("countrycodes"))
		assert.Equal(t, "1", q.Get("addressdetails"))
		assert.Equal(t, "5", q.Get("limit"))
		_, _ = w.Write([]byte(`[
			{"display_name":"Annecy, Haute-Savoie","lat":"45.9","lon":"6.12","address":{"city":"Annecy","country":"France"}},
			{"display_name":"Chamonix","lat":"45.92","lon":"6.87","address":{"town":"Chamonix","country":"France"}},
			{"display_name":"Broken","lat":"x","lon":"y"},
			{"display_name":"Vianden","lat":"49.93","lon":"6.2","address":{"village":"Vianden","country":"Luxembourg"}}
		]`))
	})

	got, err := c.Search(context.Background(), "mont", 5)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Annecy", got[0].City)
	assert.Equal(t, "Chamonix", got[1].City)
	assert.Equal(t, "Vianden", got[2].City)
	assert.Equal(t, "Luxembourg", got[2].Country)
	assert.InDelta(t, 45.9, got[0].Latitude, 1e-9)
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.Search(context.Background(), "", 10)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
