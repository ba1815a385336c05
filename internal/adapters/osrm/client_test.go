package osrm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stazy/chargeshare/internal/core/domain"
)

var (
	paris = domain.GeoPoint{Lat: 48.8566, Lon: 2.3522}
	lyon  = domain.GeoPoint{Lat: 45.7640, Lon: 4.8357}
)

func TestLonLatConversion(t *testing.T) {
	ll := toLonLat(paris)
	assert.Equal(t, [2]float64{2.3522, 48.8566}, ll)
	assert.Equal(t, paris, fromLonLat(ll[:]))
}

func TestRoute_ParsesGeometry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/route/v1/driving/2.352200,48.856600;4.835700,45.764000"), r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "full", q.Get("overview"))
		assert.Equal(t, "geojson", q.Get("geometries"))
		assert.Equal(t, "true", q.Get("steps"))
		assert.Empty(t, q.Get("exclude"))
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":465400,"duration":16290,
			"geometry":{"coordinates":[[2.3522,48.8566],[3.5,47.0],[4.8357,45.764]]}}]}`))
	}))
	defer srv.Close()

	plan, err := New(Config{BaseURL: srv.URL}).Route(context.Background(), paris, lyon, domain.RouteOptions{})
	require.NoError(t, err)

	assert.Equal(t, 465, plan.DistanceKm)
	assert.Equal(t, 272, plan.DurationMin)
	require.Len(t, plan.Polyline, 3)
	assert.Equal(t, domain.GeoPoint{Lat: 47.0, Lon: 3.5}, plan.Polyline[1])
	assert.True(t, plan.PreferencesHonored)
}

func TestRoute_NoRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[]}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Route(context.Background(), paris, lyon, domain.RouteOptions{})
	assert.True(t, errors.Is(err, domain.ErrNoRouteFound))
}

func TestRoute_NoRouteCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route between points"}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Route(context.Background(), paris, lyon, domain.RouteOptions{})
	assert.True(t, errors.Is(err, domain.ErrNoRouteFound))
}

func TestRoute_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Route(context.Background(), paris, lyon, domain.RouteOptions{})
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
}

func TestRoute_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Config{BaseURL: url}).Route(context.Background(), paris, lyon, domain.RouteOptions{})
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
}

func TestRoute_PreferencesWithoutExcludeSupport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("exclude"))
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":1000,"duration":60,"geometry":{"coordinates":[[2.35,48.85],[2.36,48.86]]}}]}`))
	}))
	defer srv.Close()

	opts := domain.RouteOptions{AvoidTolls: true}
	plan, err := New(Config{BaseURL: srv.URL}).Route(context.Background(), paris, lyon, opts)
	require.NoError(t, err)
	assert.False(t, plan.PreferencesHonored)
	assert.Equal(t, opts, plan.Options)
}

func TestRoute_ExcludeClasses(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("exclude")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":1000,"duration":60,"geometry":{"coordinates":[[2.35,48.85],[2.36,48.86]]}}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, SupportsExclude: true})
	plan, err := c.Route(context.Background(), paris, lyon, domain.RouteOptions{AvoidTolls: true, AvoidHighways: true})
	require.NoError(t, err)
	assert.Equal(t, "toll,motorway", got)
	assert.True(t, plan.PreferencesHonored)

	_, err = c.Route(context.Background(), paris, lyon, domain.RouteOptions{AvoidHighways: true})
	require.NoError(t, err)
	assert.Equal(t, "motorway", got)
}
