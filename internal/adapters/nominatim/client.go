// Package nominatim resolves place names with an OpenStreetMap Nominatim server.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/ports"
	"github.com/stazy/chargeshare/internal/pkg/metrics"
	"github.com/stazy/chargeshare/internal/pkg/resilience"
	"github.com/stazy/chargeshare/internal/pkg/telemetry"
)

// SearchCountries restricts free-text search to the countries covered by the catalog.
const SearchCountries = "fr,be,de,es,it,ch,nl,pt,at,lu"

const geocodeCacheTTL = 24 * 60 * 60

type Config struct {
	BaseURL   string
	Country   string
	UserAgent string
	Timeout   time.Duration
}

// Client talks to the Nominatim /search endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *resilience.Breaker
	cache   ports.CacheService
}

// New creates a Client. cache may be nil.
func New(cfg Config, cache ports.CacheService) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("nominatim")),
		cache:   cache,
	}
}

type place struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Country string `json:"country"`
	} `json:"address"`
}

// Geocode returns the first match for name within the configured country.
// Any failure is reported as domain.ErrNotFound; transport failures additionally
// wrap domain.ErrServiceUnavailable.
func (c *Client) Geocode(ctx context.Context, name string) (domain.GeoPoint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.GeoPoint{}, fmt.Errorf("%w: empty place name", domain.ErrInvalidInput)
	}

	cacheKey := "geocode:" + strings.ToLower(name)
	if pt, ok := c.cached(ctx, cacheKey); ok {
		return pt, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "nominatim.Geocode", attribute.String("place", name))
	started := time.Now()

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", name+","+c.cfg.Country)
	q.Set("limit", "1")

	pt, err := resilience.Execute(c.breaker, func() (domain.GeoPoint, error) {
		var places []place
		if err := c.get(ctx, q, &places); err != nil {
			return domain.GeoPoint{}, err
		}
		if len(places) == 0 {
			return domain.GeoPoint{}, resilience.Permanent(fmt.Errorf("%w: no place matches %q", domain.ErrNotFound, name))
		}
		return places[0].point()
	})
	metrics.ObserveCall("nominatim", started, err)
	telemetry.EndSpan(span, err)

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.GeoPoint{}, err
		}
		return domain.GeoPoint{}, fmt.Errorf("%w: geocoding %q: %w", domain.ErrNotFound, name, err)
	}

	c.store(ctx, cacheKey, pt)
	return pt, nil
}

// Search returns up to limit candidates for a free-text query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.GeocodeResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	ctx, span := telemetry.StartSpan(ctx, "nominatim.Search", attribute.String("query", query))
	started := time.Now()

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("countrycodes", SearchCountries)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("addressdetails", "1")

	results, err := resilience.Execute(c.breaker, func() ([]domain.GeocodeResult, error) {
		var places []place
		if err := c.get(ctx, q, &places); err != nil {
			return nil, err
		}
		out := make([]domain.GeocodeResult, 0, len(places))
		for _, p := range places {
			pt, err := p.point()
			if err != nil {
				slog.Debug("skipping unparsable nominatim result", "name", p.DisplayName, "error", err)
				continue
			}
			out = append(out, domain.GeocodeResult{
				Name:      p.DisplayName,
				City:      p.city(),
				Country:   p.Address.Country,
				Latitude:  pt.Lat,
				Longitude: pt.Lon,
			})
		}
		return out, nil
	})
	metrics.ObserveCall("nominatim", started, err)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: nominatim returned %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode nominatim response: %w", domain.ErrServiceUnavailable, err)
	}
	return nil
}

func (c *Client) cached(ctx context.Context, key string) (domain.GeoPoint, bool) {
	if c.cache == nil {
		return domain.GeoPoint{}, false
	}
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
		return domain.GeoPoint{}, false
	}
	var pt domain.GeoPoint
	if err := json.Unmarshal(data, &pt); err != nil {
		return domain.GeoPoint{}, false
	}
	metrics.CacheHits.WithLabelValues("geocode").Inc()
	return pt, true
}

func (c *Client) store(ctx context.Context, key string, pt domain.GeoPoint) {
	if c.cache == nil {
		return
	}
	data, _ := json.Marshal(pt)
	if err := c.cache.Set(ctx, key, data, geocodeCacheTTL); err != nil {
		slog.Warn("failed to cache geocode result", "key", key, "error", err)
	}
}

func (p place) point() (domain.GeoPoint, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: bad latitude %q", domain.ErrServiceUnavailable, p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: bad longitude %q", domain.ErrServiceUnavailable, p.Lon)
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, nil
}

func (p place) city() string {
	switch {
	case p.Address.City != "":
		return p.Address.City
	case p.Address.Town != "":
		return p.Address.Town
	default:
		return p.Address.Village
	}
}
