// Package osrm resolves driving routes with an OSRM server.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/pkg/metrics"
	"github.com/stazy/chargeshare/internal/pkg/resilience"
	"github.com/stazy/chargeshare/internal/pkg/telemetry"
)

type Config struct {
	BaseURL string
	// SupportsExclude enables exclude=toll,motorway. Only servers built with the
	// matching profile classes accept it.
	SupportsExclude bool
	Timeout         time.Duration
}

// Client calls the OSRM route service with the driving profile.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *resilience.Breaker
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("osrm")),
	}
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Distance float64 `json:"distance"` // metres
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// Route resolves the first driving route from start to end.
func (c *Client) Route(ctx context.Context, start, end domain.GeoPoint, opts domain.RouteOptions) (*domain.RoutePlan, error) {
	ctx, span := telemetry.StartSpan(ctx, "osrm.Route",
		attribute.Float64("start.lat", start.Lat), attribute.Float64("start.lon", start.Lon),
		attribute.Float64("end.lat", end.Lat), attribute.Float64("end.lon", end.Lon),
	)
	started := time.Now()

	exclude := c.exclude(opts)
	plan, err := resilience.Execute(c.breaker, func() (*domain.RoutePlan, error) {
		return c.route(ctx, start, end, exclude)
	})
	metrics.ObserveCall("osrm", started, err)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	plan.Options = opts
	plan.PreferencesHonored = !opts.Any() || exclude != ""
	return plan, nil
}

func (c *Client) exclude(opts domain.RouteOptions) string {
	if !c.cfg.SupportsExclude {
		return ""
	}
	var classes []string
	if opts.AvoidTolls {
		classes = append(classes, "toll")
	}
	if opts.AvoidHighways {
		classes = append(classes, "motorway")
	}
	return strings.Join(classes, ",")
}

func (c *Client) route(ctx context.Context, start, end domain.GeoPoint, exclude string) (*domain.RoutePlan, error) {
	a, b := toLonLat(start), toLonLat(end)
	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", "geojson")
	q.Set("steps", "true")
	if exclude != "" {
		q.Set("exclude", exclude)
	}
	u := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?%s", c.cfg.BaseURL, a[0], a[1], b[0], b[1], q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: osrm: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	var body routeResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	// OSRM answers NoRoute with a 400 and a JSON body.
	if decodeErr == nil && (body.Code == "NoRoute" || (resp.StatusCode == http.StatusOK && len(body.Routes) == 0)) {
		return nil, resilience.Permanent(fmt.Errorf("%w: osrm code %s", domain.ErrNoRouteFound, body.Code))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: osrm returned %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode osrm response: %w", domain.ErrServiceUnavailable, decodeErr)
	}

	r := body.Routes[0]
	polyline := make([]domain.GeoPoint, 0, len(r.Geometry.Coordinates))
	for _, coord := range r.Geometry.Coordinates {
		if len(coord) < 2 {
			continue
		}
		polyline = append(polyline, fromLonLat(coord))
	}

	return &domain.RoutePlan{
		Polyline:    polyline,
		DistanceKm:  int(math.Round(r.Distance / 1000)),
		DurationMin: int(math.Round(r.Duration / 60)),
	}, nil
}

// toLonLat converts a point to the [lon, lat] order used on the wire.
func toLonLat(p domain.GeoPoint) [2]float64 {
	return [2]float64{p.Lon, p.Lat}
}

// fromLonLat converts an OSRM [lon, lat] coordinate back to a GeoPoint.
func fromLonLat(c []float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: c[1], Lon: c[0]}
}
