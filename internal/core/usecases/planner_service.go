package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stazy/chargeshare/internal/core/catalog"
	"github.com/stazy/chargeshare/internal/core/corridor"
	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/ports"
	"github.com/stazy/chargeshare/internal/core/session"
)

// Corridor lookup limits.
const (
	DefaultCorridorLimit = 500
	MaxCorridorLimit     = 2000
	minEndpointRadiusKm  = 1.0
	defaultCallTimeout   = 10 * time.Second
)

// PlanRequest asks for a route between two named places.
type PlanRequest struct {
	Start    string
	End      string
	Options  domain.RouteOptions
	RadiusKm float64
}

// PlannerService resolves routes and the charging stations along them.
type PlannerService struct {
	geocoder    ports.Geocoder
	router      ports.Router
	stations    ports.StationRepository
	store       *catalog.Store
	radiusKm    float64
	callTimeout time.Duration
}

// NewPlannerService creates a new PlannerService. stations may be nil, in which case
// corridors are always computed from the in-memory catalog.
func NewPlannerService(
	geocoder ports.Geocoder,
	router ports.Router,
	stations ports.StationRepository,
	store *catalog.Store,
	radiusKm float64,
	callTimeout time.Duration,
) *PlannerService {
	if radiusKm <= 0 {
		radiusKm = corridor.DefaultRadiusKm
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &PlannerService{
		geocoder:    geocoder,
		router:      router,
		stations:    stations,
		store:       store,
		radiusKm:    radiusKm,
		callTimeout: callTimeout,
	}
}

// Plan geocodes both places, resolves the driving route and collects the corridor
// stations. A place that cannot be geocoded aborts the plan before routing.
func (s *PlannerService) Plan(ctx context.Context, req PlanRequest) (session.RouteSession, error) {
	start, end := strings.TrimSpace(req.Start), strings.TrimSpace(req.End)
	if start == "" || end == "" {
		return session.Empty(), fmt.Errorf("%w: start and end are required", domain.ErrInvalidInput)
	}
	radius := req.RadiusKm
	if radius <= 0 {
		radius = s.radiusKm
	}

	var from, to domain.GeoPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = s.geocode(gctx, start)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = s.geocode(gctx, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return session.Empty(), err
	}

	routeCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	plan, err := s.router.Route(routeCtx, from, to, req.Options)
	cancel()
	if err != nil {
		return session.Empty(), fmt.Errorf("route %q -> %q: %w", start, end, err)
	}
	plan.Start, plan.End = start, end
	plan.StartCoord, plan.EndCoord = &from, &to

	// The session keeps every corridor station; only explicit lookups are limited.
	result, err := s.Corridor(ctx, plan.Polyline, radius, 0)
	if err != nil {
		return session.Empty(), err
	}
	return session.New(*plan, result), nil
}

func (s *PlannerService) geocode(ctx context.Context, place string) (domain.GeoPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	p, err := s.geocoder.Geocode(ctx, place)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("geocode %q: %w", place, err)
	}
	return p, nil
}

// Corridor returns the stations within radiusKm of the polyline. The database is
// queried first; on failure the in-memory catalog is scanned and the result is
// flagged as fallback. limit <= 0 returns every match; otherwise the limit stations
// nearest to a vertex are kept and Truncated is set when some were dropped.
func (s *PlannerService) Corridor(ctx context.Context, polyline []domain.GeoPoint, radiusKm float64, limit int) (domain.CorridorResult, error) {
	if len(polyline) < 2 {
		return domain.CorridorResult{}, fmt.Errorf("%w: route needs at least 2 coordinates, got %d", domain.ErrInvalidInput, len(polyline))
	}
	if limit < 0 {
		limit = 0
	}

	if s.stations != nil {
		qctx, cancel := context.WithTimeout(ctx, s.callTimeout)
		found, total, err := s.stations.NearRoute(qctx, polyline, radiusKm, limit)
		cancel()
		if err == nil {
			return domain.CorridorResult{
				Stations:   found,
				Membership: corridor.Membership(found),
				RadiusKm:   radiusKm,
				Total:      max(total, len(found)),
				Truncated:  total > len(found),
			}, nil
		}
		if ctx.Err() != nil {
			return domain.CorridorResult{}, ctx.Err()
		}
		slog.Warn("corridor query failed, scanning in-memory catalog", "error", err)
	}

	result, err := corridor.Compute(polyline, s.store.Load().Stations, radiusKm)
	if err != nil {
		return domain.CorridorResult{}, err
	}
	result = corridor.Truncate(result, polyline, limit)
	result.Fallback = s.stations != nil
	return result, nil
}

// StationsNearRoute serves explicit corridor lookups. radiusKm defaults to the
// configured radius and is raised to at least 1 km; limit defaults to 500 and is
// capped at 2000.
func (s *PlannerService) StationsNearRoute(ctx context.Context, polyline []domain.GeoPoint, radiusKm float64, limit int) (domain.CorridorResult, error) {
	if radiusKm <= 0 {
		radiusKm = s.radiusKm
	}
	radiusKm = max(radiusKm, minEndpointRadiusKm)
	if limit <= 0 {
		limit = DefaultCorridorLimit
	}
	limit = min(limit, MaxCorridorLimit)
	return s.Corridor(ctx, polyline, radiusKm, limit)
}
