package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/filter"
	"github.com/stazy/chargeshare/internal/core/usecases"
	"github.com/stazy/chargeshare/internal/pkg/metrics"
	"github.com/stazy/chargeshare/internal/pkg/telemetry"
)

// filtersBody is the wire form of domain.FilterState. A missing maxPrice means
// the map page default.
type filtersBody struct {
	AvailableOnly bool     `json:"availableOnly"`
	MinPower      float64  `json:"minPower" validate:"gte=0"`
	MaxPrice      *float64 `json:"maxPrice" validate:"omitempty,gte=0"`
	Services      []string `json:"services"`
	SearchText    string   `json:"searchText" validate:"max=200"`
}

func (f *filtersBody) state() domain.FilterState {
	st := domain.DefaultFilterState()
	if f == nil {
		return st
	}
	st.AvailableOnly = f.AvailableOnly
	st.MinPower = f.MinPower
	if f.MaxPrice != nil {
		st.MaxPrice = *f.MaxPrice
	}
	st.Services = f.Services
	st.SearchText = f.SearchText
	return st
}

// ListStationsHandler returns one page of the persisted catalog.
// GET /v1/stations?limit=5000&offset=0&region=&city=
func ListStationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", usecases.MaxListLimit)
		offset := c.QueryInt("offset", 0)
		if limit <= 0 || limit > usecases.MaxListLimit {
			limit = usecases.MaxListLimit
		}
		if offset < 0 {
			offset = 0
		}

		page, err := deps.Stations.List(c.UserContext(), domain.StationQuery{
			Limit:  limit,
			Offset: offset,
			Region: c.Query("region"),
			City:   c.Query("city"),
		})
		if err != nil {
			return mapError(c, err)
		}

		if !page.Fallback {
			SetLinkHeaders(c, Pagination{Offset: offset, Limit: limit, Total: page.Total})
		}
		return c.JSON(page)
	}
}

type corridorRequest struct {
	Coordinates [][2]float64 `json:"coordinates" validate:"required,min=2"`
	RadiusKm    float64      `json:"radiusKm" validate:"gte=0,lte=500"`
	Limit       int          `json:"limit" validate:"gte=0"`
}

// corridorResponse.Total counts every match within the radius; Stations holds at most
// limit of them, nearest first, and Truncated reports the cut.
type corridorResponse struct {
	Stations  []domain.ChargingStation `json:"stations"`
	Total     int                      `json:"total"`
	Truncated bool                     `json:"truncated,omitempty"`
	RadiusKm  float64                  `json:"radiusKm,omitempty"`
	Fallback  bool                     `json:"fallback,omitempty"`
}

// fallbackCorridorSize is the number of placeholder stations served when no
// corridor can be computed at all.
const fallbackCorridorSize = 20

// StationsNearRouteHandler returns the stations along a polyline.
// POST /v1/stations/route {"coordinates":[[lat,lon],...],"radiusKm":15,"limit":500}
func StationsNearRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req corridorRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}

		ctx, span := telemetry.StartSpan(c.UserContext(), "corridor.lookup",
			attribute.Int("points", len(req.Coordinates)),
			attribute.Float64("radius_km", req.RadiusKm),
		)
		started := time.Now()
		result, err := deps.Planner.StationsNearRoute(ctx, domain.PointsFromLatLon(req.Coordinates), req.RadiusKm, req.Limit)
		telemetry.EndSpan(span, err)

		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				return errBadRequest(c, err.Error())
			}
			LoggerFromCtx(ctx).Warn("corridor lookup failed, serving placeholder stations", "error", err)
			stations := usecases.FallbackStations()[:fallbackCorridorSize]
			return c.JSON(corridorResponse{Stations: stations, Total: len(stations), Fallback: true})
		}

		source := "primary"
		if result.Fallback {
			source = "fallback"
		}
		metrics.CorridorScanDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
		metrics.CorridorStations.Observe(float64(len(result.Stations)))

		return c.JSON(corridorResponse{
			Stations:  result.Stations,
			Total:     result.Total,
			Truncated: result.Truncated,
			RadiusKm:  result.RadiusKm,
			Fallback:  result.Fallback,
		})
	}
}

type searchRequest struct {
	Query   string       `json:"query" validate:"max=200"`
	Filters *filtersBody `json:"filters"`
	Limit   int          `json:"limit" validate:"gte=0,lte=1000"`
}

// SearchStationsHandler filters the in-memory catalog.
// POST /v1/stations/search {"query":"lyon","filters":{"availableOnly":true,"minPower":50}}
func SearchStationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req searchRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}

		state := req.Filters.state()
		if q := strings.TrimSpace(req.Query); q != "" {
			state.SearchText = q
		}

		snap := deps.Catalog.Snapshot()
		stations := deps.Stations.Search(state, nil, req.Limit)
		return c.JSON(fiber.Map{
			"stations": stations,
			"total":    len(stations),
			"loading":  snap.Loading,
			"progress": snap.Progress,
		})
	}
}

type catalogStatus struct {
	Loaded    int        `json:"loaded"`
	Total     int        `json:"total"`
	Progress  int        `json:"progress"`
	Loading   bool       `json:"loading"`
	LastError string     `json:"lastError,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func currentCatalogStatus(deps *Dependencies) catalogStatus {
	snap := deps.Catalog.Snapshot()
	st := catalogStatus{
		Loaded:    snap.Loaded(),
		Total:     snap.Total,
		Progress:  snap.Progress,
		Loading:   snap.Loading,
		LastError: snap.LastError,
	}
	if !snap.UpdatedAt.IsZero() {
		t := snap.UpdatedAt
		st.UpdatedAt = &t
	}
	return st
}

// CatalogStatusHandler reports the in-memory catalog load state.
func CatalogStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(currentCatalogStatus(deps))
	}
}

// CatalogReloadHandler starts a background reload of the in-memory catalog.
func CatalogReloadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Catalog.TriggerReload(c.UserContext()); err != nil {
			if errors.Is(err, usecases.ErrReloadInProgress) {
				return errConflict(c, err.Error())
			}
			return mapError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(currentCatalogStatus(deps))
	}
}

type geocodeRequest struct {
	Query string `json:"query" validate:"required,max=200"`
	Limit int    `json:"limit" validate:"gte=0,lte=50"`
}

// GeocodeHandler searches places by name.
// POST /v1/geocode {"query":"Annecy"}
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req geocodeRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		if req.Limit == 0 {
			req.Limit = 10
		}

		results, err := deps.Geocoder.Search(c.UserContext(), req.Query, req.Limit)
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(fiber.Map{"results": results})
	}
}

type planRequest struct {
	Start         string       `json:"start" validate:"required,max=200"`
	End           string       `json:"end" validate:"required,max=200"`
	AvoidTolls    bool         `json:"avoidTolls"`
	AvoidHighways bool         `json:"avoidHighways"`
	RadiusKm      float64      `json:"radiusKm" validate:"gte=0,lte=500"`
	Filters       *filtersBody `json:"filters"`
}

func (r planRequest) toPlan() usecases.PlanRequest {
	return usecases.PlanRequest{
		Start:    r.Start,
		End:      r.End,
		Options:  domain.RouteOptions{AvoidTolls: r.AvoidTolls, AvoidHighways: r.AvoidHighways},
		RadiusKm: r.RadiusKm,
	}
}

// routeSummary is a RoutePlan with the polyline in [[lat,lon],...] form.
type routeSummary struct {
	Start              string              `json:"start"`
	End                string              `json:"end"`
	StartCoord         *domain.GeoPoint    `json:"startCoord,omitempty"`
	EndCoord           *domain.GeoPoint    `json:"endCoord,omitempty"`
	DistanceKm         int                 `json:"distanceKm"`
	DurationMin        int                 `json:"durationMin"`
	Options            domain.RouteOptions `json:"options"`
	PreferencesHonored bool                `json:"preferencesHonored"`
	Coordinates        [][2]float64        `json:"coordinates"`
}

func summarize(p *domain.RoutePlan) routeSummary {
	return routeSummary{
		Start:              p.Start,
		End:                p.End,
		StartCoord:         p.StartCoord,
		EndCoord:           p.EndCoord,
		DistanceKm:         p.DistanceKm,
		DurationMin:        p.DurationMin,
		Options:            p.Options,
		PreferencesHonored: p.PreferencesHonored,
		Coordinates:        domain.LatLonPairs(p.Polyline),
	}
}

type planResponse struct {
	Route    routeSummary               `json:"route"`
	Stations []domain.DisplayStation    `json:"stations"`
	Total    int                        `json:"total"`
	Counts   map[domain.DisplayTier]int `json:"counts"`
	RadiusKm float64                    `json:"radiusKm"`
	Fallback bool                       `json:"fallback,omitempty"`
}

// PlanRouteHandler plans a route and returns the filtered stations along it.
// POST /v1/routes/plan {"start":"Paris","end":"Lyon","avoidTolls":false,"radiusKm":15}
func PlanRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req planRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}

		sess, err := deps.Planner.Plan(c.UserContext(), req.toPlan())
		metrics.RoutePlans.WithLabelValues(planOutcome(err)).Inc()
		if err != nil {
			return mapError(c, err)
		}

		displayed := filter.Apply(sess.Stations(), sess.Membership(), req.Filters.state())
		return c.JSON(planResponse{
			Route:    summarize(sess.Plan()),
			Stations: displayed,
			Total:    len(displayed),
			Counts:   filter.Counts(displayed),
			RadiusKm: sess.RadiusKm(),
			Fallback: sess.Fallback(),
		})
	}
}

func planOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrServiceUnavailable), errors.Is(err, context.DeadlineExceeded):
		return "unavailable"
	case errors.Is(err, domain.ErrNoRouteFound):
		return "no_route"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
