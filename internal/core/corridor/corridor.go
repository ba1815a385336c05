// Package corridor finds charging stations lying within a radius of a driving route.
//
// Proximity is measured from each station to the polyline vertices, not to the
// segments between them. Routing polylines are densely sampled so the difference is
// small, but a station close to the middle of a long sparse segment can be missed.
// The approximation is kept on purpose: changing it changes which stations are shown.
package corridor

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/pkg/geospatial"
)

// DefaultRadiusKm is the corridor half-width used by the map page.
const DefaultRadiusKm = 15.0

// StationsNearRoute returns the stations within radiusKm of any polyline vertex,
// in input order. Stations at the (0,0) sentinel are never returned.
func StationsNearRoute(polyline []domain.GeoPoint, stations []domain.ChargingStation, radiusKm float64) ([]domain.ChargingStation, error) {
	if len(polyline) < 2 {
		return nil, fmt.Errorf("%w: route needs at least 2 coordinates, got %d", domain.ErrInvalidInput, len(polyline))
	}
	if radiusKm < 0 {
		return nil, fmt.Errorf("%w: negative radius %.2f", domain.ErrInvalidInput, radiusKm)
	}

	box := geospatial.PolylineBounds(polyline, radiusKm)

	result := make([]domain.ChargingStation, 0)
	for _, s := range stations {
		if !s.HasLocation() {
			continue
		}
		if !box.Contains(s.Latitude, s.Longitude) {
			continue
		}
		if withinRadius(polyline, s.Latitude, s.Longitude, radiusKm) {
			result = append(result, s)
		}
	}
	return result, nil
}

// VertexDistanceKm is the distance from (lat, lon) to the nearest polyline vertex.
func VertexDistanceKm(polyline []domain.GeoPoint, lat, lon float64) float64 {
	best := math.Inf(1)
	for _, p := range polyline {
		best = min(best, geospatial.DistanceKm(p.Lat, p.Lon, lat, lon))
	}
	return best
}

// Closest keeps the limit stations nearest to a polyline vertex, nearest first, ties
// broken by id. Because every station added by a larger radius is farther than all
// stations already matched, the kept set never loses a member as the radius grows.
// A non-positive limit or one at least len(stations) returns stations unchanged.
func Closest(polyline []domain.GeoPoint, stations []domain.ChargingStation, limit int) []domain.ChargingStation {
	if limit <= 0 || len(stations) <= limit {
		return stations
	}
	type ranked struct {
		s    domain.ChargingStation
		dist float64
	}
	all := make([]ranked, len(stations))
	for i, s := range stations {
		all[i] = ranked{s: s, dist: VertexDistanceKm(polyline, s.Latitude, s.Longitude)}
	}
	slices.SortFunc(all, func(a, b ranked) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.s.ID, b.s.ID)
	})
	out := make([]domain.ChargingStation, limit)
	for i := range out {
		out[i] = all[i].s
	}
	return out
}

// withinRadius reports whether some vertex is at most radiusKm away (boundary included).
func withinRadius(polyline []domain.GeoPoint, lat, lon, radiusKm float64) bool {
	for _, p := range polyline {
		if geospatial.DistanceKm(p.Lat, p.Lon, lat, lon) <= radiusKm {
			return true
		}
	}
	return false
}

// Membership indexes the stations by id.
func Membership(stations []domain.ChargingStation) map[string]bool {
	m := make(map[string]bool, len(stations))
	for _, s := range stations {
		m[s.ID] = true
	}
	return m
}

// Compute runs StationsNearRoute and packages the result with its membership set.
func Compute(polyline []domain.GeoPoint, stations []domain.ChargingStation, radiusKm float64) (domain.CorridorResult, error) {
	matched, err := StationsNearRoute(polyline, stations, radiusKm)
	if err != nil {
		return domain.CorridorResult{}, err
	}
	return domain.CorridorResult{
		Stations:   matched,
		Membership: Membership(matched),
		RadiusKm:   radiusKm,
		Total:      len(matched),
	}, nil
}

// Truncate cuts res to the limit stations closest to the polyline. Total keeps the
// uncut count and Truncated is set when stations were dropped.
func Truncate(res domain.CorridorResult, polyline []domain.GeoPoint, limit int) domain.CorridorResult {
	if limit <= 0 || len(res.Stations) <= limit {
		return res
	}
	res.Stations = Closest(polyline, res.Stations, limit)
	res.Membership = Membership(res.Stations)
	res.Truncated = true
	return res
}
