// Package session holds the active route of one client.
//
// A RouteSession is never modified: planning a route or clearing it replaces the whole
// value, so markers and corridor membership cannot drift apart.
package session

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/stazy/chargeshare/internal/core/domain"
)

// RouteSession is an immutable route plus the stations found along it.
type RouteSession struct {
	plan       *domain.RoutePlan
	corridor   domain.CorridorResult
	generation uint64
}

// Empty is the session with no active route.
func Empty() RouteSession {
	return RouteSession{}
}

// New builds a session from a plan and its corridor. Both are copied.
func New(plan domain.RoutePlan, corridor domain.CorridorResult) RouteSession {
	plan.Polyline = slices.Clone(plan.Polyline)
	corridor.Stations = slices.Clone(corridor.Stations)
	corridor.Membership = maps.Clone(corridor.Membership)
	if corridor.Membership == nil {
		corridor.Membership = map[string]bool{}
	}
	return RouteSession{plan: &plan, corridor: corridor}
}

// Active reports whether a route is set.
func (s RouteSession) Active() bool {
	return s.plan != nil
}

// Plan returns a copy of the route, or nil for the empty session.
func (s RouteSession) Plan() *domain.RoutePlan {
	if s.plan == nil {
		return nil
	}
	p := *s.plan
	p.Polyline = slices.Clone(p.Polyline)
	return &p
}

// Stations returns the corridor stations in route-scan order.
func (s RouteSession) Stations() []domain.ChargingStation {
	return slices.Clone(s.corridor.Stations)
}

// OnRoute reports whether the station belongs to the corridor.
func (s RouteSession) OnRoute(id string) bool {
	return s.corridor.Membership[id]
}

// Membership returns the corridor membership set. Callers must not modify it.
func (s RouteSession) Membership() map[string]bool {
	return s.corridor.Membership
}

// RadiusKm returns the corridor half-width.
func (s RouteSession) RadiusKm() float64 {
	return s.corridor.RadiusKm
}

// Fallback reports whether the corridor was computed from the in-memory catalog
// because the database lookup failed.
func (s RouteSession) Fallback() bool {
	return s.corridor.Fallback
}

// Generation is the Tracker generation that committed the session (0 if none).
func (s RouteSession) Generation() uint64 {
	return s.generation
}

type sessionJSON struct {
	Active     bool                     `json:"active"`
	Generation uint64                   `json:"generation"`
	Route      *domain.RoutePlan        `json:"route,omitempty"`
	Stations   []domain.ChargingStation `json:"stations"`
	RadiusKm   float64                  `json:"radiusKm,omitempty"`
	Fallback   bool                     `json:"fallback,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s RouteSession) MarshalJSON() ([]byte, error) {
	stations := s.corridor.Stations
	if stations == nil {
		stations = []domain.ChargingStation{}
	}
	return json.Marshal(sessionJSON{
		Active:     s.Active(),
		Generation: s.generation,
		Route:      s.plan,
		Stations:   stations,
		RadiusKm:   s.corridor.RadiusKm,
		Fallback:   s.corridor.Fallback,
	})
}
