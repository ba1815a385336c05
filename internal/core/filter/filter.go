// Package filter reconciles the station collection with the user's filters and the
// active route corridor.
package filter

import (
	"strings"

	"github.com/stazy/chargeshare/internal/core/domain"
)

// Apply returns the stations matching state, in input order, each tagged with its
// display tier. membership may be nil when no route is active.
func Apply(stations []domain.ChargingStation, membership map[string]bool, state domain.FilterState) []domain.DisplayStation {
	query := strings.ToLower(strings.TrimSpace(state.SearchText))

	out := make([]domain.DisplayStation, 0, len(stations))
	for _, s := range stations {
		if !s.HasLocation() || !Matches(s, state, query) {
			continue
		}
		out = append(out, domain.DisplayStation{ChargingStation: s, Tier: TierOf(s, membership)})
	}
	return out
}

// Matches is the inclusion predicate. query must already be lower-cased; the
// Services list is not evaluated because the catalog carries no service data.
func Matches(s domain.ChargingStation, state domain.FilterState, query string) bool {
	if query != "" && !matchesText(s, query) {
		return false
	}
	if state.AvailableOnly && !s.Available {
		return false
	}
	if s.PowerKW < state.MinPower {
		return false
	}
	return s.EffectivePrice() <= state.MaxPrice
}

func matchesText(s domain.ChargingStation, query string) bool {
	return strings.Contains(strings.ToLower(s.Name), query) ||
		strings.Contains(strings.ToLower(s.City), query) ||
		strings.Contains(strings.ToLower(s.Region), query)
}

// TierOf returns the marker tier. Route membership always wins over availability.
func TierOf(s domain.ChargingStation, membership map[string]bool) domain.DisplayTier {
	switch {
	case membership[s.ID]:
		return domain.TierOnRoute
	case s.Available:
		return domain.TierAvailable
	default:
		return domain.TierUnavailable
	}
}

// Counts tallies displayed stations per tier.
func Counts(displayed []domain.DisplayStation) map[domain.DisplayTier]int {
	c := make(map[domain.DisplayTier]int, 3)
	for _, d := range displayed {
		c[d.Tier]++
	}
	return c
}
