package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/filter"
)

func catalog() []domain.ChargingStation {
	return []domain.ChargingStation{
		{ID: "a", Name: "Aire de Beaune", City: "Beaune", Region: "21200", Latitude: 47.02, Longitude: 4.84, PowerKW: 150, PricePerHour: 12, Available: true},
		{ID: "b", Name: "Parking Gare", City: "Lyon", Region: "69003", Latitude: 45.76, Longitude: 4.86, PowerKW: 22, PricePerHour: 4, Available: false},
		{ID: "c", Name: "Centre Commercial", City: "Paris", Region: "75012", Latitude: 48.84, Longitude: 2.39, PowerKW: 50, PricePerHour: 0, Available: true},
		{ID: "d", Name: "Hôtel du Lac", City: "Annecy", Region: "74000", Latitude: 45.90, Longitude: 6.13, PowerKW: 7.4, PricePerHour: 25, Available: false},
		{ID: "e", Name: "Supercharger", City: "Macon", Region: "71000", Latitude: 46.31, Longitude: 4.83, PowerKW: 250, PricePerHour: 18, Available: false},
	}
}

func ids(displayed []domain.DisplayStation) []string {
	out := make([]string, len(displayed))
	for i, d := range displayed {
		out[i] = d.ID
	}
	return out
}

func TestApply_MinPowerIndependentOfAvailability(t *testing.T) {
	stations := []domain.ChargingStation{
		{ID: "slow", Latitude: 45, Longitude: 4, PowerKW: 22, Available: true},
		{ID: "fast", Latitude: 45, Longitude: 4, PowerKW: 150, Available: false},
	}
	state := domain.DefaultFilterState()
	state.MinPower = 50

	got := filter.Apply(stations, nil, state)
	assert.Equal(t, []string{"fast"}, ids(got))
	assert.Equal(t, domain.TierUnavailable, got[0].Tier)
}

func TestApply_DefaultStateDropsExpensiveStations(t *testing.T) {
	got := filter.Apply(catalog(), nil, domain.DefaultFilterState())
	assert.Equal(t, []string{"a", "b", "c", "e"}, ids(got))
}

func TestApply_MissingPriceCountsAsDefault(t *testing.T) {
	state := domain.DefaultFilterState()
	state.MaxPrice = 4.99
	got := filter.Apply(catalog(), nil, state)
	assert.Equal(t, []string{"b"}, ids(got), "a zero price is treated as 5 per hour")

	state.MaxPrice = 5
	got = filter.Apply(catalog(), nil, state)
	assert.Equal(t, []string{"b", "c"}, ids(got))
}

func TestApply_SearchTextIsCaseInsensitive(t *testing.T) {
	state := domain.DefaultFilterState()
	state.MaxPrice = 100

	for query, want := range map[string][]string{
		"lyon":    {"b"},
		"  PARIS": {"c"},
		"740":     {"d"},
		"aire":    {"a"},
		"zzz":     {},
		"":        {"a", "b", "c", "d", "e"},
	} {
		state.SearchText = query
		assert.Equal(t, want, ids(filter.Apply(catalog(), nil, state)), "query %q", query)
	}
}

func TestApply_AvailableOnly(t *testing.T) {
	state := domain.DefaultFilterState()
	state.MaxPrice = 100
	state.AvailableOnly = true
	assert.Equal(t, []string{"a", "c"}, ids(filter.Apply(catalog(), nil, state)))
}

func TestApply_SentinelStationsNeverDisplayed(t *testing.T) {
	stations := append(catalog(),
		domain.ChargingStation{ID: "zero", Name: "Nowhere", PowerKW: 50, Available: true},
		domain.ChargingStation{ID: "half", Name: "Half", Latitude: 45, PowerKW: 50, Available: true},
	)
	got := filter.Apply(stations, map[string]bool{"zero": true}, domain.FilterState{MaxPrice: 100})
	assert.NotContains(t, ids(got), "zero")
	assert.NotContains(t, ids(got), "half")
}

func TestApply_OnRouteOverridesAvailability(t *testing.T) {
	membership := map[string]bool{"b": true, "a": true}
	got := filter.Apply(catalog(), membership, domain.FilterState{MaxPrice: 100})

	tiers := map[string]domain.DisplayTier{}
	for _, d := range got {
		tiers[d.ID] = d.Tier
	}
	assert.Equal(t, domain.TierOnRoute, tiers["a"])
	assert.Equal(t, domain.TierOnRoute, tiers["b"], "unavailable on-route station is still on_route")
	assert.Equal(t, domain.TierAvailable, tiers["c"])
	assert.Equal(t, domain.TierUnavailable, tiers["d"])

	counts := filter.Counts(got)
	assert.Equal(t, 2, counts[domain.TierOnRoute])
	assert.Equal(t, 1, counts[domain.TierAvailable])
	assert.Equal(t, 2, counts[domain.TierUnavailable])
}

func TestApply_TierDoesNotAffectInclusion(t *testing.T) {
	state := domain.FilterState{MaxPrice: 100, AvailableOnly: true}
	got := filter.Apply(catalog(), map[string]bool{"b": true}, state)
	assert.NotContains(t, ids(got), "b", "corridor membership does not bypass availableOnly")
}

func TestApply_TighteningNeverGrowsResult(t *testing.T) {
	stations := catalog()
	base := domain.FilterState{MaxPrice: 30}
	baseLen := len(filter.Apply(stations, nil, base))

	tighter := []domain.FilterState{
		{MaxPrice: 30, MinPower: 40},
		{MaxPrice: 30, MinPower: 200},
		{MaxPrice: 10},
		{MaxPrice: 0},
		{MaxPrice: 30, AvailableOnly: true},
		{MaxPrice: 30, SearchText: "a"},
	}
	for _, st := range tighter {
		got := filter.Apply(stations, nil, st)
		assert.LessOrEqual(t, len(got), baseLen, "state %+v", st)
		for _, d := range got {
			assert.Contains(t, stations, d.ChargingStation, "result must be a subset of the input")
		}
	}
}

func TestApply_EmptyInput(t *testing.T) {
	got := filter.Apply(nil, nil, domain.DefaultFilterState())
	require.NotNil(t, got)
	assert.Empty(t, got)
}
