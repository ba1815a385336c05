// Package mapview keeps the station markers shown to one client.
package mapview

import (
	"maps"
	"slices"
	"sync"

	"github.com/stazy/chargeshare/internal/core/domain"
)

// Marker is the rendering data of one station.
type Marker struct {
	StationID string             `json:"stationId"`
	Name      string             `json:"name"`
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	PowerKW   float64            `json:"powerKw"`
	Price     float64            `json:"pricePerHour"`
	Available bool               `json:"available"`
	Tier      domain.DisplayTier `json:"tier"`
}

// Diff summarises what an Upsert changed.
type Diff struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Changed reports whether anything moved.
func (d Diff) Changed() bool {
	return d.Added+d.Updated+d.Removed > 0
}

// View owns a keyed marker collection. Safe for concurrent use.
type View struct {
	mu      sync.RWMutex
	markers map[string]Marker
}

// New returns an empty view.
func New() *View {
	return &View{markers: make(map[string]Marker)}
}

func markerOf(d domain.DisplayStation) Marker {
	return Marker{
		StationID: d.ID,
		Name:      d.Name,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		PowerKW:   d.PowerKW,
		Price:     d.EffectivePrice(),
		Available: d.Available,
		Tier:      d.Tier,
	}
}

// Upsert makes the view show exactly the given stations. Markers for stations no
// longer present are removed.
func (v *View) Upsert(displayed []domain.DisplayStation) Diff {
	next := make(map[string]Marker, len(displayed))
	for _, d := range displayed {
		next[d.ID] = markerOf(d)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var diff Diff
	for id, m := range next {
		old, ok := v.markers[id]
		switch {
		case !ok:
			diff.Added++
		case old != m:
			diff.Updated++
		}
	}
	for id := range v.markers {
		if _, ok := next[id]; !ok {
			diff.Removed++
		}
	}
	v.markers = next
	return diff
}

// Clear removes every marker.
func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.markers = make(map[string]Marker)
}

// Snapshot returns the markers sorted by station id.
func (v *View) Snapshot() []Marker {
	v.mu.RLock()
	ids := slices.Collect(maps.Keys(v.markers))
	out := make([]Marker, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		out = append(out, v.markers[id])
	}
	v.mu.RUnlock()
	return out
}

