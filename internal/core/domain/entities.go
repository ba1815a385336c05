package domain

import (
	"time"
)

// Defaults applied to catalog records with missing attributes.
const (
	DefaultPricePerHour = 5.0
	DefaultOperator     = "Inconnu"
	DefaultAccessType   = "public"
)

// ChargingStation is a read-only snapshot of one public charging point (IRVE record).
type ChargingStation struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	City           string   `json:"city"`
	Region         string   `json:"region"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	PowerKW        float64  `json:"powerKw"`
	PricePerHour   float64  `json:"pricePerHour"`
	Available      bool     `json:"available"`
	ConnectorTypes []string `json:"connectorTypes"`
	Operator       string   `json:"operator"`
	AccessType     string   `json:"accessType"`
	Description    string   `json:"description"`
}

// HasLocation reports whether the station carries real coordinates.
// A zero latitude or longitude is the "no location" sentinel, not a point on the equator.
func (s ChargingStation) HasLocation() bool {
	return s.Latitude != 0 && s.Longitude != 0
}

// EffectivePrice returns the hourly price, falling back to DefaultPricePerHour.
func (s ChargingStation) EffectivePrice() float64 {
	if s.PricePerHour <= 0 {
		return DefaultPricePerHour
	}
	return s.PricePerHour
}

// Normalize fills display defaults for attributes the catalog left empty.
func (s ChargingStation) Normalize() ChargingStation {
	if s.PowerKW < 0 {
		s.PowerKW = 0
	}
	s.PricePerHour = s.EffectivePrice()
	if s.Operator == "" {
		s.Operator = DefaultOperator
	}
	if s.AccessType == "" {
		s.AccessType = DefaultAccessType
	}
	if s.ConnectorTypes == nil {
		s.ConnectorTypes = []string{}
	}
	return s
}

// StationPage is one page of the station catalog endpoint.
type StationPage struct {
	Stations []ChargingStation `json:"stations"`
	Total    int               `json:"total"`
	HasMore  bool              `json:"hasMore"`
	Fallback bool              `json:"fallback,omitempty"`
}

// RouteOptions are advisory routing preferences.
type RouteOptions struct {
	AvoidTolls    bool `json:"avoidTolls"`
	AvoidHighways bool `json:"avoidHighways"`
}

// Any reports whether at least one preference is set.
func (o RouteOptions) Any() bool {
	return o.AvoidTolls || o.AvoidHighways
}

// RoutePlan is a resolved driving route between two named places.
type RoutePlan struct {
	Start              string       `json:"start"`
	End                string       `json:"end"`
	StartCoord         *GeoPoint    `json:"startCoord,omitempty"`
	EndCoord           *GeoPoint    `json:"endCoord,omitempty"`
	Polyline           []GeoPoint   `json:"polyline"`
	DistanceKm         int          `json:"distanceKm"`
	DurationMin        int          `json:"durationMin"`
	Options            RouteOptions `json:"options"`
	PreferencesHonored bool         `json:"preferencesHonored"`
}

// CorridorResult is the set of stations found near one RoutePlan.
type CorridorResult struct {
	Stations   []ChargingStation `json:"stations"`
	Membership map[string]bool   `json:"-"`
	RadiusKm   float64           `json:"radiusKm"`
	Fallback   bool              `json:"fallback,omitempty"`
	Total      int               `json:"total"` // matches before any limit
	Truncated  bool              `json:"truncated,omitempty"`
}

// Contains reports whether the station id is on the route.
func (c CorridorResult) Contains(id string) bool {
	return c.Membership[id]
}

// FilterState is the user-facing predicate over the station collection.
type FilterState struct {
	AvailableOnly bool     `json:"availableOnly"`
	MinPower      float64  `json:"minPower"`
	MaxPrice      float64  `json:"maxPrice"`
	Services      []string `json:"services,omitempty"`
	SearchText    string   `json:"searchText"`
}

// DefaultFilterState matches the initial state of the map page.
func DefaultFilterState() FilterState {
	return FilterState{MaxPrice: 20}
}

// DisplayTier controls how a station marker is drawn.
type DisplayTier string

const (
	TierOnRoute     DisplayTier = "on_route"
	TierAvailable   DisplayTier = "available"
	TierUnavailable DisplayTier = "unavailable"
)

// DisplayStation is a station selected for display together with its tier.
type DisplayStation struct {
	ChargingStation
	Tier DisplayTier `json:"tier"`
}

// GeocodeResult is one candidate returned by a place search.
type GeocodeResult struct {
	Name      string  `json:"name"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CartItem is a pending booking kept in the user's cart.
type CartItem struct {
	ID          string    `json:"id"`
	StationID   string    `json:"stationId,omitempty"`
	StationName string    `json:"stationName"`
	Date        string    `json:"date,omitempty"`
	Hours       float64   `json:"hours,omitempty"`
	Amount      float64   `json:"amount"`
	AddedAt     time.Time `json:"addedAt"`
}

// Cart holds a user's pending bookings.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Profile is the account data shown on the profile page.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Favorites []string  `json:"favorites"` // station ids
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileUpdate lists the fields a PUT may change. Nil fields are kept.
type ProfileUpdate struct {
	Email     *string
	Name      *string
	Favorites []string
}

// Reservation is a confirmed booking of a charging station.
type Reservation struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"-"`
	StationID     string     `json:"stationId,omitempty"`
	StationName   string     `json:"stationName"`
	StartTime     *time.Time `json:"date,omitempty"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	DurationHours *float64   `json:"durationHours,omitempty"`
	Amount        float64    `json:"amount"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ReservationConfirmed is the status assigned to new reservations.
const ReservationConfirmed = "confirmed"

// StationQuery selects one page of the persisted catalog.
type StationQuery struct {
	Limit  int
	Offset int
	Region string
	City   string
}

// CatalogUpdated is published after an import changed the station catalog.
type CatalogUpdated struct {
	Imported   int       `json:"imported"`
	Skipped    int       `json:"skipped"`
	Source     string    `json:"source"`
	ImportedAt time.Time `json:"importedAt"`
}
