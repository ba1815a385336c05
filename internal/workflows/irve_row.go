package workflows

import (
	"math"
	"strconv"
	"strings"

	"github.com/stazy/chargeshare/internal/core/domain"
)

const defaultStationName = "Borne de recharge"

// connectorColumns maps IRVE boolean columns to display labels, in display order.
var connectorColumns = []struct {
	column string
	label  string
}{
	{"prise_type_ef", "Type E/F"},
	{"prise_type_2", "Type 2"},
	{"prise_type_combo_ccs", "CCS"},
	{"prise_type_chademo", "CHAdeMO"},
	{"prise_type_autre", "Autre"},
}

// Row is one IRVE CSV record keyed by header name.
type Row map[string]string

func (r Row) get(key string) string {
	return strings.TrimSpace(r[key])
}

// first returns the first non-empty value among keys.
func (r Row) first(keys ...string) string {
	for _, k := range keys {
		if v := r.get(k); v != "" {
			return v
		}
	}
	return ""
}

// MapRow converts an IRVE record into a station. ok is false when the record has no
// usable coordinates.
func MapRow(r Row) (domain.ChargingStation, bool) {
	lon, okLon := parseFloat(r.get("consolidated_longitude"))
	lat, okLat := parseFloat(r.get("consolidated_latitude"))
	if !okLon || !okLat || lat == 0 || lon == 0 {
		return domain.ChargingStation{}, false
	}

	id := r.first("id_pdc_itinerance", "id_station_itinerance")
	if id == "" {
		name := r.get("nom_station")
		if name == "" {
			name = "station"
		}
		id = formatCoord(lon) + "-" + formatCoord(lat) + "-" + name
	}

	s := domain.ChargingStation{
		ID:             id,
		Name:           r.first("nom_station", "nom_enseigne"),
		Address:        r.get("adresse_station"),
		City:           r.get("consolidated_commune"),
		Region:         r.get("consolidated_code_postal"),
		Latitude:       lat,
		Longitude:      lon,
		ConnectorTypes: ConnectorTypes(r),
		Available:      !strings.EqualFold(r.get("etat_pdc"), "hors-service"),
		Operator:       r.first("nom_operateur"),
		AccessType:     r.first("condition_acces"),
		Description:    r.get("observations"),
	}
	if s.Name == "" {
		s.Name = defaultStationName
	}
	if s.Operator == "" {
		s.Operator = domain.DefaultOperator
	}
	if s.AccessType == "" {
		s.AccessType = domain.DefaultAccessType
	}
	if kw, ok := parseFloat(r.get("puissance_nominale")); ok && kw > 0 {
		s.PowerKW = kw
	}
	// tarification is free text in most files; only plain numbers are kept.
	if price, ok := parseFloat(r.get("tarification")); ok && price > 0 {
		s.PricePerHour = price
	}
	return s, true
}

// ConnectorTypes lists the labels of the connector columns set to a truthy value.
func ConnectorTypes(r Row) []string {
	var out []string
	for _, c := range connectorColumns {
		if truthy(r.get(c.column)) {
			out = append(out, c.label)
		}
	}
	return out
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "oui":
		return true
	}
	return false
}

func parseFloat(v string) (float64, bool) {
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
