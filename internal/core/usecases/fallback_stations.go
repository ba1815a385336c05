package usecases

import (
	"fmt"
	"math/rand/v2"

	"github.com/stazy/chargeshare/internal/core/domain"
)

// FallbackTotal is the total advertised with a fallback page.
const FallbackTotal = 100

type fallbackCity struct {
	name, region string
	lat, lon     float64
}

var fallbackCities = []fallbackCity{
	{"Paris", "Île-de-France", 48.8566, 2.3522},
	{"Lyon", "Auvergne-Rhône-Alpes", 45.7640, 4.8357},
	{"Marseille", "Provence-Alpes-Côte d'Azur", 43.2965, 5.3698},
	{"Toulouse", "Occitanie", 43.6047, 1.4442},
	{"Nice", "Provence-Alpes-Côte d'Azur", 43.7102, 7.2620},
	{"Nantes", "Pays de la Loire", 47.2184, -1.5536},
	{"Bordeaux", "Nouvelle-Aquitaine", 44.8378, -0.5792},
	{"Lille", "Hauts-de-France", 50.6292, 3.0573},
	{"Strasbourg", "Grand Est", 48.5734, 7.7521},
	{"Rennes", "Bretagne", 48.1173, -1.6778},
	{"Reims", "Grand Est", 49.2583, 4.0317},
	{"Montpellier", "Occitanie", 43.6108, 3.8767},
	{"Dijon", "Bourgogne-Franche-Comté", 47.3220, 5.0415},
	{"Grenoble", "Auvergne-Rhône-Alpes", 45.1885, 5.7245},
	{"Angers", "Pays de la Loire", 47.4784, -0.5632},
}

var fallbackOperators = []string{"Ionity", "Tesla Supercharger", "Total Energies", "Izivia", "Freshmile"}

var fallbackPowers = []float64{7, 11, 22, 50, 150}

// FallbackStations returns placeholder stations around major French cities, served
// when the catalog database cannot be read. The output is the same on every call.
func FallbackStations() []domain.ChargingStation {
	rng := rand.New(rand.NewPCG(2024, 11))
	var out []domain.ChargingStation
	for ci, city := range fallbackCities {
		n := 5 + rng.IntN(4)
		for i := 0; i < n; i++ {
			op := fallbackOperators[i%len(fallbackOperators)]
			out = append(out, domain.ChargingStation{
				ID:             fmt.Sprintf("fallback-%d-%d", ci, i),
				Name:           op + " - " + city.name,
				Address:        fmt.Sprintf("%d Rue de la Charge, %s", 10+i, city.name),
				City:           city.name,
				Region:         city.region,
				Latitude:       city.lat + (rng.Float64()-0.5)*0.1,
				Longitude:      city.lon + (rng.Float64()-0.5)*0.1,
				PowerKW:        fallbackPowers[i%len(fallbackPowers)],
				PricePerHour:   float64(4 + rng.IntN(6)),
				Available:      rng.Float64() > 0.3,
				ConnectorTypes: []string{"Type 2", "CCS"},
				Operator:       op,
				AccessType:     domain.DefaultAccessType,
				Description:    "Station de recharge rapide",
			})
		}
	}
	return out
}

// FallbackPage wraps FallbackStations as a catalog page.
func FallbackPage() *domain.StationPage {
	return &domain.StationPage{Stations: FallbackStations(), Total: FallbackTotal, Fallback: true}
}
