package http

import (
	"github.com/nats-io/nats.go"

	"github.com/stazy/chargeshare/internal/adapters/postgres"
	"github.com/stazy/chargeshare/internal/adapters/valkey"
	"github.com/stazy/chargeshare/internal/core/ports"
	"github.com/stazy/chargeshare/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// DB, NATS and Cache are optional and only used for readiness checks.
type Dependencies struct {
	Stations     *usecases.StationService
	Catalog      *usecases.CatalogService
	Planner      *usecases.PlannerService
	Carts        *usecases.CartService
	Profiles     *usecases.ProfileService
	Reservations *usecases.ReservationService
	Geocoder     ports.Geocoder
	NATS         *nats.Conn
	DB           *postgres.DB
	Cache        *valkey.Cache
}
