package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/stazy/chargeshare/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// legacySunset is when the unversioned aliases of the map page endpoints go away.
var legacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// LegacyRoutes are the unversioned paths still served for older front-ends.
var LegacyRoutes = []DeprecatedRoute{
	{Path: "/stations", SunsetDate: legacySunset, Alternative: "/v1/stations"},
	{Path: "/stations/route", SunsetDate: legacySunset, Alternative: "/v1/stations/route"},
	{Path: "/stations/search", SunsetDate: legacySunset, Alternative: "/v1/stations/search"},
	{Path: "/geocode", SunsetDate: legacySunset, Alternative: "/v1/geocode"},
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // catalog pages are large
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(LegacyRoutes))

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/stations", withTimeout(ListStationsHandler(deps)))
	v1.Post("/stations/route", withTimeout(StationsNearRouteHandler(deps)))
	v1.Post("/stations/search", withTimeout(SearchStationsHandler(deps)))
	v1.Get("/catalog/status", CatalogStatusHandler(deps))
	v1.Post("/catalog/reload", CatalogReloadHandler(deps))
	v1.Post("/geocode", withTimeout(GeocodeHandler(deps)))
	v1.Post("/routes/plan", withTimeout(PlanRouteHandler(deps)))

	cart := v1.Group("/cart", RequireUser())
	cart.Get("", withTimeout(GetCartHandler(deps)))
	cart.Post("", withTimeout(AddCartItemHandler(deps)))
	cart.Delete("", withTimeout(ClearCartHandler(deps)))
	cart.Delete("/:itemId", withTimeout(RemoveCartItemHandler(deps)))

	profile := v1.Group("/profile", RequireUser())
	profile.Get("", withTimeout(GetProfileHandler(deps)))
	profile.Put("", withTimeout(UpdateProfileHandler(deps)))

	reservations := v1.Group("/reservations", RequireUser())
	reservations.Get("", withTimeout(ListReservationsHandler(deps)))
	reservations.Post("", withTimeout(CreateReservationHandler(deps)))

	// Unversioned aliases, see LegacyRoutes.
	app.Get("/stations", withTimeout(ListStationsHandler(deps)))
	app.Post("/stations/route", withTimeout(StationsNearRouteHandler(deps)))
	app.Post("/stations/search", withTimeout(SearchStationsHandler(deps)))
	app.Post("/geocode", withTimeout(GeocodeHandler(deps)))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, requestTimeout)
}
