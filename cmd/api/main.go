package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/stazy/chargeshare/internal/adapters/catalogapi"
	"github.com/stazy/chargeshare/internal/adapters/http"
	natsadapter "github.com/stazy/chargeshare/internal/adapters/nats"
	"github.com/stazy/chargeshare/internal/adapters/nominatim"
	"github.com/stazy/chargeshare/internal/adapters/osrm"
	"github.com/stazy/chargeshare/internal/adapters/postgres"
	"github.com/stazy/chargeshare/internal/adapters/valkey"
	"github.com/stazy/chargeshare/internal/core/catalog"
	"github.com/stazy/chargeshare/internal/core/ports"
	"github.com/stazy/chargeshare/internal/core/usecases"
	"github.com/stazy/chargeshare/internal/pkg/config"
	"github.com/stazy/chargeshare/internal/pkg/logging"
	"github.com/stazy/chargeshare/internal/pkg/metrics"
	"github.com/stazy/chargeshare/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("chargeshare-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Cache (carts live here)
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	// NATS is optional: without it reservations are not announced and the catalog
	// is only reloaded on startup or on demand.
	var (
		natsConn   *nats.Conn
		publisher  ports.EventPublisher
		subscriber *natsadapter.Subscriber
	)
	if nc, err := natsadapter.Connect(cfg.NATS.URL, "chargeshare-api"); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		natsConn = nc
		defer nc.Close()
		if pub, err := natsadapter.NewPublisher(nc); err != nil {
			slog.Warn("jetstream publisher unavailable", "error", err)
		} else {
			publisher = pub
		}
		if sub, err := natsadapter.NewSubscriber(nc, durableName()); err != nil {
			slog.Warn("jetstream subscriber unavailable", "error", err)
		} else {
			subscriber = sub
			defer sub.Close()
		}
	}

	// Repos
	stationRepo := postgres.NewStationRepo(db)
	reservationRepo := postgres.NewReservationRepo(db)
	cartStore := valkey.NewCartStore(cache, time.Duration(cfg.Valkey.CartTTL)*time.Second)
	profileStore := valkey.NewProfileStore(cache)

	// External services
	geocoder := nominatim.New(nominatim.Config{
		BaseURL:   cfg.Geocoder.BaseURL,
		Country:   cfg.Geocoder.Country,
		UserAgent: cfg.Geocoder.UserAgent,
		Timeout:   cfg.Geocoder.Timeout,
	}, cache)
	router := osrm.New(osrm.Config{
		BaseURL:         cfg.Routing.BaseURL,
		SupportsExclude: cfg.Routing.SupportsExclude,
		Timeout:         cfg.Routing.Timeout,
	})

	// Use cases
	store := catalog.NewStore()
	stationSvc := usecases.NewStationService(stationRepo, cache, store)

	var pager ports.StationPager = stationSvc
	if cfg.Catalog.Source == "http" {
		pager = catalogapi.New(cfg.Catalog.BaseURL, 30*time.Second)
	}
	catalogSvc := usecases.NewCatalogService(
		usecases.NewCatalogLoader(pager, cfg.Catalog.MaxStations),
		store,
		cfg.Catalog.PageSize,
	)
	plannerSvc := usecases.NewPlannerService(geocoder, router, stationRepo, store, cfg.Planner.RadiusKm, cfg.Planner.CallTimeout)
	cartSvc := usecases.NewCartService(cartStore)
	profileSvc := usecases.NewProfileService(profileStore)
	reservationSvc := usecases.NewReservationService(reservationRepo, publisher)

	metrics.RegisterCatalogGauges(
		func() float64 { return float64(store.Load().Loaded()) },
		func() float64 { return float64(store.Load().Progress) },
	)

	if err := catalogSvc.TriggerReload(ctx); err != nil {
		slog.Warn("initial catalog load not started", "error", err)
	}
	if subscriber != nil {
		if err := subscriber.SubscribeCatalogUpdated(ctx, catalogSvc.HandleCatalogUpdated); err != nil {
			slog.Warn("catalog updates subscription failed", "error", err)
		}
	}

	deps := &http.Dependencies{
		Stations:     stationSvc,
		Catalog:      catalogSvc,
		Planner:      plannerSvc,
		Carts:        cartSvc,
		Profiles:     profileSvc,
		Reservations: reservationSvc,
		Geocoder:     geocoder,
		NATS:         natsConn,
		DB:           db,
		Cache:        cache,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // long polylines
		AppName:      "ChargeShare API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, " + http.HeaderUserID,
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "catalog_source", cfg.Catalog.Source)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// durableName gives each replica its own JetStream consumer so every instance
// reloads its catalog.
func durableName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "chargeshare-api-" + host
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		case <-ctx.Done():
			return
		}
	}
}
