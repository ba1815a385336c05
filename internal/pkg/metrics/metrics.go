package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chargeshare",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chargeshare",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chargeshare",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// External services (nominatim, osrm, catalog)
	ExternalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chargeshare",
		Subsystem: "external",
		Name:      "calls_total",
		Help:      "Outbound calls by service and outcome",
	}, []string{"service", "outcome"})

	ExternalCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chargeshare",
		Subsystem: "external",
		Name:      "call_duration_seconds",
		Help:      "Outbound call latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service"})

	// Corridor search
	CorridorScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chargeshare",
		Subsystem: "corridor",
		Name:      "scan_duration_seconds",
		Help:      "Duration of corridor lookups",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"source"})

	CorridorStations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chargeshare",
		Subsystem: "corridor",
		Name:      "stations",
		Help:      "Stations found per corridor lookup",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})

	RoutePlans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chargeshare",
		Subsystem: "planner",
		Name:      "plans_total",
		Help:      "Route plans by outcome",
	}, []string{"outcome"})

	// IRVE import
	IRVERows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chargeshare",
		Subsystem: "irve",
		Name:      "rows_total",
		Help:      "IRVE CSV rows processed by result",
	}, []string{"result"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chargeshare",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chargeshare",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chargeshare",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chargeshare",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chargeshare",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chargeshare",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// Route pattern, not the raw path, keeps /v1/cart/:itemId at one series.
		path := c.Route().Path
		if path == "" {
			path = "unmatched"
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
func UpdateDBPoolMetrics(stat PoolStat) {
	DBPoolConnsAcquired.Set(float64(stat.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(stat.IdleConns()))
	DBPoolConnsOpen.Set(float64(stat.TotalConns()))
}

// PoolStat is the subset of *pgxpool.Stat read by UpdateDBPoolMetrics.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// ObserveCall records one outbound call.
func ObserveCall(service string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ExternalCalls.WithLabelValues(service, outcome).Inc()
	ExternalCallDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
}

// RegisterCatalogGauges exposes the in-memory catalog state. loaded and progress are
// read at scrape time. Call once per process.
func RegisterCatalogGauges(loaded, progress func() float64) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "chargeshare",
		Subsystem: "catalog",
		Name:      "stations_loaded",
		Help:      "Stations in the in-memory catalog snapshot",
	}, loaded)
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "chargeshare",
		Subsystem: "catalog",
		Name:      "load_progress_percent",
		Help:      "Catalog load progress, -1 while the total is unknown",
	}, progress)
}
