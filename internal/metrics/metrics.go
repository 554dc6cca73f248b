package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsat_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "obsat_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	httpRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsat_http_rejected_total",
			Help: "Requests refused before any work, by reason.",
		},
		[]string{"reason"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obsat_visibility_run_duration_seconds",
			Help:    "Wall time of a visibility run.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	gridInstants = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "obsat_visibility_grid_instants",
		Help: "Sample instants in the most recent run.",
	})

	twilightInstants = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "obsat_visibility_twilight_instants",
		Help: "Sample instants inside the twilight band in the most recent run.",
	})

	peakCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "obsat_visibility_peak_count",
		Help: "Maximum simultaneous visible objects in the most recent run.",
	})

	pairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsat_visibility_pairs_total",
			Help: "Object/instant pairs evaluated, by outcome.",
		},
		[]string{"outcome"},
	)

	catalogObjects = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "obsat_catalog_objects",
		Help: "Number of objects in the loaded catalog.",
	})

	catalogAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "obsat_catalog_age_seconds",
		Help: "Seconds since the loaded catalog was fetched.",
	})

	cacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obsat_report_cache_events_total",
			Help: "Report cache lookups and evictions.",
		},
		[]string{"event"},
	)

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "obsat_report_cache_entries",
		Help: "Reports currently held in the cache.",
	})

	workersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "obsat_evaluator_workers",
		Help: "Configured evaluator goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		httpRejectedTotal,
		runDurationSeconds,
		gridInstants,
		twilightInstants,
		peakCount,
		pairsTotal,
		catalogObjects,
		catalogAgeSeconds,
		cacheEventsTotal,
		cacheEntries,
		workersActive,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncRejected counts a request refused for reason ("budget", "concurrency").
func IncRejected(reason string) { httpRejectedTotal.WithLabelValues(reason).Inc() }

// RecordVisibilityRun records the outcome of one scheduler run.
func RecordVisibilityRun(d time.Duration, grid, twilight, evaluated, skipped, peak int) {
	runDurationSeconds.Observe(d.Seconds())
	gridInstants.Set(float64(grid))
	twilightInstants.Set(float64(twilight))
	peakCount.Set(float64(peak))
	pairsTotal.WithLabelValues("evaluated").Add(float64(evaluated))
	pairsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// SetCatalogSize sets the number of loaded catalog objects.
func SetCatalogSize(n int) { catalogObjects.Set(float64(n)) }

// SetCatalogAge sets the age of the loaded catalog.
func SetCatalogAge(d time.Duration) { catalogAgeSeconds.Set(d.Seconds()) }

// SetEvaluatorWorkers sets the evaluator pool size gauge.
func SetEvaluatorWorkers(n int) { workersActive.Set(float64(n)) }

// SetCacheEntries sets the report cache size gauge.
func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }

func IncCacheHits()      { cacheEventsTotal.WithLabelValues("hit").Inc() }
func IncCacheMisses()    { cacheEventsTotal.WithLabelValues("miss").Inc() }
func IncCacheEvictions() { cacheEventsTotal.WithLabelValues("eviction").Inc() }

// knownRoutes are reported as-is; anything else collapses to "other" so that
// scanners cannot blow up label cardinality.
var knownRoutes = map[string]bool{
	"/":                    true,
	"/app.js":              true,
	"/styles.css":          true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
	"/api/v1/tle/fetch":    true,
	"/api/v1/catalog":      true,
	"/api/v1/visibility":   true,
	"/api/v1/passes":       true,
	"/api/v1/reports":      true,
	"/api/v1/cache/stats":  true,
}

const reportsPrefix = "/api/v1/reports/"

// normalizeRoute maps a request path to a bounded label value.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, reportsPrefix); ok && id != "" && !strings.Contains(id, "/") {
		if _, err := strconv.ParseInt(id, 10, 64); err == nil {
			return reportsPrefix + "{id}"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
