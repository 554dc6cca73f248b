// Package api exposes visibility runs, the catalog and stored reports over
// HTTP.
package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/auth"
	"github.com/saturnRangs/ObservingSatellites/internal/cache"
	"github.com/saturnRangs/ObservingSatellites/internal/catalog"
	"github.com/saturnRangs/ObservingSatellites/internal/health"
	"github.com/saturnRangs/ObservingSatellites/internal/logging"
	"github.com/saturnRangs/ObservingSatellites/internal/metrics"
	"github.com/saturnRangs/ObservingSatellites/internal/store"
	"github.com/saturnRangs/ObservingSatellites/internal/tle"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// Runner executes visibility runs. *visibility.Scheduler implements it.
type Runner interface {
	Run(ctx context.Context, req visibility.Request, objects []visibility.TrackedObject) (*visibility.Report, error)
	Clock() visibility.Clock
}

// Catalog selects tracked objects by exact names or by name prefix.
// *catalog.Provider implements it.
type Catalog interface {
	Resolve(prefix string, names []string) ([]visibility.TrackedObject, error)
	List(prefix string) ([]catalog.Object, error)
	Version() int64
}

// Refresher downloads a new catalog. *tle.Loader implements it.
type Refresher interface {
	Refresh(ctx context.Context) (*tle.Dataset, error)
}

// ReportStore archives reports. *store.ReportStore implements it.
type ReportStore interface {
	Save(ctx context.Context, r *visibility.Report) (int64, error)
	Get(ctx context.Context, id int64) (*visibility.Report, error)
	List(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// Deps holds the server's collaborators. Engine, Loader, Cache, Reports and
// Web are optional.
type Deps struct {
	Runner    Runner
	Engine    visibility.Engine // pass prediction
	Catalog   Catalog
	TLEStore  *tle.Store
	Loader    Refresher
	Cache     *cache.ReportCache
	Reports   ReportStore
	Readiness *health.Readiness
	Web       fs.FS

	// Defaults fills request parameters the query leaves out.
	Defaults      visibility.Request
	DefaultSelect string
	MaxPairs      int
	MaxInstants   int // grid cap per run; <= 0 uses MaxPairs

	Auth          auth.Config
	TrustProxy    bool
	MaxRunsPerIP  int
	MaxRunsGlobal int
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	deps       Deps
	limiter    *runLimiter
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, deps Deps) *Server {
	if deps.Readiness == nil {
		deps.Readiness = health.NewReadiness()
	}
	s := &Server{
		deps:    deps,
		limiter: newRunLimiter(deps.MaxRunsPerIP, deps.MaxRunsGlobal),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", deps.Readiness.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/tle/metadata", s.tleMetadata)
	mux.HandleFunc("POST /api/v1/tle/fetch", s.tleFetch)
	mux.HandleFunc("GET /api/v1/catalog", s.catalogList)
	mux.HandleFunc("GET /api/v1/visibility", s.visibility)
	mux.HandleFunc("GET /api/v1/passes", s.passList)
	mux.HandleFunc("GET /api/v1/reports", s.reportList)
	mux.HandleFunc("GET /api/v1/reports/{id}", s.reportGet)
	mux.HandleFunc("GET /api/v1/cache/stats", s.cacheStats)
	if deps.Web != nil {
		mux.Handle("GET /", http.FileServerFS(deps.Web))
	}

	// Build middleware chain: metrics -> logging -> auth -> limiter -> mux.
	var handler http.Handler = mux
	handler = s.limiterMiddleware(handler)
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, requestID := logging.EnsureRequestID(r.Context())
			w.Header().Set("X-Request-ID", requestID)
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r.WithContext(ctx))

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
