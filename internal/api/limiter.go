package api

import (
	"net/http"
	"strings"
	"sync"

	"github.com/saturnRangs/ObservingSatellites/internal/httputil"
	"github.com/saturnRangs/ObservingSatellites/internal/metrics"
)

// runLimiter tracks in-flight API requests per client IP and globally.
type runLimiter struct {
	mu       sync.Mutex
	inflight map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newRunLimiter(maxPerIP, maxTotal int) *runLimiter {
	if maxPerIP < 1 {
		maxPerIP = 1
	}
	if maxTotal < maxPerIP {
		maxTotal = maxPerIP
	}
	return &runLimiter{
		inflight: make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire attempts to register a request for ip.
// Returns false if the IP or global limit has been reached.
func (l *runLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal || l.inflight[ip] >= l.maxPerIP {
		return false
	}
	l.inflight[ip]++
	l.total++
	return true
}

// release returns the slot taken by acquire.
func (l *runLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inflight[ip]--
	l.total--
	if l.inflight[ip] <= 0 {
		delete(l.inflight, ip)
	}
}

// count returns the number of in-flight requests for ip.
func (l *runLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight[ip]
}

// limited reports whether a path consumes a run slot.
func limited(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// limiterMiddleware rejects API requests beyond the concurrency limits with 429.
func (s *Server) limiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limited(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ip := httputil.ClientIP(r, s.deps.TrustProxy)
		if !s.limiter.acquire(ip) {
			metrics.IncRejected("concurrency")
			s.logger.Warn("run limit exceeded",
				"component", "api",
				"remote_ip", ip,
				"current_count", s.limiter.count(ip),
			)
			w.Header().Set("Retry-After", "5")
			httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent requests")
			return
		}
		defer s.limiter.release(ip)

		next.ServeHTTP(w, r)
	})
}
