// Package health serves liveness and readiness probes.
package health

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Check returns nil when its dependency is ready.
type Check func() error

// Readiness aggregates named checks.
type Readiness struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewReadiness creates an empty Readiness; with no checks it is ready.
func NewReadiness() *Readiness {
	return &Readiness{checks: make(map[string]Check)}
}

// Add registers a check under name, replacing any previous one.
func (rd *Readiness) Add(name string, c Check) {
	rd.mu.Lock()
	rd.checks[name] = c
	rd.mu.Unlock()
}

// Failures runs every check and returns "name: error" for each failure,
// sorted by name.
func (rd *Readiness) Failures() []string {
	rd.mu.RLock()
	defer rd.mu.RUnlock()

	var out []string
	for name, c := range rd.checks {
		if err := c(); err != nil {
			out = append(out, fmt.Sprintf("%s: %v", name, err))
		}
	}
	sort.Strings(out)
	return out
}

// Readyz returns 200 "ready\n" when every check passes and 503 listing the
// failures otherwise.
func (rd *Readiness) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if failures := rd.Failures(); len(failures) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n" + strings.Join(failures, "\n") + "\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
