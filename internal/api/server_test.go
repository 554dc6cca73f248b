package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/cache"
	"github.com/saturnRangs/ObservingSatellites/internal/catalog"
	"github.com/saturnRangs/ObservingSatellites/internal/store"
	"github.com/saturnRangs/ObservingSatellites/internal/tle"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var testNow = time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

// twilightEngine keeps the sun inside the default band and every object high
// and sunlit, so each object counts at each instant.
type twilightEngine struct{}

func (twilightEngine) SunAltitude(time.Time, visibility.Location) (float64, error) { return -10, nil }
func (twilightEngine) ObjectAltitude(time.Time, visibility.Location, any) (float64, error) {
	return 40, nil
}
func (twilightEngine) IsSunlit(time.Time, any) (bool, error) { return true, nil }

type fakeCatalog struct {
	objects []visibility.TrackedObject
	err     error
}

func newFakeCatalog(n int) *fakeCatalog {
	c := &fakeCatalog{}
	for i := range n {
		c.objects = append(c.objects, visibility.TrackedObject{Name: "SAT-" + string(rune('A'+i))})
	}
	return c
}

func (c *fakeCatalog) Version() int64 { return 1 }

// Resolve mirrors catalog.Provider: exact names first, then a prefix where ""
// and "all" match everything and an unmatched prefix is ErrObjectNotFound.
func (c *fakeCatalog) Resolve(prefix string, names []string) ([]visibility.TrackedObject, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(names) > 0 {
		var out []visibility.TrackedObject
		for _, name := range names {
			found := false
			for _, o := range c.objects {
				if strings.EqualFold(o.Name, name) {
					out = append(out, o)
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("%w: %q", catalog.ErrObjectNotFound, name)
			}
		}
		return out, nil
	}
	if prefix == "" || strings.EqualFold(prefix, catalog.SelectAll) {
		return c.objects, nil
	}
	var out []visibility.TrackedObject
	for _, o := range c.objects {
		if strings.HasPrefix(strings.ToUpper(o.Name), strings.ToUpper(prefix)) {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", catalog.ErrObjectNotFound, prefix)
	}
	return out, nil
}

func (c *fakeCatalog) List(string) ([]catalog.Object, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([]catalog.Object, len(c.objects))
	for i, o := range c.objects {
		out[i] = catalog.Object{Name: o.Name, NORADID: 40000 + i}
	}
	return out, nil
}

type memoryReports struct {
	mu      sync.Mutex
	reports []*visibility.Report
}

func (m *memoryReports) Save(_ context.Context, r *visibility.Report) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return int64(len(m.reports)), nil
}

func (m *memoryReports) Get(_ context.Context, id int64) (*visibility.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || int(id) > len(m.reports) {
		return nil, store.ErrNotFound
	}
	return m.reports[id-1], nil
}

func (m *memoryReports) List(_ context.Context, limit int) ([]store.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.RunSummary
	for i := len(m.reports) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.reports[i]
		out = append(out, store.RunSummary{ID: int64(i + 1), GeneratedAt: r.GeneratedAt, Start: r.Start, Max: r.Max})
	}
	return out, nil
}

func defaultRequest() visibility.Request {
	return visibility.Request{
		Location:        visibility.Location{LatDeg: 33.64561821100173, LonDeg: -117.68649668652029},
		Resolution:      30 * time.Minute,
		Horizon:         12 * time.Hour,
		Band:            visibility.Band{LowerDeg: -27, UpperDeg: -3},
		MinElevationDeg: 5,
	}
}

func testDeps(cat Catalog) Deps {
	return Deps{
		Runner:        visibility.NewScheduler(twilightEngine{}, testLogger(), visibility.WithClock(visibility.FixedClock{T: testNow})),
		Catalog:       cat,
		TLEStore:      tle.NewStore(),
		Defaults:      defaultRequest(),
		DefaultSelect: catalog.SelectAll,
		MaxPairs:      100,
		MaxRunsPerIP:  2,
		MaxRunsGlobal: 4,
	}
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// TestVisibilityCPUBudget verifies that runs whose object x instant product
// exceeds the budget are rejected with 400 before any work.
func TestVisibilityCPUBudget(t *testing.T) {
	s := NewServer(":0", testLogger(), testDeps(newFakeCatalog(10)))

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"budget exceeded: defaults (10 x 24)", "", http.StatusBadRequest},
		{"budget exceeded: hours=12 resolution=60", "?resolution=60", http.StatusBadRequest},
		{"within budget: hours=6 resolution=60", "?hours=6&resolution=60", http.StatusOK},
		{"within budget: hours=1 resolution=10", "?hours=1&resolution=10", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, "GET", "/api/v1/visibility"+tt.query)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusBadRequest {
				var resp map[string]any
				json.NewDecoder(w.Body).Decode(&resp)
				if msg, _ := resp["error"].(string); !strings.Contains(msg, "request too large") {
					t.Errorf("error = %q, want budget message", msg)
				}
			}
		})
	}
}

func TestVisibilityInvalidParameters(t *testing.T) {
	s := NewServer(":0", testLogger(), testDeps(newFakeCatalog(1)))

	queries := []string{
		"?lat=north",
		"?lat=91",
		"?lon=NaN",
		"?resolution=0",
		"?hours=-2",
		"?resolution=120&hours=1",
		"?lower=-3&upper=-27",
		"?lower=-6&upper=2",
		"?min_elevation=-1",
		"?tz=Mars/Olympus_Mons",
		"?format=docx",
		"?start=yesterday",
		"?save=maybe",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			w := serve(s, "GET", "/api/v1/visibility"+q)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestVisibilityReport(t *testing.T) {
	s := NewServer(":0", testLogger(), testDeps(newFakeCatalog(3)))

	w := serve(s, "GET", "/api/v1/visibility?hours=6&resolution=30&tz=America/Los_Angeles")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}

	var r visibility.Report
	if err := json.NewDecoder(w.Body).Decode(&r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !r.Start.Equal(testNow) {
		t.Errorf("start = %v, want clock time %v", r.Start, testNow)
	}
	if r.GridSize != 12 || len(r.Entries) != 12 {
		t.Errorf("grid = %d entries = %d, want 12/12", r.GridSize, len(r.Entries))
	}
	if r.Max != 3 || r.ObjectCount != 3 {
		t.Errorf("max = %d objects = %d, want 3/3", r.Max, r.ObjectCount)
	}
	if r.Zone != "America/Los_Angeles" {
		t.Errorf("zone = %q", r.Zone)
	}
	if len(r.Peaks) != 12 {
		t.Errorf("peaks = %d, want every instant tied at the maximum", len(r.Peaks))
	}
}

func TestVisibilityGridBudget(t *testing.T) {
	s := NewServer(":0", testLogger(), testDeps(newFakeCatalog(0)))

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"empty selection, tiny resolution", "?resolution=0.001&hours=50", http.StatusBadRequest},
		{"empty selection, grid at cap", "?resolution=6&hours=10", http.StatusOK},
		{"empty selection, grid over cap", "?resolution=5&hours=10", http.StatusBadRequest},
		{"horizon overflows a duration", "?hours=1e300", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, "GET", "/api/v1/visibility"+tt.query)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestOverBudget(t *testing.T) {
	tests := []struct {
		name                                     string
		objects, instants, maxInstants, maxPairs int
		wantRefused                              bool
	}{
		{"fits", 10, 10, 0, 100, false},
		{"pairs over", 11, 10, 0, 100, true},
		{"grid over pairs cap with no objects", 0, 101, 0, 100, true},
		{"grid over own cap", 1, 60, 50, 1000, true},
		{"product would overflow int", math.MaxInt / 2, 4, 0, 1_000_000, true},
		{"no limits", 1_000_000, 1_000_000, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := overBudget(tt.objects, tt.instants, tt.maxInstants, tt.maxPairs)
			if (msg != "") != tt.wantRefused {
				t.Errorf("overBudget = %q, want refused=%v", msg, tt.wantRefused)
			}
		})
	}
}

func TestVisibilityStartParameter(t *testing.T) {
	s := NewServer(":0", testLogger(), testDeps(newFakeCatalog(1)))

	w := serve(s, "GET", "/api/v1/visibility?hours=1&resolution=30&start=2024-06-01T03:15:42Z")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var r visibility.Report
	json.NewDecoder(w.Body).Decode(&r)
	if want := time.Date(2024, 6, 1, 3, 15, 0, 0, time.UTC); !r.Start.Equal(want) {
		t.Errorf("start = %v, want %v", r.Start, want)
	}
}

func TestVisibilityCache(t *testing.T) {
	cat := newFakeCatalog(2)
	deps := testDeps(cat)
	deps.Cache = cache.NewReportCache(cache.Config{}, cat, testLogger())
	s := NewServer(":0", testLogger(), deps)

	first := serve(s, "GET", "/api/v1/visibility?hours=2")
	if got := first.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}
	second := serve(s, "GET", "/api/v1/visibility?hours=2")
	if got := second.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("cached body differs from computed body")
	}

	other := serve(s, "GET", "/api/v1/visibility?hours=2&min_elevation=10")
	if got := other.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("different request X-Cache = %q, want MISS", got)
	}

	w := serve(s, "GET", "/api/v1/cache/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats cache.Stats
	json.NewDecoder(w.Body).Decode(&stats)
	if stats.Hits != 1 || stats.Misses != 2 {
		t.Errorf("stats = %+v, want 1 hit 2 misses", stats)
	}
}

func TestVisibilityCacheExplicitStart(t *testing.T) {
	cat := newFakeCatalog(1)
	deps := testDeps(cat)
	deps.Cache = cache.NewReportCache(cache.Config{}, cat, testLogger())
	s := NewServer(":0", testLogger(), deps)

	run := func(start string) (string, time.Time) {
		t.Helper()
		w := serve(s, "GET", "/api/v1/visibility?hours=2&resolution=30&start="+start)
		if w.Code != http.StatusOK {
			t.Fatalf("start=%s status = %d: %s", start, w.Code, w.Body.String())
		}
		var r visibility.Report
		json.NewDecoder(w.Body).Decode(&r)
		return w.Header().Get("X-Cache"), r.Start
	}

	if hit, start := run("2024-06-01T03:00:00Z"); hit != "MISS" || start.Minute() != 0 {
		t.Fatalf("first: X-Cache=%s start=%v", hit, start)
	}
	hit, start := run("2024-06-01T03:29:00Z")
	if hit != "MISS" {
		t.Errorf("later start in the same slot X-Cache = %s, want MISS", hit)
	}
	if want := time.Date(2024, 6, 1, 3, 29, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if hit, _ := run("2024-06-01T03:29:40Z"); hit != "HIT" {
		t.Errorf("same minute X-Cache = %s, want HIT", hit)
	}
}

func TestVisibilityUnknownObject(t *testing.T) {
	deps := testDeps(newFakeCatalog(3))
	deps.Engine = twilightEngine{}
	s := NewServer(":0", testLogger(), deps)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"unmatched prefix", "?select=NOSUCH", http.StatusNotFound, 0},
		{"unknown name", "?object=SAT-A&object=HUBBLE", http.StatusNotFound, 0},
		{"matched prefix", "?select=sat-b", http.StatusOK, 1},
		{"named objects", "?object=SAT-A,sat-c", http.StatusOK, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, "GET", "/api/v1/visibility?hours=1"+strings.Replace(tt.query, "?", "&", 1))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var r visibility.Report
			json.NewDecoder(w.Body).Decode(&r)
			if r.Max != tt.wantCount {
				t.Errorf("max = %d, want %d", r.Max, tt.wantCount)
			}
		})
	}

	if w := serve(s, "GET", "/api/v1/passes?hours=1&select=NOSUCH"); w.Code != http.StatusNotFound {
		t.Errorf("passes status = %d, want 404", w.Code)
	}
	if w := serve(s, "GET", "/api/v1/passes?hours=1&object=SAT-B"); w.Code != http.StatusOK {
		t.Errorf("passes by name status = %d, want 200", w.Code)
	}
}

func TestVisibilityFormats(t *testing.T) {
	s := NewServer(":0", testLogger(), testDeps(newFakeCatalog(1)))

	tests := []struct {
		format      string
		contentType string
		attachment  bool
	}{
		{"csv", "text/csv", true},
		{"text", "text/plain", false},
		{"yaml", "application/yaml", false},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", true},
		{"pdf", "application/pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w := serve(s, "GET", "/api/v1/visibility?hours=1&format="+tt.format)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Errorf("content type = %q, want %q", ct, tt.contentType)
			}
			cd := w.Header().Get("Content-Disposition")
			if tt.attachment != strings.HasPrefix(cd, "attachment") {
				t.Errorf("content disposition = %q", cd)
			}
		})
	}
}

func TestVisibilityNoCatalog(t *testing.T) {
	cat := &fakeCatalog{err: catalog.ErrNoCatalog}
	s := NewServer(":0", testLogger(), testDeps(cat))

	if w := serve(s, "GET", "/api/v1/visibility"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("visibility status = %d, want 503", w.Code)
	}
	if w := serve(s, "GET", "/api/v1/catalog"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("catalog status = %d, want 503", w.Code)
	}
}

func TestCatalogList(t *testing.T) {
	s := NewServer(":0", testLogger(), testDeps(newFakeCatalog(3)))

	w := serve(s, "GET", "/api/v1/catalog?select=SAT")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Select  string           `json:"select"`
		Count   int              `json:"count"`
		Objects []catalog.Object `json:"objects"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Select != "SAT" || resp.Count != 3 || len(resp.Objects) != 3 {
		t.Errorf("response = %+v", resp)
	}
}

func TestTLEMetadata(t *testing.T) {
	deps := testDeps(newFakeCatalog(1))
	s := NewServer(":0", testLogger(), deps)

	if w := serve(s, "GET", "/api/v1/tle/metadata"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("empty store status = %d, want 503", w.Code)
	}

	epoch := time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC)
	deps.TLEStore.Set(tle.NewDataset("test", testNow.Add(-time.Hour), []tle.Entry{
		{NORADID: 25544, Name: "ISS", Epoch: epoch},
		{NORADID: 43744, Name: "ICEYE-X2", Epoch: epoch.Add(24 * time.Hour)},
	}))

	w := serve(s, "GET", "/api/v1/tle/metadata")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var meta tleMetadataResponse
	if err := json.NewDecoder(w.Body).Decode(&meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.Count != 2 || meta.Source != "test" || meta.AgeSeconds != 3600 {
		t.Errorf("metadata = %+v", meta)
	}
	if !meta.EpochRange.Min.Equal(epoch) || !meta.EpochRange.Max.Equal(epoch.Add(24*time.Hour)) {
		t.Errorf("epoch range = %+v", meta.EpochRange)
	}
}

type failingRefresher struct{}

func (failingRefresher) Refresh(context.Context) (*tle.Dataset, error) {
	return nil, errors.New("celestrak unreachable")
}

func TestTLEFetch(t *testing.T) {
	deps := testDeps(newFakeCatalog(1))
	s := NewServer(":0", testLogger(), deps)
	if w := serve(s, "POST", "/api/v1/tle/fetch"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no loader status = %d, want 503", w.Code)
	}
	if w := serve(s, "GET", "/api/v1/tle/fetch"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}

	deps.Loader = failingRefresher{}
	s = NewServer(":0", testLogger(), deps)
	if w := serve(s, "POST", "/api/v1/tle/fetch"); w.Code != http.StatusBadGateway {
		t.Errorf("failing loader status = %d, want 502", w.Code)
	}
}

func TestReportsNotConfigured(t *testing.T) {
	s := NewServer(":0", testLogger(), testDeps(newFakeCatalog(1)))

	for _, path := range []string{"/api/v1/reports", "/api/v1/reports/1", "/api/v1/visibility?hours=1&save=true"} {
		if w := serve(s, "GET", path); w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, w.Code)
		}
	}
	if w := serve(s, "GET", "/api/v1/cache/stats"); w.Code != http.StatusNotFound {
		t.Errorf("cache stats status = %d, want 404", w.Code)
	}
}

func TestReportsSaveAndGet(t *testing.T) {
	deps := testDeps(newFakeCatalog(2))
	deps.Reports = &memoryReports{}
	s := NewServer(":0", testLogger(), deps)

	w := serve(s, "GET", "/api/v1/visibility?hours=1&save=true")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	id := w.Header().Get("X-Report-ID")
	if id != "1" {
		t.Fatalf("X-Report-ID = %q, want 1", id)
	}

	w = serve(s, "GET", "/api/v1/reports/"+id)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var r visibility.Report
	json.NewDecoder(w.Body).Decode(&r)
	if r.Max != 2 {
		t.Errorf("stored max = %d, want 2", r.Max)
	}

	w = serve(s, "GET", "/api/v1/reports/1?format=csv")
	if !strings.HasPrefix(w.Body.String(), "time_utc,") {
		t.Errorf("csv body = %q", w.Body.String())
	}

	w = serve(s, "GET", "/api/v1/reports")
	var list struct {
		Count int `json:"count"`
	}
	json.NewDecoder(w.Body).Decode(&list)
	if list.Count != 1 {
		t.Errorf("list count = %d, want 1", list.Count)
	}

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/v1/reports/abc", http.StatusBadRequest},
		{"/api/v1/reports/0", http.StatusBadRequest},
		{"/api/v1/reports/99", http.StatusNotFound},
		{"/api/v1/reports/1?format=docx", http.StatusBadRequest},
		{"/api/v1/reports?limit=0", http.StatusBadRequest},
		{"/api/v1/reports?limit=1000", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := serve(s, "GET", tt.path); w.Code != tt.wantStatus {
			t.Errorf("%s status = %d, want %d", tt.path, w.Code, tt.wantStatus)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := NewServer(":0", testLogger(), testDeps(newFakeCatalog(1)))
	w := serve(s, "GET", "/healthz")
	if len(w.Header().Get("X-Request-ID")) != 16 {
		t.Errorf("X-Request-ID = %q", w.Header().Get("X-Request-ID"))
	}
}

func TestRunLimiter(t *testing.T) {
	l := newRunLimiter(2, 3)

	if !l.acquire("10.0.0.1") || !l.acquire("10.0.0.1") {
		t.Fatal("first two acquires for one IP should succeed")
	}
	if l.acquire("10.0.0.1") {
		t.Error("third acquire for one IP should fail")
	}
	if !l.acquire("10.0.0.2") {
		t.Error("acquire for a second IP should succeed")
	}
	if l.acquire("10.0.0.3") {
		t.Error("acquire beyond the global limit should fail")
	}

	l.release("10.0.0.1")
	if got := l.count("10.0.0.1"); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
	if !l.acquire("10.0.0.3") {
		t.Error("acquire after release should succeed")
	}
}

func TestLimiterMiddleware(t *testing.T) {
	deps := testDeps(newFakeCatalog(1))
	deps.MaxRunsPerIP = 1
	s := NewServer(":0", testLogger(), deps)

	// Hold the only slot for the test client address.
	if !s.limiter.acquire("192.0.2.1") {
		t.Fatal("acquire failed")
	}
	w := serve(s, "GET", "/api/v1/catalog")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if w := serve(s, "GET", "/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 regardless of limiter", w.Code)
	}

	s.limiter.release("192.0.2.1")
	if w := serve(s, "GET", "/api/v1/catalog"); w.Code != http.StatusOK {
		t.Errorf("status after release = %d, want 200", w.Code)
	}
}

func TestPassList(t *testing.T) {
	deps := testDeps(newFakeCatalog(3))
	s := NewServer(":0", testLogger(), deps)
	if w := serve(s, "GET", "/api/v1/passes"); w.Code != http.StatusNotFound {
		t.Fatalf("no engine status = %d, want 404", w.Code)
	}

	deps.Engine = twilightEngine{}
	s = NewServer(":0", testLogger(), deps)

	w := serve(s, "GET", "/api/v1/passes?hours=1&visible_only=true")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp passesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 3 || !resp.Start.Equal(testNow) {
		t.Errorf("count = %d start = %v", resp.Count, resp.Start)
	}
	for _, o := range resp.Objects {
		// Always overhead: one pass spanning the whole window.
		if o.Error != "" || len(o.Passes) != 1 || !o.Passes[0].Visible() {
			t.Errorf("%s: %+v", o.Name, o)
		}
	}

	tests := []struct {
		query      string
		wantStatus int
	}{
		{"?hours=100", http.StatusBadRequest},
		{"?max_passes=0", http.StatusBadRequest},
		{"?visible_only=perhaps", http.StatusBadRequest},
		{"?min_elevation=95", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := serve(s, "GET", "/api/v1/passes"+tt.query); w.Code != tt.wantStatus {
			t.Errorf("%s status = %d, want %d", tt.query, w.Code, tt.wantStatus)
		}
	}

	deps.Catalog = newFakeCatalog(maxPassObjects + 1)
	s = NewServer(":0", testLogger(), deps)
	if w := serve(s, "GET", "/api/v1/passes?hours=1"); w.Code != http.StatusBadRequest {
		t.Errorf("oversized selection status = %d, want 400", w.Code)
	}
}
