// Package cache provides an in-memory cache of visibility reports.
//
// Reports are keyed by a fingerprint of the request that produced them and
// expire after a TTL. A background worker evicts expired entries, and the
// whole cache is dropped when the catalog dataset changes so that a report is
// never served against a catalog it was not computed from.
package cache

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/metrics"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// Config holds cache configuration.
type Config struct {
	TTL        time.Duration // Entry lifetime (default: 5m)
	MaxEntries int           // Oldest entries are dropped beyond this (default: 256)
	Sweep      time.Duration // Eviction interval (default: 30s)
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 256
	}
	if c.Sweep <= 0 {
		c.Sweep = 30 * time.Second
	}
	return c
}

// VersionSource reports the version of the dataset reports are computed
// from. catalog.Provider satisfies it.
type VersionSource interface {
	Version() int64
}

// Entry wraps a cached report with its lifetime.
type Entry struct {
	Report    *visibility.Report
	StoredAt  time.Time
	ExpiresAt time.Time
}

// ReportCache is safe for concurrent use by multiple goroutines.
type ReportCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	config  Config
	dataset VersionSource
	logger  *slog.Logger
	now     func() time.Time

	// Dataset version the entries were computed from.
	currentVersion atomic.Int64

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewReportCache creates a new report cache. dataset may be nil, in which
// case entries only expire by TTL.
func NewReportCache(config Config, dataset VersionSource, logger *slog.Logger) *ReportCache {
	config = config.withDefaults()
	logger.Info("report cache initialized",
		"component", "cache",
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
		"sweep_seconds", config.Sweep.Seconds(),
	)

	c := &ReportCache{
		entries: make(map[string]*Entry),
		config:  config,
		dataset: dataset,
		logger:  logger,
		now:     time.Now,
	}
	if dataset != nil {
		c.currentVersion.Store(dataset.Version())
	}
	return c
}

// Key fingerprints a request with an explicit start. Two requests with the
// same key produce the same report against the same dataset. The start is
// truncated to the minute, as the grid is.
func Key(req visibility.Request, selection string, version int64) string {
	return key("at", req.Start.UTC().Truncate(time.Minute), req, selection, version)
}

// RollingKey fingerprints a request whose start defaulted to the clock. The
// start is truncated to the resolution so that requests a few seconds apart
// share an entry. Rolling keys never collide with Key.
func RollingKey(req visibility.Request, selection string, version int64) string {
	start := req.Start.UTC().Truncate(time.Minute)
	if req.Resolution > 0 {
		start = req.Start.UTC().Truncate(req.Resolution)
	}
	return key("now", start, req, selection, version)
}

func key(kind string, start time.Time, req visibility.Request, selection string, version int64) string {
	zone := "UTC"
	if req.DisplayZone != nil {
		zone = req.DisplayZone.String()
	}
	return fmt.Sprintf("v%d|%s|%.5f,%.5f,%.0f|%d|%d|%d|%g,%g|%g|%s|%s",
		version,
		kind,
		round5(req.Location.LatDeg), round5(req.Location.LonDeg), req.Location.AltM,
		start.Unix(), int64(req.Resolution), int64(req.Horizon),
		req.Band.LowerDeg, req.Band.UpperDeg,
		req.MinElevationDeg,
		zone,
		strings.ToUpper(strings.TrimSpace(selection)),
	)
}

func round5(v float64) float64 { return math.Round(v*1e5) / 1e5 }

// Get returns the cached report for key, or nil on a miss or expiry.
func (c *ReportCache) Get(key string) *visibility.Report {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.ExpiresAt) {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return entry.Report
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// Put stores r under key.
func (c *ReportCache) Put(key string, r *visibility.Report) {
	now := c.now()
	entry := &Entry{
		Report:    r,
		StoredAt:  now,
		ExpiresAt: now.Add(c.config.TTL),
	}

	c.mu.Lock()
	c.entries[key] = entry
	dropped := c.trimLocked()
	c.mu.Unlock()

	c.recordEvictions(dropped)
	c.updateMetrics()
}

// trimLocked drops the oldest entries beyond MaxEntries. Caller holds mu.
func (c *ReportCache) trimLocked() int {
	var dropped int
	for len(c.entries) > c.config.MaxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.StoredAt.Before(oldest) {
				oldestKey, oldest = k, e.StoredAt
			}
		}
		delete(c.entries, oldestKey)
		dropped++
	}
	return dropped
}

// evictExpired removes entries past their expiry.
func (c *ReportCache) evictExpired() int {
	now := c.now()
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.recordEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "component", "cache", "entries_removed", removed)
	}
	return removed
}

// Purge drops every entry and returns how many were removed.
func (c *ReportCache) Purge() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	c.recordEvictions(n)
	c.updateMetrics()
	return n
}

func (c *ReportCache) recordEvictions(n int) {
	if n == 0 {
		return
	}
	c.evictions.Add(int64(n))
	for range n {
		metrics.IncCacheEvictions()
	}
}

// Stats returns current cache statistics.
func (c *ReportCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	var oldest, newest time.Time
	for _, e := range c.entries {
		if oldest.IsZero() || e.StoredAt.Before(oldest) {
			oldest = e.StoredAt
		}
		if newest.IsZero() || e.StoredAt.After(newest) {
			newest = e.StoredAt
		}
	}
	c.mu.RUnlock()

	return Stats{
		Entries:        count,
		OldestStoredAt: oldest,
		NewestStoredAt: newest,
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Evictions:      c.evictions.Load(),
		DatasetVersion: c.currentVersion.Load(),
		TTLSeconds:     c.config.TTL.Seconds(),
	}
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries        int       `json:"entries"`
	OldestStoredAt time.Time `json:"oldest_stored_at"`
	NewestStoredAt time.Time `json:"newest_stored_at"`
	Hits           int64     `json:"hits"`
	Misses         int64     `json:"misses"`
	Evictions      int64     `json:"evictions"`
	DatasetVersion int64     `json:"dataset_version"`
	TTLSeconds     float64   `json:"ttl_seconds"`
}

// updateMetrics publishes current cache size to Prometheus.
func (c *ReportCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
}
