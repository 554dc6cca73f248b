package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/metrics"
)

// DefaultMaxAge is how old a cached catalog may get before Load downloads a
// new one.
const DefaultMaxAge = 48 * time.Hour

// ErrEmptyCatalog is returned when a download parses to zero entries.
var ErrEmptyCatalog = errors.New("catalog has no valid entries")

// Loader applies the refresh policy: serve the cache while it is fresh,
// otherwise download, and fall back to a stale cache when the download fails.
type Loader struct {
	fetcher *Fetcher // nil: cache only
	cache   *Cache
	store   *Store
	maxAge  time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewLoader creates a Loader. maxAge <= 0 selects DefaultMaxAge.
func NewLoader(fetcher *Fetcher, cache *Cache, store *Store, maxAge time.Duration, logger *slog.Logger) *Loader {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Loader{
		fetcher: fetcher,
		cache:   cache,
		store:   store,
		maxAge:  maxAge,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Store returns the store the loader publishes to.
func (l *Loader) Store() *Store { return l.store }

// Load publishes a dataset following the refresh policy and returns the
// dataset published afterwards.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	return l.update(func(current *Dataset) (*Dataset, error) {
		return l.load(ctx, current)
	})
}

// Refresh downloads and publishes a new dataset regardless of cache age. The
// current dataset stays published when the download fails.
func (l *Loader) Refresh(ctx context.Context) (*Dataset, error) {
	if l.fetcher == nil {
		return nil, fmt.Errorf("no catalog source configured: %w", ErrNoCache)
	}
	return l.update(func(*Dataset) (*Dataset, error) {
		return l.download(ctx, l.now())
	})
}

func (l *Loader) update(fn func(current *Dataset) (*Dataset, error)) (*Dataset, error) {
	ds, replaced, err := l.store.Update(fn)
	if err != nil {
		return nil, err
	}
	if replaced {
		metrics.SetCatalogSize(len(ds.Entries))
		metrics.SetCatalogAge(l.now().Sub(ds.FetchedAt))
	}
	return ds, nil
}

func (l *Loader) load(ctx context.Context, current *Dataset) (*Dataset, error) {
	now := l.now()
	age, err := l.cache.Age(now)
	switch {
	case err == nil && (age < l.maxAge || l.fetcher == nil):
		l.logger.Info("using cached catalog", "component", "tle", "age", age.Round(time.Second).String())
		return l.fromCache(current)
	case err != nil && !errors.Is(err, ErrNoCache):
		l.logger.Warn("catalog cache unreadable", "component", "tle", "error", err)
	}

	if l.fetcher == nil {
		return nil, fmt.Errorf("no catalog source configured: %w", ErrNoCache)
	}

	ds, fetchErr := l.download(ctx, now)
	if fetchErr == nil {
		return ds, nil
	}

	l.logger.Error("catalog download failed", "component", "tle", "url", l.fetcher.SourceURL(), "error", fetchErr)
	ds, err = l.fromCache(current)
	if err != nil {
		if current != nil {
			l.logger.Warn("keeping published catalog", "component", "tle", "fetched_at", current.FetchedAt.Format(time.RFC3339))
			return current, nil
		}
		return nil, fmt.Errorf("download failed (%w) and no usable cache: %w", fetchErr, err)
	}
	l.logger.Warn("serving stale catalog", "component", "tle", "fetched_at", ds.FetchedAt.Format(time.RFC3339))
	return ds, nil
}

func (l *Loader) download(ctx context.Context, now time.Time) (*Dataset, error) {
	start := time.Now()
	data, err := l.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	if err := l.cache.Write(data, now); err != nil {
		l.logger.Warn("catalog cache write failed", "component", "tle", "error", err)
	}

	l.logger.Info("catalog downloaded",
		"component", "tle",
		"entries", len(entries),
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return NewDataset(l.fetcher.SourceURL(), now, entries), nil
}

// fromCache parses the newest cache file. When current is at least as new as
// that file it is returned as-is and nothing is parsed.
func (l *Loader) fromCache(current *Dataset) (*Dataset, error) {
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return nil, err
	}
	if current != nil && !ts.After(current.FetchedAt) {
		return current, nil
	}
	entries, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}
	return NewDataset("cache:"+l.cache.Dir(), ts, entries), nil
}
