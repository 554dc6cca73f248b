package main

import (
	"fmt"

	"github.com/saturnRangs/ObservingSatellites/internal/ephemeris"
	"github.com/saturnRangs/ObservingSatellites/internal/metrics"
	"github.com/saturnRangs/ObservingSatellites/internal/tle"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// loader builds the catalog loader. Offline mode leaves the fetcher nil.
func (a *app) loader(store *tle.Store) *tle.Loader {
	c := a.cfg.Catalog
	var fetcher *tle.Fetcher
	if !c.Offline {
		fetcher = tle.NewFetcher(c.URL, a.logger, c.ExtraURLs...)
		fetcher.SetTimeout(c.FetchTimeout)
	}
	a.logger.Info("catalog config",
		"component", "tle",
		"source_url", c.URL,
		"extra_urls", c.ExtraURLs,
		"cache_dir", c.CacheDir,
		"max_age", c.MaxAge.String(),
		"offline", c.Offline,
	)
	return tle.NewLoader(fetcher, tle.NewCache(c.CacheDir, c.MaxFiles), store, c.MaxAge, a.logger)
}

// engine builds the ephemeris engine. cleanup releases the JPL file when one
// is configured.
func (a *app) engine() (engine *ephemeris.Engine, cleanup func(), err error) {
	if a.cfg.Ephemeris.DEFile == "" {
		a.logger.Info("using analytic sun position", "component", "ephemeris")
		return ephemeris.NewEngine(nil), func() {}, nil
	}

	sun, err := ephemeris.OpenJPLSun(a.cfg.Ephemeris.DEFile)
	if err != nil {
		return nil, nil, fmt.Errorf("ephemeris: %w", err)
	}
	start, end := sun.Range()
	a.logger.Info("using JPL sun position",
		"component", "ephemeris",
		"file", a.cfg.Ephemeris.DEFile,
		"ephemeris", sun.Name(),
		"start_jd", start,
		"end_jd", end,
	)
	cleanup = func() {
		if err := sun.Close(); err != nil {
			a.logger.Warn("closing ephemeris failed", "component", "ephemeris", "error", err)
		}
	}
	return ephemeris.NewEngine(sun), cleanup, nil
}

func (a *app) scheduler(engine visibility.Engine, opts ...visibility.Option) *visibility.Scheduler {
	opts = append([]visibility.Option{visibility.WithWorkers(a.cfg.Schedule.Workers)}, opts...)
	s := visibility.NewScheduler(engine, a.logger, opts...)
	metrics.SetEvaluatorWorkers(s.Workers())
	return s
}
