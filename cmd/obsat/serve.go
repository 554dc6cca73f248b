package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnRangs/ObservingSatellites/internal/api"
	"github.com/saturnRangs/ObservingSatellites/internal/auth"
	"github.com/saturnRangs/ObservingSatellites/internal/cache"
	"github.com/saturnRangs/ObservingSatellites/internal/catalog"
	"github.com/saturnRangs/ObservingSatellites/internal/health"
	"github.com/saturnRangs/ObservingSatellites/internal/metrics"
	"github.com/saturnRangs/ObservingSatellites/internal/observability"
	"github.com/saturnRangs/ObservingSatellites/internal/store"
	"github.com/saturnRangs/ObservingSatellites/internal/tle"
	"github.com/saturnRangs/ObservingSatellites/web"
)

// catalogCheckInterval is how often the server re-applies the refresh policy.
const catalogCheckInterval = time.Hour

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and web viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	if err := a.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
	return cmd
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	logger := a.logger

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	tleStore := tle.NewStore()
	loader := a.loader(tleStore)
	if _, err := loader.Load(ctx); err != nil {
		logger.Warn("starting without a catalog", "component", "tle", "error", err)
	}
	provider := catalog.NewProvider(tleStore, logger)

	engine, closeEngine, err := a.engine()
	if err != nil {
		return err
	}
	defer closeEngine()
	scheduler := a.scheduler(engine)

	defaults, err := cfg.Request()
	if err != nil {
		return err
	}

	readiness := health.NewReadiness()
	readiness.Add("catalog", func() error {
		if tleStore.Get() == nil {
			return errors.New("no catalog loaded")
		}
		return nil
	})

	reportCache := cache.NewReportCache(cache.Config{
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	}, provider, logger)
	go reportCache.Start(ctx)

	deps := api.Deps{
		Runner:        scheduler,
		Engine:        engine,
		Catalog:       provider,
		TLEStore:      tleStore,
		Cache:         reportCache,
		Readiness:     readiness,
		Web:           web.Content,
		Defaults:      defaults,
		DefaultSelect: cfg.Schedule.Select,
		MaxPairs:      cfg.Schedule.MaxPairs,
		MaxInstants:   cfg.Schedule.MaxInstants,
		Auth: auth.Config{
			Enabled:   cfg.Auth.Enabled,
			Token:     cfg.Auth.Token,
			JWTSecret: cfg.Auth.JWTSecret,
		},
		TrustProxy:    cfg.HTTP.TrustProxy,
		MaxRunsPerIP:  cfg.HTTP.MaxRunsPerIP,
		MaxRunsGlobal: cfg.HTTP.MaxRunsGlobal,
	}
	if !cfg.Catalog.Offline {
		deps.Loader = loader
	}

	if cfg.Store.DSN != "" {
		db, err := store.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		reports := store.New(db)
		if err := reports.EnsureSchema(ctx); err != nil {
			return err
		}
		deps.Reports = reports
		readiness.Add("store", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.PingContext(pingCtx)
		})
		logger.Info("report store enabled", "component", "store")
	}

	go a.maintainCatalog(ctx, loader, tleStore)

	srv := api.NewServer(cfg.HTTP.Addr, logger, deps)
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"catalog_fetch_enabled", deps.Loader != nil,
			"store_enabled", deps.Reports != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// maintainCatalog keeps the age gauge current and re-applies the refresh
// policy so a long-running server picks up new elements.
func (a *app) maintainCatalog(ctx context.Context, loader *tle.Loader, store *tle.Store) {
	gauge := time.NewTicker(10 * time.Second)
	defer gauge.Stop()
	refresh := time.NewTicker(catalogCheckInterval)
	defer refresh.Stop()

	for {
		select {
		case <-gauge.C:
			if age := store.Age(time.Now()); age >= 0 {
				metrics.SetCatalogAge(age)
			}
		case <-refresh.C:
			if _, err := loader.Load(ctx); err != nil {
				a.logger.Warn("catalog refresh check failed", "component", "tle", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
