package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnRangs/ObservingSatellites/internal/catalog"
	"github.com/saturnRangs/ObservingSatellites/internal/report"
	"github.com/saturnRangs/ObservingSatellites/internal/store"
	"github.com/saturnRangs/ObservingSatellites/internal/tle"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

type reportOptions struct {
	format  string
	output  string
	start   string
	save    bool
	objects []string
}

func newReportCmd(a *app) *cobra.Command {
	var opts reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute one visibility report and print or export it",
		Example: `  obsat report --select ICEYE
  obsat report --object "ISS (ZARYA)" --hours 24
  obsat report --lat 51.48 --lon 0 --tz Europe/London --hours 24 --format xlsx -o plan.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.report(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "text", fmt.Sprintf("output format %v", report.Formats()))
	f.StringVarP(&opts.output, "output", "o", "", "write to file instead of stdout")
	f.StringVar(&opts.start, "start", "", "window start, RFC 3339 (default now)")
	f.BoolVar(&opts.save, "save", false, "archive the report in the configured store")
	f.StringSliceVar(&opts.objects, "object", nil, "exact object names, overriding --select")
	return cmd
}

func (a *app) report(ctx context.Context, stdout io.Writer, opts reportOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	req, err := a.cfg.Request()
	if err != nil {
		return err
	}
	if opts.start != "" {
		t, err := time.Parse(time.RFC3339, opts.start)
		if err != nil {
			return fmt.Errorf("%w: start must be RFC 3339, got %q", visibility.ErrInvalidParameter, opts.start)
		}
		req.Start = t
	}

	tleStore := tle.NewStore()
	if _, err := a.loader(tleStore).Load(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	objects, err := catalog.NewProvider(tleStore, a.logger).Resolve(a.cfg.Schedule.Select, opts.objects)
	if err != nil {
		return err
	}

	engine, closeEngine, err := a.engine()
	if err != nil {
		return err
	}
	defer closeEngine()

	rep, err := a.scheduler(engine).Run(ctx, req, objects)
	if err != nil {
		return err
	}

	if opts.save {
		if err := a.saveReport(ctx, rep); err != nil {
			return err
		}
	}

	w := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := report.Encode(w, format, rep); err != nil {
		return err
	}
	if opts.output != "" {
		a.logger.Info("report written", "path", opts.output, "format", string(format), "entries", len(rep.Entries))
	}
	return nil
}

func (a *app) saveReport(ctx context.Context, rep *visibility.Report) error {
	if a.cfg.Store.DSN == "" {
		return fmt.Errorf("--save requires store.dsn")
	}
	db, err := store.Open(ctx, a.cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	reports := store.New(db)
	if err := reports.EnsureSchema(ctx); err != nil {
		return err
	}
	id, err := reports.Save(ctx, rep)
	if err != nil {
		return err
	}
	a.logger.Info("report saved", "component", "store", "id", id)
	return nil
}
