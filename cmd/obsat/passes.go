package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnRangs/ObservingSatellites/internal/catalog"
	"github.com/saturnRangs/ObservingSatellites/internal/passes"
	"github.com/saturnRangs/ObservingSatellites/internal/tle"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

func newPassesCmd(a *app) *cobra.Command {
	var (
		visibleOnly bool
		maxPasses   int
		names       []string
	)
	cmd := &cobra.Command{
		Use:     "passes",
		Short:   "List individual passes of the selected objects and their observable parts",
		Example: "  obsat passes --select ISS --hours 48 --visible-only",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			defaults, err := a.cfg.Request()
			if err != nil {
				return err
			}
			req := passes.Request{
				Location:        defaults.Location,
				Start:           time.Now().UTC().Truncate(time.Minute),
				Horizon:         defaults.Horizon,
				Band:            defaults.Band,
				MinElevationDeg: defaults.MinElevationDeg,
				MaxPasses:       maxPasses,
				VisibleOnly:     visibleOnly,
			}
			if err := req.Validate(); err != nil {
				return err
			}

			store := tle.NewStore()
			if _, err := a.loader(store).Load(ctx); err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			objects, err := catalog.NewProvider(store, a.logger).Resolve(a.cfg.Schedule.Select, names)
			if err != nil {
				return err
			}

			engine, closeEngine, err := a.engine()
			if err != nil {
				return err
			}
			defer closeEngine()

			results := passes.Predict(ctx, engine, req, objects)
			return writePasses(cmd, results, defaults.DisplayZone)
		},
	}
	cmd.Flags().BoolVar(&visibleOnly, "visible-only", false, "only list passes with an observable part")
	cmd.Flags().IntVar(&maxPasses, "max-passes", passes.DefaultMaxPasses, "passes per object")
	cmd.Flags().StringSliceVar(&names, "object", nil, "exact object names, overriding --select")
	return cmd
}

func writePasses(cmd *cobra.Command, results []passes.ObjectPasses, zone *time.Location) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OBJECT\tRISE\tMAX EL\tSET\tVISIBLE")
	for _, o := range results {
		if o.Error != "" {
			fmt.Fprintf(tw, "%s\terror: %s\t\t\t\n", o.Name, o.Error)
			continue
		}
		for _, p := range o.Passes {
			visible := "-"
			if p.Visible() {
				visible = fmt.Sprintf("%s for %s",
					p.VisibleFrom.In(zone).Format(visibility.DisplayLayout),
					(time.Duration(p.VisibleSeconds) * time.Second).String())
			}
			fmt.Fprintf(tw, "%s\t%s\t%.1f°\t%s\t%s\n", o.Name,
				p.Rise.In(zone).Format(visibility.DisplayLayout),
				p.MaxElevationDeg,
				p.Set.In(zone).Format(visibility.DisplayLayout),
				visible)
		}
	}
	return tw.Flush()
}
