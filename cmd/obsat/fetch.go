package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saturnRangs/ObservingSatellites/internal/tle"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the element catalog into the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if a.cfg.Catalog.Offline {
				return errors.New("fetch is unavailable in offline mode")
			}
			ds, err := a.loader(tle.NewStore()).Refresh(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d objects from %s, epochs %s to %s\n",
				len(ds.Entries), ds.Source,
				ds.EpochRange.Min.Format("2006-01-02"), ds.EpochRange.Max.Format("2006-01-02"))
			return nil
		},
	}
}
