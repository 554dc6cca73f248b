package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/saturnRangs/ObservingSatellites/internal/config"
	"github.com/saturnRangs/ObservingSatellites/internal/logging"
)

// app carries the loaded configuration between cobra hooks and commands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// persistentFlags maps root flags to configuration keys.
var persistentFlags = []struct {
	name, key, usage string
}{
	{"lat", "observer.latitude", "observer latitude in degrees"},
	{"lon", "observer.longitude", "observer longitude in degrees, east positive"},
	{"alt", "observer.altitude_m", "observer altitude in metres"},
	{"tz", "observer.timezone", "IANA timezone for displayed times"},
	{"resolution", "schedule.resolution_minutes", "sampling step in minutes"},
	{"hours", "schedule.horizon_hours", "window length in hours"},
	{"lower", "schedule.twilight_lower_deg", "lower twilight bound, degrees of sun altitude"},
	{"upper", "schedule.twilight_upper_deg", "upper twilight bound, degrees of sun altitude"},
	{"min-elevation", "schedule.min_elevation_deg", "minimum object elevation in degrees"},
	{"select", "schedule.select", `object name prefix, or "all"`},
	{"workers", "schedule.workers", "evaluator goroutines (0 = one per CPU)"},
	{"offline", "catalog.offline", "never download; use the cached catalog only"},
	{"cache-dir", "catalog.cache_dir", "catalog cache directory"},
	{"de-file", "ephemeris.de_file", "JPL DE binary ephemeris for the sun (default analytic)"},
	{"log-level", "log.level", "debug, info, warn or error"},
	{"log-format", "log.format", "json or text"},
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "obsat",
		Short:         "Find the best twilight times to observe satellites",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (yaml, toml or json)")
	pf.Float64("lat", 0, persistentFlags[0].usage)
	pf.Float64("lon", 0, persistentFlags[1].usage)
	pf.Float64("alt", 0, persistentFlags[2].usage)
	pf.String("tz", "", persistentFlags[3].usage)
	pf.Float64("resolution", 0, persistentFlags[4].usage)
	pf.Float64("hours", 0, persistentFlags[5].usage)
	pf.Float64("lower", 0, persistentFlags[6].usage)
	pf.Float64("upper", 0, persistentFlags[7].usage)
	pf.Float64("min-elevation", 0, persistentFlags[8].usage)
	pf.String("select", "", persistentFlags[9].usage)
	pf.Int("workers", 0, persistentFlags[10].usage)
	pf.Bool("offline", false, persistentFlags[11].usage)
	pf.String("cache-dir", "", persistentFlags[12].usage)
	pf.String("de-file", "", persistentFlags[13].usage)
	pf.String("log-level", "", persistentFlags[14].usage)
	pf.String("log-format", "", persistentFlags[15].usage)

	for _, f := range persistentFlags {
		if err := a.v.BindPFlag(f.key, pf.Lookup(f.name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", f.name, err))
		}
	}

	root.AddCommand(newServeCmd(a), newReportCmd(a), newPassesCmd(a), newFetchCmd(a))
	return root
}

// load reads configuration from defaults, file, environment and flags.
func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return nil
}
