// Command diag prints the sun-altitude profile and twilight edges for a
// location, for checking a site before scheduling against it.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnRangs/ObservingSatellites/internal/ephemeris"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

func main() {
	var (
		loc      visibility.Location
		band     visibility.Band
		tz       string
		hours    float64
		stepMin  float64
		deFile   string
		startStr string
	)

	cmd := &cobra.Command{
		Use:          "diag",
		Short:        "Print the sun altitude profile and twilight window for a location",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := time.LoadLocation(tz)
			if err != nil {
				return err
			}
			if err := loc.Validate(); err != nil {
				return err
			}
			if err := band.Validate(); err != nil {
				return err
			}
			if !(stepMin > 0) || !(hours > 0) {
				return fmt.Errorf("step and hours must be positive")
			}

			start := time.Now().UTC().Truncate(time.Minute)
			if startStr != "" {
				if start, err = time.Parse(time.RFC3339, startStr); err != nil {
					return err
				}
			}

			var sun ephemeris.SunSource
			if deFile != "" {
				jpl, err := ephemeris.OpenJPLSun(deFile)
				if err != nil {
					return err
				}
				defer jpl.Close()
				sun = jpl
				fmt.Printf("Sun: JPL %s\n", jpl.Name())
			} else {
				fmt.Println("Sun: analytic (Meeus)")
			}
			engine := ephemeris.NewEngine(sun)

			end := start.Add(time.Duration(hours * float64(time.Hour)))
			step := time.Duration(stepMin * float64(time.Minute))
			fmt.Printf("Location: %.5f, %.5f, %.0f m\n", loc.LatDeg, loc.LonDeg, loc.AltM)
			fmt.Printf("Window: %s to %s (%s)\n", start.In(zone).Format(visibility.DisplayLayout), end.In(zone).Format(visibility.DisplayLayout), zone)
			fmt.Printf("Band: %.1f° < sun < %.1f°\n\n", band.LowerDeg, band.UpperDeg)

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSUN ALT\tTWILIGHT")
			inBand := 0
			samples := 0
			for t := start; t.Before(end); t = t.Add(step) {
				alt, err := engine.SunAltitude(t, loc)
				if err != nil {
					return err
				}
				mark := ""
				if band.Contains(alt) {
					mark = "yes"
					inBand++
				}
				samples++
				fmt.Fprintf(tw, "%s\t%7.2f\t%s\n", t.In(zone).Format(visibility.DisplayLayout), alt, mark)
			}
			tw.Flush()
			fmt.Printf("\n%d of %d samples inside the band\n", inBand, samples)

			nights, err := engine.TwilightEdges(loc, start, end, band)
			if err != nil {
				fmt.Printf("Twilight edges: %v\n", err)
				return nil
			}
			for i, n := range nights {
				fmt.Printf("Night %d: dusk %s, dawn %s\n", i+1,
					n.Dusk.In(zone).Format(visibility.DisplayLayout), n.Dawn.In(zone).Format(visibility.DisplayLayout))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&loc.LatDeg, "lat", 33.64561821100173, "latitude in degrees")
	f.Float64Var(&loc.LonDeg, "lon", -117.68649668652029, "longitude in degrees, east positive")
	f.Float64Var(&loc.AltM, "alt", 0, "altitude in metres")
	f.Float64Var(&band.LowerDeg, "lower", -27, "lower twilight bound in degrees")
	f.Float64Var(&band.UpperDeg, "upper", -3, "upper twilight bound in degrees")
	f.StringVar(&tz, "tz", "UTC", "IANA timezone for display")
	f.Float64Var(&hours, "hours", 24, "profile length in hours")
	f.Float64Var(&stepMin, "step", 30, "profile step in minutes")
	f.StringVar(&deFile, "de-file", "", "JPL DE binary ephemeris")
	f.StringVar(&startStr, "start", "", "profile start, RFC 3339 (default now)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
