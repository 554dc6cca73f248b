package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

var csvHeader = []string{"time_utc", "display", "sun_altitude_deg", "count", "peak", "objects"}

func writeCSV(w io.Writer, r *visibility.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	peaks := peakObjects(r)
	for _, e := range r.Entries {
		objs, peak := peaks[e.Time.Unix()]
		rec := []string{
			e.Time.UTC().Format(time.RFC3339),
			e.Display,
			strconv.FormatFloat(e.SunAltDeg, 'f', 2, 64),
			strconv.Itoa(e.Count),
			strconv.FormatBool(peak),
			strings.Join(objs, ";"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeText(w io.Writer, r *visibility.Report) error {
	fmt.Fprintf(w, "Observer    %.5f, %.5f (%.0f m)\n", r.Location.LatDeg, r.Location.LonDeg, r.Location.AltM)
	fmt.Fprintf(w, "Start       %s (%s)\n", r.Start.UTC().Format(time.RFC3339), r.Zone)
	fmt.Fprintf(w, "Schedule    every %g min for %g h, %d samples\n", r.ResolutionMinutes, r.HorizonHours, r.GridSize)
	fmt.Fprintf(w, "Twilight    sun between %g° and %g°, objects above %g°\n", r.Band.LowerDeg, r.Band.UpperDeg, r.MinElevationDeg)
	fmt.Fprintf(w, "Objects     %d\n", r.ObjectCount)
	for _, n := range r.Nights {
		fmt.Fprintf(w, "Night       %s to %s\n", n.Dusk.UTC().Format(time.RFC3339), n.Dawn.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(w)

	if r.NoVisibility() {
		fmt.Fprintln(w, "No visibility in this window.")
	}

	if len(r.Entries) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSUN\tVISIBLE\t")
		peaks := peakObjects(r)
		for _, e := range r.Entries {
			mark := ""
			if _, ok := peaks[e.Time.Unix()]; ok && r.Max > 0 {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%.1f°\t%d\t%s\n", e.Display, e.SunAltDeg, e.Count, mark)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if r.Max > 0 {
		fmt.Fprintf(w, "\nPeak: %d objects\n", r.Max)
		for _, p := range r.Peaks {
			fmt.Fprintf(w, "  %s  %s\n", p.Display, strings.Join(p.Objects, ", "))
		}
	}

	if r.SkippedPairs > 0 {
		fmt.Fprintf(w, "\nSkipped %d of %d object/instant pairs\n", r.SkippedPairs, r.EvaluatedPairs)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
