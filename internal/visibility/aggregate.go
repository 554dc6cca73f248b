package visibility

import (
	"slices"
	"sort"
	"time"
)

// maxErrorSamples bounds how many ephemeris errors a Report carries.
const maxErrorSamples = 20

// Tally holds the per-instant visibility counts of one run. Counts[i] and
// Visible[i] belong to the i-th twilight instant.
type Tally struct {
	Counts    []int
	Visible   [][]int // indices into the object slice, ascending
	Evaluated int
	Skipped   int
	Errors    []*EphemerisError

	skips []skipRecord
}

type skipRecord struct {
	obj, inst int
	err       *EphemerisError
}

func newTally(n int) *Tally {
	return &Tally{
		Counts:  make([]int, n),
		Visible: make([][]int, n),
	}
}

// add counts object obj as visible at instant i.
func (t *Tally) add(i, obj int) {
	t.Counts[i]++
	t.Visible[i] = append(t.Visible[i], obj)
}

func (t *Tally) recordSkip(obj, inst int, err *EphemerisError) {
	t.Skipped++
	t.skips = append(t.skips, skipRecord{obj: obj, inst: inst, err: err})
}

// merge folds a partial tally from one worker into t.
func (t *Tally) merge(p *Tally) {
	for i, c := range p.Counts {
		t.Counts[i] += c
		t.Visible[i] = append(t.Visible[i], p.Visible[i]...)
	}
	t.Evaluated += p.Evaluated
	t.Skipped += p.Skipped
	t.skips = append(t.skips, p.skips...)
}

// finish puts merged data in a worker-independent order.
func (t *Tally) finish() {
	for i := range t.Visible {
		slices.Sort(t.Visible[i])
	}
	sort.Slice(t.skips, func(a, b int) bool {
		if t.skips[a].obj != t.skips[b].obj {
			return t.skips[a].obj < t.skips[b].obj
		}
		return t.skips[a].inst < t.skips[b].inst
	})
	t.Errors = t.Errors[:0]
	for _, s := range t.skips {
		if len(t.Errors) == maxErrorSamples {
			break
		}
		t.Errors = append(t.Errors, s.err)
	}
	t.skips = nil
}

// DisplayLayout formats report instants (month-day-year, 12-hour clock).
const DisplayLayout = "01-02-2006 03:04PM"

// Entry is one twilight sample of a Report.
type Entry struct {
	Time      time.Time `json:"time" yaml:"time"`
	Display   string    `json:"display" yaml:"display"`
	SunAltDeg float64   `json:"sun_altitude_deg" yaml:"sun_altitude_deg"`
	Count     int       `json:"count" yaml:"count"`
}

// Peak is an instant achieving the report maximum.
type Peak struct {
	Time    time.Time `json:"time" yaml:"time"`
	Display string    `json:"display" yaml:"display"`
	Objects []string  `json:"objects" yaml:"objects"`
}

// Night holds the instants at which the sun crosses the band's upper edge
// going down (Dusk) and coming back up (Dawn).
type Night struct {
	Dusk time.Time `json:"dusk" yaml:"dusk"`
	Dawn time.Time `json:"dawn" yaml:"dawn"`
}

// Report is the ranked result of a run. Entries are chronological.
type Report struct {
	GeneratedAt       time.Time `json:"generated_at" yaml:"generated_at"`
	Location          Location  `json:"location" yaml:"location"`
	Start             time.Time `json:"start" yaml:"start"`
	ResolutionMinutes float64   `json:"resolution_minutes" yaml:"resolution_minutes"`
	HorizonHours      float64   `json:"horizon_hours" yaml:"horizon_hours"`
	Band              Band      `json:"twilight_band" yaml:"twilight_band"`
	MinElevationDeg   float64   `json:"min_elevation_deg" yaml:"min_elevation_deg"`
	Zone              string    `json:"zone" yaml:"zone"`
	ObjectCount       int       `json:"object_count" yaml:"object_count"`
	GridSize          int       `json:"grid_size" yaml:"grid_size"`

	Entries []Entry `json:"entries" yaml:"entries"`
	Max     int     `json:"max" yaml:"max"`
	Peaks   []Peak  `json:"peaks" yaml:"peaks"` // every entry whose count equals Max
	Nights  []Night `json:"nights,omitempty" yaml:"nights,omitempty"`

	// EvaluatedPairs counts every object/instant pair attempted, skipped
	// pairs included.
	EvaluatedPairs int      `json:"evaluated_pairs" yaml:"evaluated_pairs"`
	SkippedPairs   int      `json:"skipped_pairs" yaml:"skipped_pairs"`
	Errors         []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// BuildReport renders a tally into a Report. Every twilight instant gets an
// entry, zero counts included. All instants sharing the maximum are peaks,
// so a run where nothing is visible reports every entry as a peak.
func BuildReport(req Request, grid TimeGrid, w TwilightWindow, objects []TrackedObject, tally *Tally, generatedAt time.Time) *Report {
	zone := req.DisplayZone
	if zone == nil {
		zone = time.UTC
	}

	r := &Report{
		GeneratedAt:       generatedAt.UTC(),
		Location:          req.Location,
		Start:             grid.Start,
		ResolutionMinutes: req.Resolution.Minutes(),
		HorizonHours:      req.Horizon.Hours(),
		Band:              w.Band,
		MinElevationDeg:   req.MinElevationDeg,
		Zone:              zone.String(),
		ObjectCount:       len(objects),
		GridSize:          grid.Len(),
		Entries:           make([]Entry, 0, w.Len()),
		Peaks:             []Peak{},
		EvaluatedPairs:    tally.Evaluated,
		SkippedPairs:      tally.Skipped,
	}

	for i, t := range w.Instants {
		r.Entries = append(r.Entries, Entry{
			Time:      t,
			Display:   t.In(zone).Format(DisplayLayout),
			SunAltDeg: w.SunAltDeg[i],
			Count:     tally.Counts[i],
		})
		r.Max = max(r.Max, tally.Counts[i])
	}

	for i, e := range r.Entries {
		if e.Count != r.Max {
			continue
		}
		names := make([]string, 0, len(tally.Visible[i]))
		for _, idx := range tally.Visible[i] {
			names = append(names, objects[idx].Name)
		}
		r.Peaks = append(r.Peaks, Peak{Time: e.Time, Display: e.Display, Objects: names})
	}

	for _, ee := range tally.Errors {
		r.Errors = append(r.Errors, ee.Error())
	}
	return r
}

// NoVisibility reports whether the run found nothing to observe: either no
// twilight samples or no object visible at any of them.
func (r *Report) NoVisibility() bool {
	return len(r.Entries) == 0 || r.Max == 0
}

// Ranked returns the entries ordered by count, highest first. Equal counts
// keep chronological order.
func (r *Report) Ranked() []Entry {
	ranked := slices.Clone(r.Entries)
	slices.SortStableFunc(ranked, func(a, b Entry) int {
		return b.Count - a.Count
	})
	return ranked
}

// PeakTimes returns the instants achieving the maximum.
func (r *Report) PeakTimes() []time.Time {
	out := make([]time.Time, len(r.Peaks))
	for i, p := range r.Peaks {
		out[i] = p.Time
	}
	return out
}
