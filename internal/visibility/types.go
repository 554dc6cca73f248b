// Package visibility schedules naked-eye observation windows for orbiting
// objects.
//
// A run samples a future horizon on a fixed grid, keeps only the samples where
// the observer's sun altitude lies inside a twilight band, and counts for each
// remaining sample how many tracked objects are both sunlit and above a minimum
// elevation. The counts are ranked into a Report.
//
// Astronomy lives behind the Engine interface; this package never inspects an
// object's orbital state.
package visibility

import (
	"fmt"
	"math"
	"time"
)

// Location is a ground observer in WGS-84 geodetic coordinates.
type Location struct {
	LatDeg float64 `json:"latitude" yaml:"latitude"`
	LonDeg float64 `json:"longitude" yaml:"longitude"`
	AltM   float64 `json:"altitude_m" yaml:"altitude_m"` // metres above the ellipsoid
}

// Validate reports whether the location is usable.
func (l Location) Validate() error {
	for _, v := range []float64{l.LatDeg, l.LonDeg, l.AltM} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: location has non-finite component", ErrInvalidParameter)
		}
	}
	if l.LatDeg < -90 || l.LatDeg > 90 {
		return fmt.Errorf("%w: latitude %.4f outside [-90, 90]", ErrInvalidParameter, l.LatDeg)
	}
	if l.LonDeg < -180 || l.LonDeg > 180 {
		return fmt.Errorf("%w: longitude %.4f outside [-180, 180]", ErrInvalidParameter, l.LonDeg)
	}
	return nil
}

// Band is the range of sun altitudes (degrees, exclusive) in which the sky
// counts as dark enough to see a sunlit object.
type Band struct {
	LowerDeg float64 `json:"lower_deg" yaml:"lower_deg"`
	UpperDeg float64 `json:"upper_deg" yaml:"upper_deg"`
}

// Validate requires LowerDeg < UpperDeg < 0.
func (b Band) Validate() error {
	if math.IsNaN(b.LowerDeg) || math.IsNaN(b.UpperDeg) {
		return fmt.Errorf("%w: twilight band has NaN bound", ErrInvalidParameter)
	}
	if b.LowerDeg >= b.UpperDeg {
		return fmt.Errorf("%w: twilight lower bound %.2f must be below upper bound %.2f", ErrInvalidParameter, b.LowerDeg, b.UpperDeg)
	}
	if b.UpperDeg >= 0 {
		return fmt.Errorf("%w: twilight upper bound %.2f must be below the horizon", ErrInvalidParameter, b.UpperDeg)
	}
	return nil
}

// Contains reports whether altDeg lies strictly inside the band.
func (b Band) Contains(altDeg float64) bool {
	return b.LowerDeg < altDeg && altDeg < b.UpperDeg
}

// TrackedObject is a named orbiting object. State is owned by the catalog
// and only ever handed back to the Engine.
type TrackedObject struct {
	Name  string
	State any
}

// Engine computes the geometry a run needs. Implementations must be pure
// functions of their arguments and safe for concurrent use.
type Engine interface {
	SunAltitude(t time.Time, loc Location) (float64, error)
	ObjectAltitude(t time.Time, loc Location, state any) (float64, error)
	IsSunlit(t time.Time, state any) (bool, error)
}

// TimeGrid is the ordered set of sample instants of a run.
type TimeGrid struct {
	Start    time.Time
	Step     time.Duration
	Instants []time.Time
}

// Len returns the number of samples.
func (g TimeGrid) Len() int { return len(g.Instants) }

// TwilightWindow is the subsequence of a TimeGrid whose sun altitude lies
// inside the band. SunAltDeg[i] belongs to Instants[i].
type TwilightWindow struct {
	Band      Band
	Instants  []time.Time
	SunAltDeg []float64
}

// Len returns the number of twilight samples.
func (w TwilightWindow) Len() int { return len(w.Instants) }

// Request describes one run.
type Request struct {
	Location        Location
	Start           time.Time // zero: take the scheduler clock
	Resolution      time.Duration
	Horizon         time.Duration
	Band            Band
	MinElevationDeg float64
	DisplayZone     *time.Location // nil: UTC
}

// Validate checks every parameter before any work is done.
func (r Request) Validate() error {
	if err := r.Location.Validate(); err != nil {
		return err
	}
	if r.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %s", ErrInvalidParameter, r.Resolution)
	}
	if r.Horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive, got %s", ErrInvalidParameter, r.Horizon)
	}
	if err := r.Band.Validate(); err != nil {
		return err
	}
	if math.IsNaN(r.MinElevationDeg) || math.IsInf(r.MinElevationDeg, 0) || r.MinElevationDeg < 0 {
		return fmt.Errorf("%w: minimum elevation must be a non-negative number, got %v", ErrInvalidParameter, r.MinElevationDeg)
	}
	return nil
}
