// Package ephemeris implements visibility.Engine with SGP4 objects and a
// pluggable sun position source.
package ephemeris

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/saturnRangs/ObservingSatellites/internal/propagation"
	"github.com/saturnRangs/ObservingSatellites/internal/transform"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// ErrUnsupportedState is returned when an object's state is not an SGP4
// propagator.
var ErrUnsupportedState = errors.New("unsupported object state")

// SunSource gives the sun's apparent geocentric equatorial position of date.
type SunSource interface {
	SunEquatorial(t time.Time) (raRad, decRad, distKm float64, err error)
}

// Engine computes sun and object geometry. It holds no mutable state beyond
// its SunSource and is safe for concurrent use when the source is.
type Engine struct {
	sun SunSource
}

var (
	_ visibility.Engine        = (*Engine)(nil)
	_ visibility.TwilightEdger = (*Engine)(nil)
)

// NewEngine creates an Engine. A nil source selects MeeusSun.
func NewEngine(sun SunSource) *Engine {
	if sun == nil {
		sun = MeeusSun{}
	}
	return &Engine{sun: sun}
}

// SunAltitude returns the sun's altitude in degrees for the observer.
func (e *Engine) SunAltitude(t time.Time, loc visibility.Location) (float64, error) {
	ra, dec, _, err := e.sun.SunEquatorial(t)
	if err != nil {
		return 0, err
	}
	obs := transform.NewObserver(loc.LatDeg, loc.LonDeg, loc.AltM)
	return obs.EquatorialAltitude(transform.GMST(t), ra, dec), nil
}

// ObjectAltitude returns the object's elevation in degrees for the observer.
func (e *Engine) ObjectAltitude(t time.Time, loc visibility.Location, state any) (float64, error) {
	teme, err := position(t, state)
	if err != nil {
		return 0, err
	}
	ecef := transform.TEMEToECEF(teme, transform.GMST(t))
	obs := transform.NewObserver(loc.LatDeg, loc.LonDeg, loc.AltM)
	return obs.Look(ecef).ElevationDeg, nil
}

// IsSunlit reports whether the object is outside the Earth's umbra.
func (e *Engine) IsSunlit(t time.Time, state any) (bool, error) {
	teme, err := position(t, state)
	if err != nil {
		return false, err
	}
	ra, dec, dist, err := e.sun.SunEquatorial(t)
	if err != nil {
		return false, err
	}
	return !eclipsed(teme, transform.EquatorialToVec(ra, dec, dist)), nil
}

func position(t time.Time, state any) (r3.Vec, error) {
	prop, ok := state.(*propagation.SGP4Propagator)
	if !ok {
		return r3.Vec{}, fmt.Errorf("%w: %T", ErrUnsupportedState, state)
	}
	return prop.PositionAt(t)
}
