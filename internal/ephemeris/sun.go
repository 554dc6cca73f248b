package ephemeris

import (
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/solar"
)

const (
	auKm = 149597870.7

	// deltaT approximates TT-UTC (TAI-UTC of 37 s plus 32.184 s).
	deltaT = 69184 * time.Millisecond
)

// julianEphemerisDay converts a UTC instant to a Julian Ephemeris Day (TT).
func julianEphemerisDay(t time.Time) float64 {
	return julian.TimeToJD(t.UTC().Add(deltaT))
}

// MeeusSun is the analytic solar theory of Meeus, Astronomical Algorithms
// ch. 25 (about 0.01° accuracy). It needs no data files.
type MeeusSun struct{}

// SunEquatorial implements SunSource.
func (MeeusSun) SunEquatorial(t time.Time) (raRad, decRad, distKm float64, err error) {
	jde := julianEphemerisDay(t)
	ra, dec := solar.ApparentEquatorial(jde)
	r := solar.Radius(base.J2000Century(jde))
	return ra.Rad(), dec.Rad(), r * auKm, nil
}
