package transform

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
)

// JulianDate converts t to a Julian Date (UT).
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST returns Greenwich Mean Sidereal Time in radians, in [0, 2π).
// It is the IAU-82 expression (Meeus eq. 12.4), the same model SGP4 uses
// for its TEME frame.
func GMST(t time.Time) float64 {
	return normalizeRad(sidereal.Mean(JulianDate(t)).Rad())
}

// HourAngle returns the local hour angle in radians of a body at right
// ascension raRad, seen from east longitude lonRad at sidereal angle gmst.
func HourAngle(gmst, lonRad, raRad float64) float64 {
	return normalizeRad(gmst + lonRad - raRad)
}

func normalizeRad(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
