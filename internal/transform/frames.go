// Package transform converts SGP4 output and sun coordinates into the frames
// a ground observer needs.
//
// TEME to ECEF is a single rotation by GMST (TEME ≈ PEF). Polar motion and
// the equation of the equinoxes are ignored; the resulting error is tens of
// metres, far below what matters for naked-eye visibility.
package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Orbit radius bounds (km) for a physically reasonable Earth-orbiting object.
const (
	MinOrbitRadiusKm = 6200.0
	MaxOrbitRadiusKm = 50000.0
)

// TEMEToECEF rotates a TEME position (km) into ECEF (km) for the given GMST.
//
//	r_ECEF = R3(θ) · r_TEME
func TEMEToECEF(teme r3.Vec, gmst float64) r3.Vec {
	cosG, sinG := math.Cos(gmst), math.Sin(gmst)
	return r3.Vec{
		X: teme.X*cosG + teme.Y*sinG,
		Y: -teme.X*sinG + teme.Y*cosG,
		Z: teme.Z,
	}
}

// EquatorialToVec converts right ascension, declination (radians) and
// distance into an Earth-centred inertial position.
func EquatorialToVec(raRad, decRad, dist float64) r3.Vec {
	cosDec := math.Cos(decRad)
	return r3.Vec{
		X: dist * cosDec * math.Cos(raRad),
		Y: dist * cosDec * math.Sin(raRad),
		Z: dist * math.Sin(decRad),
	}
}

// ValidOrbitPosition reports whether p (km from the geocentre) is finite and
// within the orbit radius bounds.
func ValidOrbitPosition(p r3.Vec) bool {
	for _, c := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	mag := r3.Norm(p)
	return mag >= MinOrbitRadiusKm && mag <= MaxOrbitRadiusKm
}
