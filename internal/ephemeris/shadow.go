package ephemeris

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	earthRadiusKm = 6378.137
	sunRadiusKm   = 696000.0
)

// eclipsed reports whether an object at sat is fully inside the Earth's
// shadow, both positions geocentric in the same frame (km). The Earth and Sun
// are compared by angular semi-diameter as seen from the object; a partial
// eclipse counts as sunlit.
func eclipsed(sat, sun r3.Vec) bool {
	satDist := r3.Norm(sat)
	if satDist <= earthRadiusKm {
		return true
	}
	toSun := r3.Sub(sun, sat)

	sdEarth := math.Asin(earthRadiusKm / satDist)
	sdSun := math.Asin(sunRadiusKm / r3.Norm(toSun))
	if sdEarth < sdSun {
		return false
	}

	// Angle between the directions to the Sun and to the Earth's centre.
	delta := math.Acos(math.Max(-1, math.Min(1, r3.Cos(toSun, r3.Scale(-1, sat)))))
	return sdEarth-sdSun-delta >= 0
}
