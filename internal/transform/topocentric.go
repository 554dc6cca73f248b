package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid, lengths in km.
const (
	wgs84A  = 6378.137
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

const deg = math.Pi / 180

// Observer is a ground site with its ECEF position precomputed for reuse
// across every object and instant of a run.
type Observer struct {
	LatRad, LonRad float64
	AltKm          float64
	ECEF           r3.Vec // km
}

// LookAngles from an observer to a target.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// NewObserver builds an Observer from geodetic degrees and metres above the
// ellipsoid.
func NewObserver(latDeg, lonDeg, altM float64) Observer {
	lat, lon := latDeg*deg, lonDeg*deg
	altKm := altM / 1000

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatRad: lat,
		LonRad: lon,
		AltKm:  altKm,
		ECEF: r3.Vec{
			X: (n + altKm) * cosLat * math.Cos(lon),
			Y: (n + altKm) * cosLat * math.Sin(lon),
			Z: (n*(1-wgs84E2) + altKm) * sinLat,
		},
	}
}

// Look computes the look angles to a target at ECEF position sat (km) using
// the SEZ topocentric rotation (Vallado §4.4).
func (o Observer) Look(sat r3.Vec) LookAngles {
	r := r3.Sub(sat, o.ECEF)

	sinLat, cosLat := math.Sin(o.LatRad), math.Cos(o.LatRad)
	sinLon, cosLon := math.Sin(o.LonRad), math.Cos(o.LonRad)

	south := sinLat*cosLon*r.X + sinLat*sinLon*r.Y - cosLat*r.Z
	east := -sinLon*r.X + cosLon*r.Y
	zenith := cosLat*cosLon*r.X + cosLat*sinLon*r.Y + sinLat*r.Z

	rng := r3.Norm(r)
	az := math.Atan2(east, -south) / deg
	if az < 0 {
		az += 360
	}

	return LookAngles{
		AzimuthDeg:   az,
		ElevationDeg: math.Asin(zenith/rng) / deg,
		RangeKm:      rng,
	}
}

// EquatorialAltitude returns the geocentric altitude in degrees of a body at
// (raRad, decRad) for the observer at sidereal angle gmst. Parallax is
// ignored, which is exact enough for the sun.
func (o Observer) EquatorialAltitude(gmst, raRad, decRad float64) float64 {
	h := HourAngle(gmst, o.LonRad, raRad)
	sinAlt := math.Sin(o.LatRad)*math.Sin(decRad) + math.Cos(o.LatRad)*math.Cos(decRad)*math.Cos(h)
	return math.Asin(math.Max(-1, math.Min(1, sinAlt))) / deg
}

// GeodeticPoint is a position in geodetic degrees and km above the ellipsoid.
type GeodeticPoint struct {
	LatDeg, LonDeg, AltKm float64
}

// ECEFToGeodetic converts an ECEF position (km) with Bowring's iteration,
// which converges in a few steps for orbital radii.
func ECEFToGeodetic(p r3.Vec) GeodeticPoint {
	lon := math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)
	lat := math.Atan2(p.Z, rho*(1-wgs84E2))

	var n float64
	for range 5 {
		sinLat := math.Sin(lat)
		n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(p.Z+wgs84E2*n*sinLat, rho)
	}

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = rho/cosLat - n
	} else {
		alt = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GeodeticPoint{LatDeg: lat / deg, LonDeg: lon / deg, AltKm: alt}
}
