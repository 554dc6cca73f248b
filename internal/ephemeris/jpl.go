package ephemeris

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mshafiee/jpleph"
)

// ErrOutOfRange is returned for instants outside the loaded DE file.
var ErrOutOfRange = errors.New("instant outside ephemeris range")

// JPLSun reads the sun's position from a JPL DE binary ephemeris. The reader
// keeps a file handle and interpolation buffers, so access is serialised.
type JPLSun struct {
	mu      sync.Mutex
	eph     *jpleph.Ephemeris
	auKm    float64
	startJD float64
	endJD   float64
	name    string
}

// OpenJPLSun opens a DE binary file such as de440.bin.
func OpenJPLSun(path string) (*JPLSun, error) {
	eph, err := jpleph.NewEphemeris(path, false)
	if err != nil {
		return nil, fmt.Errorf("open ephemeris %s: %w", path, err)
	}

	au := eph.GetEphemerisDouble(jpleph.AUinKM)
	if au <= 0 {
		au = auKm
	}
	return &JPLSun{
		eph:     eph,
		auKm:    au,
		startJD: eph.GetEphemerisDouble(jpleph.EphemerisStartJD),
		endJD:   eph.GetEphemerisDouble(jpleph.EphemerisEndJD),
		name:    eph.GetEphemName(),
	}, nil
}

// Name returns the ephemeris title from the file header.
func (s *JPLSun) Name() string { return s.name }

// Range returns the Julian Ephemeris Days covered by the file.
func (s *JPLSun) Range() (startJD, endJD float64) { return s.startJD, s.endJD }

// Close releases the file.
func (s *JPLSun) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eph.Close()
}

// SunEquatorial implements SunSource. DE positions are ICRF (J2000); they are
// precessed to the equator of date. Nutation and aberration are ignored.
func (s *JPLSun) SunEquatorial(t time.Time) (raRad, decRad, distKm float64, err error) {
	jde := julianEphemerisDay(t)
	if jde < s.startJD || jde > s.endJD {
		return 0, 0, 0, fmt.Errorf("%w: %s (JDE %.1f not in [%.1f, %.1f])",
			ErrOutOfRange, t.UTC().Format(time.RFC3339), jde, s.startJD, s.endJD)
	}

	s.mu.Lock()
	pos, _, err := s.eph.CalculatePV(jde, jpleph.Sun, jpleph.CenterEarth, false)
	s.mu.Unlock()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("jpl sun at %s: %w", t.UTC().Format(time.RFC3339), err)
	}

	ra0 := math.Atan2(pos.Y, pos.X)
	dec0 := math.Atan2(pos.Z, math.Hypot(pos.X, pos.Y))
	ra, dec := precessFromJ2000(ra0, dec0, jde)
	dist := math.Sqrt(pos.X*pos.X+pos.Y*pos.Y+pos.Z*pos.Z) * s.auKm
	return ra, dec, dist, nil
}

const arcsec = math.Pi / (180 * 3600)

// precessFromJ2000 applies IAU 1976 precession (Meeus eq. 21.3-21.4) from
// J2000.0 to the equinox of jde.
func precessFromJ2000(ra, dec, jde float64) (float64, float64) {
	T := (jde - 2451545.0) / 36525
	zeta := (2306.2181*T + 0.30188*T*T + 0.017998*T*T*T) * arcsec
	z := (2306.2181*T + 1.09468*T*T + 0.018203*T*T*T) * arcsec
	theta := (2004.3109*T - 0.42665*T*T - 0.041833*T*T*T) * arcsec

	sinD, cosD := math.Sincos(dec)
	sinT, cosT := math.Sincos(theta)
	sinRZ, cosRZ := math.Sincos(ra + zeta)

	a := cosD * sinRZ
	b := cosT*cosD*cosRZ - sinT*sinD
	c := sinT*cosD*cosRZ + cosT*sinD

	raOut := math.Atan2(a, b) + z
	if raOut < 0 {
		raOut += 2 * math.Pi
	}
	return math.Mod(raOut, 2*math.Pi), math.Asin(c)
}
