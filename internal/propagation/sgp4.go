// Package propagation wraps SGP4 for the objects of a catalog.
package propagation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/saturnRangs/ObservingSatellites/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite.
//
// Propagate() takes Satellite by value so SGP4 error codes are not visible to
// the caller. Failures are detected from the output instead: NaN/Inf or a
// position outside plausible orbit radii.

// ErrPropagation is wrapped by every failed propagation.
var ErrPropagation = errors.New("sgp4 propagation failed")

// SGP4Propagator holds the initialised SGP4 model of one object. It is
// read-only after construction and safe for concurrent use.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
	name    string
}

// NewSGP4Propagator creates a propagator from TLE lines.
//
// The lines are validated first because go-satellite calls log.Fatal on
// malformed input.
func NewSGP4Propagator(name, line1, line2 string, noradID int) (*SGP4Propagator, error) {
	if err := ValidateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for %s (NORAD %d): %w", name, noradID, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for %s (NORAD %d): code=%d %s", name, noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID, name: name}, nil
}

// ValidateTLELines checks line length, line numbers and the modulo-10
// checksum of both lines.
func ValidateTLELines(line1, line2 string) error {
	for i, line := range []string{strings.TrimSpace(line1), strings.TrimSpace(line2)} {
		n := i + 1
		if len(line) != 69 {
			return fmt.Errorf("line%d length %d, expected 69", n, len(line))
		}
		if line[0] != byte('0'+n) {
			return fmt.Errorf("line%d must start with '%d', got '%c'", n, n, line[0])
		}
		if want, got := checksum(line[:68]), line[68]; got != byte('0'+want) {
			return fmt.Errorf("line%d checksum %c, computed %d", n, got, want)
		}
	}
	return nil
}

// checksum sums the digits of s, counting '-' as 1, modulo 10.
func checksum(s string) int {
	sum := 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// Name returns the catalog name of the object.
func (p *SGP4Propagator) Name() string { return p.name }

// NORADID returns the object's catalog number.
func (p *SGP4Propagator) NORADID() int { return p.noradID }

// PositionAt returns the TEME position (km) at t. Sub-second precision is
// dropped.
func (p *SGP4Propagator) PositionAt(t time.Time) (r3.Vec, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	v := r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z}
	if !transform.ValidOrbitPosition(v) {
		mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
		return r3.Vec{}, fmt.Errorf("%w for %s (NORAD %d) at %s: position magnitude %.1f km",
			ErrPropagation, p.name, p.noradID, t.Format(time.RFC3339), mag)
	}
	return v, nil
}
