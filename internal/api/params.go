package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/report"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// runParams is a parsed /api/v1/visibility query.
type runParams struct {
	req    visibility.Request
	sel    string
	names  []string // exact object names; override sel
	format report.Format
	save   bool
}

// parseRunParams overlays the query on the configured defaults. Minutes and
// hours may be fractional.
func parseRunParams(q url.Values, defaults visibility.Request, defaultSelect string) (runParams, error) {
	p := runParams{req: defaults, sel: defaultSelect}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"lat", &p.req.Location.LatDeg},
		{"lon", &p.req.Location.LonDeg},
		{"alt", &p.req.Location.AltM},
		{"lower", &p.req.Band.LowerDeg},
		{"upper", &p.req.Band.UpperDeg},
		{"min_elevation", &p.req.MinElevationDeg},
	}
	for _, f := range floats {
		if err := floatParam(q, f.name, f.dst); err != nil {
			return p, err
		}
	}

	if v := q.Get("resolution"); v != "" {
		d, err := durationParam(v, "resolution", time.Minute)
		if err != nil {
			return p, err
		}
		p.req.Resolution = d
	}
	if v := q.Get("hours"); v != "" {
		d, err := durationParam(v, "hours", time.Hour)
		if err != nil {
			return p, err
		}
		p.req.Horizon = d
	}

	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return p, fmt.Errorf("%w: start must be RFC 3339, got %q", visibility.ErrInvalidParameter, v)
		}
		p.req.Start = t
	}

	if v := q.Get("tz"); v != "" {
		zone, err := time.LoadLocation(v)
		if err != nil {
			return p, fmt.Errorf("%w: unknown timezone %q", visibility.ErrInvalidParameter, v)
		}
		p.req.DisplayZone = zone
	}

	if _, ok := q["select"]; ok {
		p.sel = strings.TrimSpace(q.Get("select"))
	}
	for _, v := range q["object"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				p.names = append(p.names, name)
			}
		}
	}

	format, err := report.ParseFormat(q.Get("format"))
	if err != nil {
		return p, fmt.Errorf("%w: %v", visibility.ErrInvalidParameter, err)
	}
	p.format = format

	if v := q.Get("save"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("%w: save must be a boolean", visibility.ErrInvalidParameter)
		}
		p.save = b
	}
	return p, nil
}

func floatParam(q url.Values, name string, dst *float64) error {
	v := q.Get(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %s must be a number, got %q", visibility.ErrInvalidParameter, name, v)
	}
	*dst = f
	return nil
}

// durationParam parses a positive count of unit. Values too large for a
// time.Duration are rejected.
func durationParam(v, name string, unit time.Duration) (time.Duration, error) {
	f, err := positive(v, name)
	if err != nil {
		return 0, err
	}
	d := f * float64(unit)
	if d >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s %q is out of range", visibility.ErrInvalidParameter, name, v)
	}
	return time.Duration(d), nil
}

func positive(v, name string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !(f > 0) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s must be a positive number, got %q", visibility.ErrInvalidParameter, name, v)
	}
	return f, nil
}

// selection describes the chosen objects for cache keys and logs.
func (p runParams) selection() string {
	if len(p.names) > 0 {
		return "=" + strings.Join(p.names, ",")
	}
	return p.sel
}

// gridSize is the number of samples a valid request produces.
func gridSize(req visibility.Request) int {
	return int(req.Horizon / req.Resolution)
}

// overBudget returns why a run of objects x instants is refused, or "" when
// it fits. maxInstants <= 0 caps the grid at maxPairs instead. The pair check
// divides rather than multiplies so that it cannot overflow.
func overBudget(objects, instants, maxInstants, maxPairs int) string {
	if maxInstants <= 0 {
		maxInstants = maxPairs
	}
	if maxInstants > 0 && instants > maxInstants {
		return fmt.Sprintf(
			"request too large: %d instants exceeds %d; coarsen the resolution or shorten the horizon",
			instants, maxInstants)
	}
	if maxPairs > 0 && instants > 0 && objects > maxPairs/instants {
		return fmt.Sprintf(
			"request too large: %d objects x %d instants exceeds %d pairs; narrow the selection or coarsen the resolution",
			objects, instants, maxPairs)
	}
	return ""
}
