package visibility

import (
	"context"
	"fmt"
	"time"
)

// FilterTwilight keeps the grid instants whose sun altitude lies strictly
// inside band. Order is preserved. Sun altitude does not depend on any
// object, so an Engine failure here fails the whole run.
func FilterTwilight(ctx context.Context, engine Engine, grid TimeGrid, loc Location, band Band) (TwilightWindow, error) {
	if err := band.Validate(); err != nil {
		return TwilightWindow{}, err
	}

	w := TwilightWindow{Band: band}
	for _, t := range grid.Instants {
		if err := ctx.Err(); err != nil {
			return TwilightWindow{}, err
		}
		alt, err := engine.SunAltitude(t, loc)
		if err != nil {
			return TwilightWindow{}, fmt.Errorf("sun altitude at %s: %w", t.Format(time.RFC3339), err)
		}
		if band.Contains(alt) {
			w.Instants = append(w.Instants, t)
			w.SunAltDeg = append(w.SunAltDeg, alt)
		}
	}
	return w, nil
}
