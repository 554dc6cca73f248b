package ephemeris

import (
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// TwilightEdges lists the nights overlapping [from, to). A night starts when
// the evening sun sinks below the band's upper edge and ends when it rises
// back through it. Days on which the sun never crosses that altitude yield
// no night.
func (e *Engine) TwilightEdges(loc visibility.Location, from, to time.Time, band visibility.Band) ([]visibility.Night, error) {
	if err := band.Validate(); err != nil {
		return nil, err
	}

	var nights []visibility.Night
	first := from.UTC().AddDate(0, 0, -1)
	last := to.UTC().AddDate(0, 0, 1)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		_, dusk := sunrise.TimeOfElevation(loc.LatDeg, loc.LonDeg, band.UpperDeg, day.Year(), day.Month(), day.Day())
		next := day.AddDate(0, 0, 1)
		dawn, _ := sunrise.TimeOfElevation(loc.LatDeg, loc.LonDeg, band.UpperDeg, next.Year(), next.Month(), next.Day())

		if dusk.IsZero() || dawn.IsZero() || !dusk.Before(dawn) {
			continue
		}
		if !dusk.Before(to) || !dawn.After(from) {
			continue
		}
		nights = append(nights, visibility.Night{Dusk: dusk.UTC(), Dawn: dawn.UTC()})
	}
	return nights, nil
}
