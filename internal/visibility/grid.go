package visibility

import (
	"fmt"
	"time"
)

// BuildGrid samples [start, start+horizon) every resolution. The start is
// converted to UTC and truncated to the whole minute. A trailing partial step
// is dropped, so the grid never looks past the horizon and always has
// floor(horizon/resolution) instants.
func BuildGrid(start time.Time, resolution, horizon time.Duration) (TimeGrid, error) {
	if resolution <= 0 {
		return TimeGrid{}, fmt.Errorf("%w: resolution must be positive, got %s", ErrInvalidParameter, resolution)
	}
	if horizon <= 0 {
		return TimeGrid{}, fmt.Errorf("%w: horizon must be positive, got %s", ErrInvalidParameter, horizon)
	}
	n := int(horizon / resolution)
	if n == 0 {
		return TimeGrid{}, fmt.Errorf("%w: resolution %s exceeds horizon %s", ErrInvalidParameter, resolution, horizon)
	}

	start = start.UTC().Truncate(time.Minute)
	instants := make([]time.Time, n)
	for i := range n {
		instants[i] = start.Add(time.Duration(i) * resolution)
	}

	return TimeGrid{
		Start:    start,
		Step:     resolution,
		Instants: instants,
	}, nil
}
