package visibility

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// stubObject scripts an object's geometry per instant.
type stubObject struct {
	sunlit   func(t time.Time) (bool, error)
	altitude func(t time.Time) (float64, error)
}

// stubEngine is a deterministic Engine. The sun altitude is a function of
// time only; object geometry comes from *stubObject states.
type stubEngine struct {
	sun      func(t time.Time) (float64, error)
	sunCalls atomic.Int64
	objCalls atomic.Int64
}

var errBadState = errors.New("state is not a *stubObject")

func (e *stubEngine) SunAltitude(t time.Time, _ Location) (float64, error) {
	e.sunCalls.Add(1)
	return e.sun(t)
}

func (e *stubEngine) ObjectAltitude(t time.Time, _ Location, state any) (float64, error) {
	e.objCalls.Add(1)
	obj, ok := state.(*stubObject)
	if !ok {
		return 0, errBadState
	}
	return obj.altitude(t)
}

func (e *stubEngine) IsSunlit(t time.Time, state any) (bool, error) {
	e.objCalls.Add(1)
	obj, ok := state.(*stubObject)
	if !ok {
		return false, errBadState
	}
	return obj.sunlit(t)
}

// constantSun places every instant at the same sun altitude.
func constantSun(alt float64) func(time.Time) (float64, error) {
	return func(time.Time) (float64, error) { return alt, nil }
}

// visibleAtHours is sunlit at altDeg during the listed hours after start and
// not sunlit otherwise.
func visibleAtHours(start time.Time, altDeg float64, hours ...int) *stubObject {
	set := make(map[time.Time]bool, len(hours))
	for _, h := range hours {
		set[start.Add(time.Duration(h)*time.Hour)] = true
	}
	return &stubObject{
		sunlit: func(t time.Time) (bool, error) { return set[t], nil },
		altitude: func(t time.Time) (float64, error) {
			if set[t] {
				return altDeg, nil
			}
			return -10, nil
		},
	}
}

func neverSunlit() *stubObject {
	return &stubObject{
		sunlit:   func(time.Time) (bool, error) { return false, nil },
		altitude: func(time.Time) (float64, error) { return 45, nil },
	}
}

func alwaysVisible(altDeg float64) *stubObject {
	return &stubObject{
		sunlit:   func(time.Time) (bool, error) { return true, nil },
		altitude: func(time.Time) (float64, error) { return altDeg, nil },
	}
}

var (
	scenarioStart    = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	scenarioLocation = Location{LatDeg: 33.645, LonDeg: -117.686}
	scenarioBand     = Band{LowerDeg: -27, UpperDeg: -3}
)

// scenarioSun keeps hours 1..10 in twilight and puts hours 0 and 11 in
// daylight.
func scenarioSun(t time.Time) (float64, error) {
	h := int(t.Sub(scenarioStart) / time.Hour)
	if h == 0 || h == 11 {
		return 15, nil
	}
	return -15, nil
}

func hourWindow(start time.Time, hours ...int) TwilightWindow {
	w := TwilightWindow{Band: scenarioBand}
	for _, h := range hours {
		w.Instants = append(w.Instants, start.Add(time.Duration(h)*time.Hour))
		w.SunAltDeg = append(w.SunAltDeg, -15)
	}
	return w
}
