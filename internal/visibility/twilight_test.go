package visibility

import (
	"context"
	"errors"
	"testing"
	"time"
)

// rampSun sweeps the sun from +10° down one degree per sample.
func rampSun(start time.Time, step time.Duration) func(time.Time) (float64, error) {
	return func(t time.Time) (float64, error) {
		return 10 - float64(t.Sub(start)/step), nil
	}
}

func TestFilterTwilightSubset(t *testing.T) {
	start := time.Date(2024, 6, 21, 2, 0, 0, 0, time.UTC)
	grid, err := BuildGrid(start, 10*time.Minute, 8*time.Hour)
	if err != nil {
		t.Fatalf("BuildGrid: %v", err)
	}
	engine := &stubEngine{sun: rampSun(start, 10*time.Minute)}
	band := Band{LowerDeg: -27, UpperDeg: -3}

	w, err := FilterTwilight(context.Background(), engine, grid, scenarioLocation, band)
	if err != nil {
		t.Fatalf("FilterTwilight: %v", err)
	}

	// Altitudes run 10, 9, ..., -37; strictly inside (-27, -3) are -4 .. -26.
	if w.Len() != 23 {
		t.Fatalf("twilight len = %d, want 23", w.Len())
	}

	inWindow := make(map[time.Time]bool, w.Len())
	for i, ti := range w.Instants {
		inWindow[ti] = true
		alt, _ := engine.sun(ti)
		if !band.Contains(alt) || alt != w.SunAltDeg[i] {
			t.Errorf("instant %s: alt %.1f recorded %.1f", ti, alt, w.SunAltDeg[i])
		}
		if i > 0 && !w.Instants[i-1].Before(ti) {
			t.Errorf("order not preserved at %d", i)
		}
	}
	for _, ti := range grid.Instants {
		if inWindow[ti] {
			continue
		}
		if alt, _ := engine.sun(ti); band.Contains(alt) {
			t.Errorf("instant %s with alt %.1f dropped", ti, alt)
		}
	}
}

func TestFilterTwilightBoundsExclusive(t *testing.T) {
	start := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	grid, _ := BuildGrid(start, time.Hour, 3*time.Hour)
	alts := []float64{-27, -3, -3.0001}
	engine := &stubEngine{sun: func(t time.Time) (float64, error) {
		return alts[int(t.Sub(start)/time.Hour)], nil
	}}

	w, err := FilterTwilight(context.Background(), engine, grid, scenarioLocation, Band{LowerDeg: -27, UpperDeg: -3})
	if err != nil {
		t.Fatalf("FilterTwilight: %v", err)
	}
	if w.Len() != 1 || !w.Instants[0].Equal(start.Add(2*time.Hour)) {
		t.Errorf("window = %v, want only the -3.0001° sample", w.Instants)
	}
}

func TestFilterTwilightSunFailureAborts(t *testing.T) {
	grid, _ := BuildGrid(scenarioStart, time.Hour, 4*time.Hour)
	boom := errors.New("outside ephemeris range")
	engine := &stubEngine{sun: func(time.Time) (float64, error) { return 0, boom }}

	_, err := FilterTwilight(context.Background(), engine, grid, scenarioLocation, scenarioBand)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestFilterTwilightInvalidBand(t *testing.T) {
	grid, _ := BuildGrid(scenarioStart, time.Hour, 4*time.Hour)
	engine := &stubEngine{sun: constantSun(-10)}

	for _, band := range []Band{
		{LowerDeg: -3, UpperDeg: -27},
		{LowerDeg: -10, UpperDeg: -10},
		{LowerDeg: -10, UpperDeg: 5},
	} {
		_, err := FilterTwilight(context.Background(), engine, grid, scenarioLocation, band)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("band %+v: err = %v, want ErrInvalidParameter", band, err)
		}
	}
	if n := engine.sunCalls.Load(); n != 0 {
		t.Errorf("engine called %d times for invalid bands", n)
	}
}
