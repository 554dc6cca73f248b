package visibility

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

func TestEvaluateScenario(t *testing.T) {
	engine := &stubEngine{sun: scenarioSun}
	w := hourWindow(scenarioStart, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	objects := []TrackedObject{
		{Name: "A", State: visibleAtHours(scenarioStart, 30, 3)},
		{Name: "B", State: visibleAtHours(scenarioStart, 10, 3, 5)},
		{Name: "C", State: neverSunlit()},
	}

	tally, err := NewEvaluator(engine, 2, testLogger).Evaluate(context.Background(), w, scenarioLocation, objects, 5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	want := []int{0, 0, 2, 0, 1, 0, 0, 0, 0, 0}
	if !reflect.DeepEqual(tally.Counts, want) {
		t.Errorf("counts = %v, want %v", tally.Counts, want)
	}
	if !reflect.DeepEqual(tally.Visible[2], []int{0, 1}) {
		t.Errorf("visible at hour 3 = %v, want [0 1]", tally.Visible[2])
	}
	if tally.Evaluated != 30 {
		t.Errorf("evaluated = %d, want 30", tally.Evaluated)
	}
	if tally.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", tally.Skipped)
	}
}

func TestEvaluateElevationStrict(t *testing.T) {
	engine := &stubEngine{sun: constantSun(-10)}
	w := hourWindow(scenarioStart, 0)
	objects := []TrackedObject{
		{Name: "at-min", State: alwaysVisible(5)},
		{Name: "just-above", State: alwaysVisible(5.0001)},
	}

	tally, err := NewEvaluator(engine, 1, testLogger).Evaluate(context.Background(), w, scenarioLocation, objects, 5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if tally.Counts[0] != 1 || !reflect.DeepEqual(tally.Visible[0], []int{1}) {
		t.Errorf("counts = %v visible = %v, want only just-above", tally.Counts, tally.Visible)
	}
}

func TestEvaluateCountBounds(t *testing.T) {
	engine := &stubEngine{sun: constantSun(-10)}
	w := hourWindow(scenarioStart, 0, 1, 2, 3, 4, 5)

	var objects []TrackedObject
	for i := range 17 {
		objects = append(objects, TrackedObject{
			Name:  fmt.Sprintf("obj-%02d", i),
			State: visibleAtHours(scenarioStart, float64(i), i%6, (i*5)%6),
		})
	}

	tally, err := NewEvaluator(engine, 4, testLogger).Evaluate(context.Background(), w, scenarioLocation, objects, 2)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for i, c := range tally.Counts {
		if c < 0 || c > len(objects) {
			t.Errorf("count[%d] = %d outside [0, %d]", i, c, len(objects))
		}
		if c != len(tally.Visible[i]) {
			t.Errorf("count[%d] = %d but %d visible objects", i, c, len(tally.Visible[i]))
		}
	}
}

func TestEvaluateMonotonicInObjects(t *testing.T) {
	engine := &stubEngine{sun: constantSun(-10)}
	w := hourWindow(scenarioStart, 0, 1, 2, 3)
	base := []TrackedObject{
		{Name: "A", State: visibleAtHours(scenarioStart, 20, 0, 2)},
		{Name: "B", State: visibleAtHours(scenarioStart, 20, 2, 3)},
	}
	more := append(base[:len(base):len(base)], TrackedObject{Name: "C", State: alwaysVisible(40)})

	ev := NewEvaluator(engine, 3, testLogger)
	small, err := ev.Evaluate(context.Background(), w, scenarioLocation, base, 10)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	large, err := ev.Evaluate(context.Background(), w, scenarioLocation, more, 10)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for i := range small.Counts {
		if large.Counts[i] < small.Counts[i] {
			t.Errorf("instant %d: adding an object lowered the count %d -> %d", i, small.Counts[i], large.Counts[i])
		}
	}
}

func TestEvaluateWorkerCountDoesNotChangeResult(t *testing.T) {
	engine := &stubEngine{sun: constantSun(-10)}
	w := hourWindow(scenarioStart, 0, 1, 2, 3, 4, 5, 6, 7)

	var objects []TrackedObject
	for i := range 40 {
		objects = append(objects, TrackedObject{
			Name:  fmt.Sprintf("sat-%d", i),
			State: visibleAtHours(scenarioStart, 15, i%8, (i+3)%8),
		})
	}
	objects = append(objects, TrackedObject{Name: "broken", State: "not a state"})

	serial, err := NewEvaluator(engine, 1, testLogger).Evaluate(context.Background(), w, scenarioLocation, objects, 5)
	if err != nil {
		t.Fatalf("serial Evaluate: %v", err)
	}
	parallel, err := NewEvaluator(engine, 8, testLogger).Evaluate(context.Background(), w, scenarioLocation, objects, 5)
	if err != nil {
		t.Fatalf("parallel Evaluate: %v", err)
	}

	if !reflect.DeepEqual(serial.Counts, parallel.Counts) {
		t.Errorf("counts differ: serial %v parallel %v", serial.Counts, parallel.Counts)
	}
	if !reflect.DeepEqual(serial.Visible, parallel.Visible) {
		t.Errorf("visible sets differ")
	}
	if serial.Skipped != parallel.Skipped || serial.Evaluated != parallel.Evaluated {
		t.Errorf("pair counters differ: serial %d/%d parallel %d/%d",
			serial.Evaluated, serial.Skipped, parallel.Evaluated, parallel.Skipped)
	}
}

func TestEvaluateIsolatesEphemerisErrors(t *testing.T) {
	engine := &stubEngine{sun: constantSun(-10)}
	w := hourWindow(scenarioStart, 0, 1, 2)
	decayed := errors.New("satellite has decayed")

	flaky := &stubObject{
		sunlit: func(t time.Time) (bool, error) {
			if t.Equal(scenarioStart.Add(time.Hour)) {
				return false, decayed
			}
			return true, nil
		},
		altitude: func(time.Time) (float64, error) { return 50, nil },
	}
	objects := []TrackedObject{
		{Name: "good", State: alwaysVisible(30)},
		{Name: "flaky", State: flaky},
		{Name: "wrong-state", State: 42},
	}

	tally, err := NewEvaluator(engine, 2, testLogger).Evaluate(context.Background(), w, scenarioLocation, objects, 5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if want := []int{2, 1, 2}; !reflect.DeepEqual(tally.Counts, want) {
		t.Errorf("counts = %v, want %v", tally.Counts, want)
	}
	if tally.Skipped != 4 {
		t.Errorf("skipped = %d, want 4", tally.Skipped)
	}
	if len(tally.Errors) != 4 {
		t.Fatalf("errors = %d, want 4", len(tally.Errors))
	}

	first := tally.Errors[0]
	if first.Object != "flaky" || !errors.Is(first, decayed) {
		t.Errorf("first error = %v, want flaky/decayed", first)
	}
	var ee *EphemerisError
	if !errors.As(tally.Errors[1], &ee) || ee.Object != "wrong-state" || !errors.Is(ee, errBadState) {
		t.Errorf("second error = %v, want wrong-state", tally.Errors[1])
	}
}

func TestEvaluateErrorSamplesBounded(t *testing.T) {
	engine := &stubEngine{sun: constantSun(-10)}
	w := hourWindow(scenarioStart, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)

	var objects []TrackedObject
	for i := range 5 {
		objects = append(objects, TrackedObject{Name: fmt.Sprintf("bad-%d", i), State: i})
	}

	tally, err := NewEvaluator(engine, 3, testLogger).Evaluate(context.Background(), w, scenarioLocation, objects, 0)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if tally.Skipped != 50 {
		t.Errorf("skipped = %d, want 50", tally.Skipped)
	}
	if len(tally.Errors) != maxErrorSamples {
		t.Errorf("error samples = %d, want %d", len(tally.Errors), maxErrorSamples)
	}
}

func TestEvaluateZeroObjects(t *testing.T) {
	engine := &stubEngine{sun: constantSun(-10)}
	w := hourWindow(scenarioStart, 0, 1, 2)

	tally, err := NewEvaluator(engine, 4, testLogger).Evaluate(context.Background(), w, scenarioLocation, nil, 5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !reflect.DeepEqual(tally.Counts, []int{0, 0, 0}) {
		t.Errorf("counts = %v, want three zeros", tally.Counts)
	}
	if n := engine.objCalls.Load(); n != 0 {
		t.Errorf("engine called %d times", n)
	}
}

func TestEvaluateCancelled(t *testing.T) {
	engine := &stubEngine{sun: constantSun(-10)}
	w := hourWindow(scenarioStart, 0, 1)
	objects := []TrackedObject{{Name: "A", State: alwaysVisible(30)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEvaluator(engine, 2, testLogger).Evaluate(ctx, w, scenarioLocation, objects, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewEvaluatorDefaultsWorkers(t *testing.T) {
	if n := NewEvaluator(&stubEngine{}, 0, testLogger).Workers(); n < 1 {
		t.Errorf("workers = %d, want >= 1", n)
	}
}
