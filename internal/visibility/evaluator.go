package visibility

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Evaluator applies the joint visibility predicate (sunlit and above the
// minimum elevation) to every object at every twilight instant.
//
// Objects are spread over a fixed number of goroutines. Each goroutine keeps
// its own partial Tally; partials are summed once all objects are done.
type Evaluator struct {
	engine  Engine
	workers int
	logger  *slog.Logger
}

// NewEvaluator creates an evaluator. workers <= 0 selects runtime.NumCPU().
func NewEvaluator(engine Engine, workers int, logger *slog.Logger) *Evaluator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Evaluator{
		engine:  engine,
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the configured pool size.
func (e *Evaluator) Workers() int { return e.workers }

// Evaluate counts, per twilight instant, the objects that are sunlit and
// strictly above minElevDeg. Engine failures are isolated to the failing
// (object, instant) pair and reported through the Tally.
func (e *Evaluator) Evaluate(ctx context.Context, w TwilightWindow, loc Location, objects []TrackedObject, minElevDeg float64) (*Tally, error) {
	total := newTally(w.Len())
	if w.Len() == 0 || len(objects) == 0 {
		return total, nil
	}

	workers := min(e.workers, len(objects))
	jobs := make(chan int, workers*2)
	partials := make([]*Tally, workers)

	var wg sync.WaitGroup
	for i := range workers {
		partial := newTally(w.Len())
		partials[i] = partial
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				e.evaluateObject(idx, objects[idx], w, loc, minElevDeg, partial)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for idx := range objects {
			select {
			case jobs <- idx:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, p := range partials {
		total.merge(p)
	}
	total.finish()
	return total, nil
}

// evaluateObject walks one object over every twilight instant.
func (e *Evaluator) evaluateObject(idx int, obj TrackedObject, w TwilightWindow, loc Location, minElevDeg float64, tally *Tally) {
	for i, t := range w.Instants {
		tally.Evaluated++

		sunlit, err := e.engine.IsSunlit(t, obj.State)
		if err != nil {
			e.skip(tally, idx, i, obj.Name, t, err)
			continue
		}
		if !sunlit {
			continue
		}

		alt, err := e.engine.ObjectAltitude(t, loc, obj.State)
		if err != nil {
			e.skip(tally, idx, i, obj.Name, t, err)
			continue
		}
		if alt > minElevDeg {
			tally.add(i, idx)
		}
	}
}

func (e *Evaluator) skip(tally *Tally, objIdx, instIdx int, name string, t time.Time, err error) {
	ee := &EphemerisError{Object: name, Instant: t, Err: err}
	e.logger.Debug("skipping object at instant",
		"component", "visibility",
		"object", name,
		"instant", t.Format(time.RFC3339),
		"error", err,
	)
	tally.recordSkip(objIdx, instIdx, ee)
}
