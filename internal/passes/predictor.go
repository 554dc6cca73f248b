// Package passes finds the individual passes of objects over an observer and
// the part of each pass that can actually be seen: object sunlit, sun inside
// the twilight band.
package passes

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// Pass describes a single pass above the minimum elevation.
type Pass struct {
	Rise            time.Time  `json:"rise"`
	Culmination     time.Time  `json:"culmination"`
	Set             time.Time  `json:"set"`
	DurationSeconds float64    `json:"duration_seconds"`
	MaxElevationDeg float64    `json:"max_elevation_deg"`
	VisibleFrom     *time.Time `json:"visible_from,omitempty"`
	VisibleUntil    *time.Time `json:"visible_until,omitempty"`
	VisibleSeconds  float64    `json:"visible_seconds"`
}

// Visible reports whether any part of the pass can be observed.
func (p Pass) Visible() bool { return p.VisibleSeconds > 0 }

// ObjectPasses holds the predicted passes for one object.
type ObjectPasses struct {
	Name   string `json:"name"`
	Passes []Pass `json:"passes"`
	Error  string `json:"error,omitempty"`
}

// Request holds the parameters for a pass search.
type Request struct {
	Location        visibility.Location
	Start           time.Time
	Horizon         time.Duration
	Band            visibility.Band
	MinElevationDeg float64
	MaxPasses       int  // per object; <= 0 means DefaultMaxPasses
	VisibleOnly     bool // drop passes with no observable part
}

// DefaultMaxPasses bounds the passes returned per object.
const DefaultMaxPasses = 20

const (
	coarseStep = 30 * time.Second
	fineStep   = 5 * time.Second
	minPassDur = 10 * time.Second
)

// Validate checks the request the same way a visibility run does.
func (r Request) Validate() error {
	if err := r.Location.Validate(); err != nil {
		return err
	}
	if r.Horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive, got %s", visibility.ErrInvalidParameter, r.Horizon)
	}
	if err := r.Band.Validate(); err != nil {
		return err
	}
	if r.MinElevationDeg < 0 || r.MinElevationDeg >= 90 {
		return fmt.Errorf("%w: minimum elevation %v outside [0, 90)", visibility.ErrInvalidParameter, r.MinElevationDeg)
	}
	return nil
}

// Predict computes passes for each object. Each object is processed in its
// own goroutine, bounded by a semaphore; results keep the input order. A
// failing object carries its error and does not affect the others.
func Predict(ctx context.Context, engine visibility.Engine, req Request, objects []visibility.TrackedObject) []ObjectPasses {
	if req.MaxPasses <= 0 {
		req.MaxPasses = DefaultMaxPasses
	}
	results := make([]ObjectPasses, len(objects))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, obj := range objects {
		wg.Add(1)
		go func(idx int, o visibility.TrackedObject) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = ObjectPasses{Name: o.Name, Error: "cancelled"}
				return
			}

			p := &predictor{ctx: ctx, engine: engine, req: req, state: o.State}
			passes, err := p.scan()
			if err != nil {
				results[idx] = ObjectPasses{Name: o.Name, Error: err.Error()}
				return
			}
			results[idx] = ObjectPasses{Name: o.Name, Passes: passes}
		}(i, obj)
	}

	wg.Wait()
	return results
}

type predictor struct {
	ctx    context.Context
	engine visibility.Engine
	req    Request
	state  any
}

// scan steps coarsely through the window and refines every above-minimum hit.
func (p *predictor) scan() ([]Pass, error) {
	start := p.req.Start
	end := start.Add(p.req.Horizon)
	passes := []Pass{}

	var lastErr error
	failures, samples := 0, 0
	t := start
	for t.Before(end) && len(passes) < p.req.MaxPasses {
		if p.ctx.Err() != nil {
			return passes, nil
		}

		samples++
		el, err := p.engine.ObjectAltitude(t, p.req.Location, p.state)
		if err != nil {
			failures++
			lastErr = err
			t = t.Add(coarseStep)
			continue
		}

		if el <= p.req.MinElevationDeg {
			t = t.Add(coarseStep)
			continue
		}

		pass, windowEnd := p.refine(t, start, end)
		if pass != nil && pass.Set.Sub(pass.Rise) >= minPassDur && (!p.req.VisibleOnly || pass.Visible()) {
			passes = append(passes, *pass)
		}
		t = windowEnd.Add(coarseStep)
	}

	if samples > 0 && failures == samples {
		return nil, fmt.Errorf("no usable position in window: %w", lastErr)
	}
	return passes, nil
}

// refine does a fine-grained scan around a coarse hit: it backs up to find
// the rise, then scans forward to the set, tracking the observable part.
func (p *predictor) refine(coarseHit, windowStart, windowEnd time.Time) (*Pass, time.Time) {
	searchStart := coarseHit.Add(-coarseStep)
	if searchStart.Before(windowStart) {
		searchStart = windowStart
	}

	var (
		pass      Pass
		wasAbove  bool
		foundRise bool
		lastSeen  time.Time
	)

	t := searchStart
	for t.Before(windowEnd) {
		if p.ctx.Err() != nil {
			break
		}

		el, err := p.engine.ObjectAltitude(t, p.req.Location, p.state)
		if err != nil {
			t = t.Add(fineStep)
			continue
		}
		above := el > p.req.MinElevationDeg

		if above && !wasAbove {
			pass = Pass{Rise: t, Culmination: t, MaxElevationDeg: el}
			foundRise = true
		}

		if above && foundRise {
			if el > pass.MaxElevationDeg {
				pass.MaxElevationDeg = el
				pass.Culmination = t
			}
			if p.observable(t) {
				if pass.VisibleFrom == nil {
					from := t
					pass.VisibleFrom = &from
				}
				lastSeen = t
				pass.VisibleSeconds += fineStep.Seconds()
			}
		}

		if !above && wasAbove && foundRise {
			pass.Set = t
			break
		}

		wasAbove = above
		t = t.Add(fineStep)
	}

	// Still above at the end of the window: close the pass there.
	if foundRise && pass.Set.IsZero() && wasAbove {
		pass.Set = t
	}
	if !foundRise || pass.Set.IsZero() {
		return nil, t
	}

	if pass.VisibleFrom != nil {
		until := lastSeen.Add(fineStep)
		if until.After(pass.Set) {
			until = pass.Set
		}
		pass.VisibleUntil = &until
	}
	pass.DurationSeconds = pass.Set.Sub(pass.Rise).Seconds()
	return &pass, pass.Set
}

// observable applies the twilight and illumination conditions at t. Engine
// failures count as not observable.
func (p *predictor) observable(t time.Time) bool {
	sunAlt, err := p.engine.SunAltitude(t, p.req.Location)
	if err != nil || !p.req.Band.Contains(sunAlt) {
		return false
	}
	lit, err := p.engine.IsSunlit(t, p.state)
	return err == nil && lit
}
