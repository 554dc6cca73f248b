package visibility

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saturnRangs/ObservingSatellites/internal/metrics"
)

const tracerName = "github.com/saturnRangs/ObservingSatellites/internal/visibility"

// TwilightEdger is implemented by engines that can solve for the instants at
// which the sun crosses an altitude. Reports from such engines list the
// nights covered by the run.
type TwilightEdger interface {
	TwilightEdges(loc Location, from, to time.Time, band Band) ([]Night, error)
}

// Scheduler runs the full pipeline: grid, twilight filter, evaluation and
// ranking. A Scheduler holds no per-run state and is safe for concurrent use.
type Scheduler struct {
	engine    Engine
	clock     Clock
	evaluator *Evaluator
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock used when a request has no start.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithWorkers sets the evaluator pool size.
func WithWorkers(n int) Option {
	return func(s *Scheduler) { s.evaluator = NewEvaluator(s.engine, n, s.logger) }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

// NewScheduler creates a Scheduler backed by engine.
func NewScheduler(engine Engine, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		engine: engine,
		clock:  SystemClock{},
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	s.evaluator = NewEvaluator(engine, 0, logger)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Workers returns the evaluator pool size.
func (s *Scheduler) Workers() int { return s.evaluator.Workers() }

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock { return s.clock }

// Run evaluates objects for req and returns the ranked report. Invalid
// parameters fail before any work; per-object ephemeris failures do not fail
// the run.
func (s *Scheduler) Run(ctx context.Context, req Request, objects []TrackedObject) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "visibility.run", trace.WithAttributes(
		attribute.Float64("location.lat", req.Location.LatDeg),
		attribute.Float64("location.lon", req.Location.LonDeg),
		attribute.Int("objects", len(objects)),
	))
	defer span.End()

	began := time.Now()
	start := req.Start
	if start.IsZero() {
		start = s.clock.Now()
	}

	grid, err := BuildGrid(start, req.Resolution, req.Horizon)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.AddEvent("grid", trace.WithAttributes(attribute.Int("instants", grid.Len())))

	window, err := s.filter(ctx, grid, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tally, err := s.evaluate(ctx, window, req, objects)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	_, aggSpan := s.tracer.Start(ctx, "visibility.aggregate")
	report := BuildReport(req, grid, window, objects, tally, s.clock.Now())
	aggSpan.SetAttributes(attribute.Int("max", report.Max), attribute.Int("peaks", len(report.Peaks)))
	aggSpan.End()

	if edger, ok := s.engine.(TwilightEdger); ok {
		end := grid.Start.Add(req.Horizon)
		nights, err := edger.TwilightEdges(req.Location, grid.Start, end, req.Band)
		if err != nil {
			s.logger.Warn("twilight edges unavailable", "component", "visibility", "error", err)
		} else {
			report.Nights = nights
		}
	}

	elapsed := time.Since(began)
	metrics.RecordVisibilityRun(elapsed, grid.Len(), window.Len(), tally.Evaluated, tally.Skipped, report.Max)

	s.logger.Info("visibility run complete",
		"component", "visibility",
		"grid", grid.Len(),
		"twilight", window.Len(),
		"objects", len(objects),
		"max", report.Max,
		"peaks", len(report.Peaks),
		"skipped_pairs", tally.Skipped,
		"duration_ms", elapsed.Milliseconds(),
	)
	return report, nil
}

func (s *Scheduler) filter(ctx context.Context, grid TimeGrid, req Request) (TwilightWindow, error) {
	ctx, span := s.tracer.Start(ctx, "visibility.twilight")
	defer span.End()

	w, err := FilterTwilight(ctx, s.engine, grid, req.Location, req.Band)
	if err != nil {
		return TwilightWindow{}, fmt.Errorf("twilight filter: %w", err)
	}
	span.SetAttributes(attribute.Int("instants", w.Len()))
	return w, nil
}

func (s *Scheduler) evaluate(ctx context.Context, w TwilightWindow, req Request, objects []TrackedObject) (*Tally, error) {
	ctx, span := s.tracer.Start(ctx, "visibility.evaluate", trace.WithAttributes(
		attribute.Int("workers", s.evaluator.Workers()),
		attribute.Int("pairs", w.Len()*len(objects)),
	))
	defer span.End()

	tally, err := s.evaluator.Evaluate(ctx, w, req.Location, objects, req.MinElevationDeg)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	span.SetAttributes(attribute.Int("skipped", tally.Skipped))
	return tally, nil
}
