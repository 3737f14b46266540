// Package lightcurve turns a parsed GLM event into a calibrated absolute-magnitude
// light curve: range to the satellite, raw radiometric magnitude and the configured
// correction chain, computed independently for every sample.
package lightcurve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/star/glmag/internal/correction"
	"github.com/star/glmag/internal/glm"
	"github.com/star/glmag/internal/metrics"
	"github.com/star/glmag/internal/radiometry"
	"github.com/star/glmag/internal/tracing"
	"github.com/star/glmag/internal/transform"
)

// Pipeline computes derived samples for one event.
type Pipeline struct {
	cfg    RunConfig
	pool   *WorkerPool
	logger *slog.Logger
}

// NewPipeline validates cfg and returns a pipeline bound to it.
func NewPipeline(cfg RunConfig, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	return &Pipeline{
		cfg:    cfg,
		pool:   NewWorkerPool(cfg.Workers, logger),
		logger: logger.With("component", "lightcurve"),
	}, nil
}

// Run computes the light curve for ev. Either every sample succeeds, or Run returns
// an error joining one *SampleError per failed sample.
func (p *Pipeline) Run(ctx context.Context, ev *glm.Event) (_ *Result, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "lightcurve.Run")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "light curve failed")
		}
		span.End()
	}()

	if ev == nil || len(ev.Samples) == 0 {
		return nil, errors.New("event has no samples")
	}
	span.SetAttributes(
		attribute.Int("glmag.samples", len(ev.Samples)),
		attribute.Int("glmag.workers", p.cfg.Workers),
		attribute.Float64("glmag.velocity_km_s", p.cfg.VelocityKmS),
	)

	sat := transform.GeodeticToECEF(ev.Satellite.LonDeg, ev.Satellite.LatDeg, ev.Satellite.HeightM)
	if err := transform.CheckFinite(sat); err != nil {
		return nil, fmt.Errorf("satellite position: %w", err)
	}

	t0 := ev.Samples[0].TimeMS

	p.logger.Debug("processing samples",
		"samples", len(ev.Samples),
		"workers", p.cfg.Workers,
		"velocity_km_s", p.cfg.VelocityKmS,
		"flash_height_m", p.cfg.FlashHeightM,
	)

	start := time.Now()
	results, err := p.pool.Map(ctx, len(ev.Samples), func(i int) sampleResult {
		return p.derive(i, ev.Samples[i], t0, sat)
	})
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("processing samples: %w", err)
	}

	res := &Result{
		Event:      ev,
		Config:     p.cfg,
		Satellite:  sat,
		Samples:    make([]DerivedSample, len(results)),
		Advisories: make(map[string]int),
	}

	var errs []error
	for i, r := range results {
		if r.err != nil {
			p.logger.Error("sample failed",
				"sample_index", i,
				"time_ms", ev.Samples[i].TimeMS,
				"error", r.err,
			)
			errs = append(errs, r.err)
			continue
		}
		res.Samples[i] = r.sample

		flagged := make(map[string]bool, len(r.advisories))
		for _, a := range r.advisories {
			p.logger.Debug("correction outside calibrated range", "sample_index", i, "stage", a.Stage, "advisory", a.Message)
			if !flagged[a.Stage] {
				flagged[a.Stage] = true
				res.Advisories[a.Stage]++
				metrics.IncAdvisory(a.Stage)
			}
		}
	}

	metrics.RecordPipeline(duration, len(results)-len(errs), len(errs))
	span.SetAttributes(attribute.Int("glmag.failed_samples", len(errs)))

	if len(errs) > 0 {
		return nil, fmt.Errorf("%d of %d samples failed: %w", len(errs), len(results), errors.Join(errs...))
	}

	for stage, n := range res.Advisories {
		p.logger.Warn("correction applied outside its calibrated range; values may be overcorrected",
			"stage", stage,
			"samples", n,
		)
	}

	peak, idx := res.Peak()
	metrics.SetPeakMagnitude(peak)
	span.SetAttributes(attribute.Float64("glmag.peak_mag", peak))
	p.logger.Info("light curve computed",
		"samples", len(res.Samples),
		"duration_ms", duration.Milliseconds(),
		"peak_mag", peak,
		"peak_elapsed_s", res.Samples[idx].ElapsedS,
	)

	return res, nil
}

// derive computes one sample. It reads only its own sample and the run config.
func (p *Pipeline) derive(i int, s glm.Sample, t0 int64, sat transform.PositionECEF) sampleResult {
	fail := func(err error) sampleResult {
		return sampleResult{err: &SampleError{Index: i, TimeMS: s.TimeMS, Err: err}}
	}

	flash := transform.GeodeticToECEF(s.LonDeg, s.LatDeg, p.cfg.FlashHeightM)
	if err := transform.CheckFinite(flash); err != nil {
		return fail(fmt.Errorf("flash position: %w", err))
	}
	rangeKm := transform.RangeKm(sat, flash)

	raw, err := p.cfg.Model.Magnitude(p.cfg.VelocityKmS, s.EnergyJ, rangeKm)
	if err != nil {
		return fail(err)
	}

	in := correction.Input{
		Velocity:   p.cfg.VelocityKmS,
		Energy:     s.EnergyJ,
		DistanceKm: rangeKm,
		HeightKm:   p.cfg.FlashHeightM / 1000,
		Raw:        raw,
	}
	corrections, err := p.cfg.Chain.Apply(in)
	if err != nil {
		return fail(err)
	}
	if err := checkMagnitudes(raw, corrections); err != nil {
		return fail(err)
	}

	return sampleResult{
		sample: DerivedSample{
			Index:       i,
			Time:        s.Time(),
			TimeS:       float64(s.TimeMS) / 1000,
			ElapsedS:    float64(s.TimeMS-t0) / 1000,
			RangeKm:     rangeKm,
			RawMag:      raw,
			Corrections: corrections,
		},
		advisories: p.cfg.Chain.Advise(in),
	}
}

// checkMagnitudes rejects a sample whose raw or corrected magnitude is NaN or Inf.
func checkMagnitudes(raw float64, corrections []correction.Result) error {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return &radiometry.DomainError{Quantity: "mag", Value: raw}
	}
	for _, c := range corrections {
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			return &radiometry.DomainError{Quantity: c.Column, Value: c.Value}
		}
	}
	return nil
}
