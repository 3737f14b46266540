package lightcurve

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/star/glmag/internal/correction"
	"github.com/star/glmag/internal/glm"
	"github.com/star/glmag/internal/radiometry"
	"github.com/star/glmag/internal/transform"
)

// RunConfig holds the run-wide constants. It is set once before processing and
// never mutated; every per-sample computation receives it by value.
type RunConfig struct {
	VelocityKmS  float64 // assumed meteor velocity for the whole event
	FlashHeightM float64 // assumed flash height above the ellipsoid
	Model        radiometry.Model
	Chain        correction.Chain
	Workers      int // per-sample worker pool size
}

// Validate rejects configurations the magnitude model cannot use.
func (c RunConfig) Validate() error {
	var errs []error
	if !(c.VelocityKmS > 0) || math.IsInf(c.VelocityKmS, 0) {
		errs = append(errs, fmt.Errorf("velocity must be a positive number of km/s, got %v", c.VelocityKmS))
	}
	if math.IsNaN(c.FlashHeightM) || math.IsInf(c.FlashHeightM, 0) {
		errs = append(errs, fmt.Errorf("flash height must be a finite number of meters, got %v", c.FlashHeightM))
	}
	if !(c.Model.Aperture() > 0) {
		errs = append(errs, errors.New("radiometric model is not initialized"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

// DerivedSample holds the values computed for one glm.Sample.
type DerivedSample struct {
	Index       int
	Time        time.Time
	TimeS       float64 // seconds since the Unix epoch
	ElapsedS    float64 // seconds since the first sample
	RangeKm     float64
	RawMag      float64
	Corrections []correction.Result
}

// Corrected returns the value of the named correction stage.
func (d DerivedSample) Corrected(stage string) (float64, bool) {
	for _, r := range d.Corrections {
		if r.Stage == stage {
			return r.Value, true
		}
	}
	return 0, false
}

// Result is the complete output of a pipeline run.
type Result struct {
	Event     *glm.Event
	Config    RunConfig
	Satellite transform.PositionECEF
	// Samples is one-to-one with Event.Samples, in the same order.
	Samples []DerivedSample
	// Advisories counts, per stage, the samples corrected outside the calibrated range.
	Advisories map[string]int
}

// Peak returns the brightest (most negative) raw magnitude and its sample index.
func (r *Result) Peak() (float64, int) {
	best, idx := math.Inf(1), -1
	for i, s := range r.Samples {
		if s.RawMag < best {
			best, idx = s.RawMag, i
		}
	}
	return best, idx
}

// SampleError is the failure of a single sample.
type SampleError struct {
	Index  int
	TimeMS int64
	Err    error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sample %d (time %d ms): %v", e.Index, e.TimeMS, e.Err)
}

func (e *SampleError) Unwrap() error { return e.Err }
