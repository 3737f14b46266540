// Package correction holds the empirical magnitude corrections layered on top of the raw
// radiometric magnitude. Each correction is a Stage; a Chain applies a configured set of
// stages to the same raw magnitude, so stages never feed each other.
package correction

import (
	"fmt"
	"strings"

	"github.com/star/glmag/internal/radiometry"
)

// Input carries everything a stage may depend on for one sample.
type Input struct {
	Velocity   float64 // assumed meteor velocity, km/s
	Energy     float64 // joules
	DistanceKm float64 // flash-to-satellite range
	HeightKm   float64 // flash height above the ellipsoid
	Raw        float64 // uncorrected absolute magnitude
}

// Stage is one magnitude correction.
type Stage interface {
	// Name is the stage identifier used in configuration.
	Name() string
	// Column is the output table column the corrected magnitude is written to.
	Column() string
	Apply(in Input) (float64, error)
}

// Advisor is implemented by stages whose result is only trustworthy inside a limited
// input range. Advise returns human-readable warnings; it never blocks the result.
type Advisor interface {
	Advise(in Input) []string
}

// Result is the output of one stage for one sample.
type Result struct {
	Stage  string
	Column string
	Value  float64
}

// Chain is an ordered, immutable set of stages.
type Chain struct {
	stages []Stage
}

// NewChain returns a chain over a copy of stages. Stage names must be unique.
func NewChain(stages ...Stage) (Chain, error) {
	seen := make(map[string]bool, len(stages))
	vs := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if seen[s.Name()] {
			return Chain{}, fmt.Errorf("duplicate correction stage %q", s.Name())
		}
		seen[s.Name()] = true
		vs = append(vs, s)
	}
	return Chain{stages: vs}, nil
}

// DefaultChain returns the spectral, non-flare and flare corrections for the given model.
func DefaultChain(model radiometry.Model) Chain {
	c, _ := NewChain(Spectral{Model: model}, Altitude{Model: NonFlare}, Altitude{Model: Flare})
	return c
}

// Stages returns the stages in application order.
func (c Chain) Stages() []Stage {
	vs := make([]Stage, len(c.stages))
	copy(vs, c.stages)
	return vs
}

// Columns returns the output column of every stage, in order.
func (c Chain) Columns() []string {
	cs := make([]string, len(c.stages))
	for i, s := range c.stages {
		cs[i] = s.Column()
	}
	return cs
}

// Apply runs every stage against in. The first failing stage aborts the chain.
func (c Chain) Apply(in Input) ([]Result, error) {
	rs := make([]Result, 0, len(c.stages))
	for _, s := range c.stages {
		v, err := s.Apply(in)
		if err != nil {
			return nil, fmt.Errorf("%s correction: %w", s.Name(), err)
		}
		rs = append(rs, Result{Stage: s.Name(), Column: s.Column(), Value: v})
	}
	return rs, nil
}

// Advisory is one warning raised by a stage for one sample.
type Advisory struct {
	Stage   string
	Message string
}

// Advise collects the warnings of every stage that implements Advisor.
func (c Chain) Advise(in Input) []Advisory {
	var as []Advisory
	for _, s := range c.stages {
		a, ok := s.(Advisor)
		if !ok {
			continue
		}
		for _, msg := range a.Advise(in) {
			as = append(as, Advisory{Stage: s.Name(), Message: msg})
		}
	}
	return as
}

// ParseStages builds a chain from a comma separated list of stage names
// ("spectral", "nonflare", "flare"). An empty list yields the default chain.
func ParseStages(list string, model radiometry.Model) (Chain, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return DefaultChain(model), nil
	}
	var stages []Stage
	for _, name := range strings.Split(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
			continue
		case spectralName:
			stages = append(stages, Spectral{Model: model})
		default:
			am, err := ParseAltitudeModel(name)
			if err != nil {
				return Chain{}, fmt.Errorf("unknown correction stage %q", name)
			}
			stages = append(stages, Altitude{Model: am})
		}
	}
	return NewChain(stages...)
}
