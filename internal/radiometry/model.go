// Package radiometry converts GLM-reported optical energy into absolute meteor magnitude.
//
// The model is calibrated on the 777 nm oxygen line that GLM observes:
//
//	m = a·v − 2.5·log10(E·d²) + 2.5·log10(dt·A) + c
//
// with v the meteor velocity (km/s), E the reported energy (J), d the flash-to-satellite
// range (km), dt the detector integration time (s) and A the effective aperture area.
package radiometry

import (
	"fmt"
	"math"
)

// Defaults for the GLM 777 nm channel.
const (
	DefaultIntegrationTime = 0.002     // seconds per frame
	DefaultLensRadius      = 0.0000558 // effective lens radius
)

// Calibration holds the velocity slope and offset of the 777 nm signal model.
type Calibration struct {
	A float64 // magnitude per km/s
	C float64 // zero point
}

// Calibration777 is the velocity dependence of the 777 nm signal fitted for GLM.
var Calibration777 = Calibration{A: 0.0948, C: -3.5}

// Model is an immutable radiometric model. The zero value is not usable; build with NewModel.
type Model struct {
	cal        Calibration
	dt         float64
	lensRadius float64
	aperture   float64
}

// NewModel builds a model for the given calibration, integration time (s) and lens radius.
func NewModel(cal Calibration, integrationTime, lensRadius float64) (Model, error) {
	if !(integrationTime > 0) {
		return Model{}, fmt.Errorf("integration time must be positive, got %v", integrationTime)
	}
	if !(lensRadius > 0) {
		return Model{}, fmt.Errorf("lens radius must be positive, got %v", lensRadius)
	}
	return Model{
		cal:        cal,
		dt:         integrationTime,
		lensRadius: lensRadius,
		aperture:   math.Pi * lensRadius * lensRadius,
	}, nil
}

// DefaultModel returns the GLM model with the 777 nm calibration.
func DefaultModel() Model {
	m, _ := NewModel(Calibration777, DefaultIntegrationTime, DefaultLensRadius)
	return m
}

func (m Model) Calibration() Calibration { return m.cal }
func (m Model) IntegrationTime() float64 { return m.dt }
func (m Model) LensRadius() float64      { return m.lensRadius }
func (m Model) Aperture() float64        { return m.aperture }

// Magnitude returns the uncorrected absolute magnitude for one sample.
// energy and distanceKm must both be positive and finite, and E·d² must not overflow;
// otherwise a *DomainError is returned.
func (m Model) Magnitude(velocity, energy, distanceKm float64) (float64, error) {
	if err := CheckDomain(energy, distanceKm); err != nil {
		return 0, err
	}
	return m.cal.A*velocity - 2.5*math.Log10(energy*distanceKm*distanceKm) + 2.5*math.Log10(m.dt*m.aperture) + m.cal.C, nil
}

// CheckDomain reports whether energy and distance can enter log10(E·d²).
func CheckDomain(energy, distanceKm float64) error {
	if !(energy > 0) || math.IsInf(energy, 1) {
		return &DomainError{Quantity: "energy", Value: energy}
	}
	if !(distanceKm > 0) || math.IsInf(distanceKm, 1) {
		return &DomainError{Quantity: "distance", Value: distanceKm}
	}
	if ed2 := energy * distanceKm * distanceKm; math.IsInf(ed2, 1) || ed2 == 0 {
		return &DomainError{Quantity: "energy·distance²", Value: ed2}
	}
	return nil
}

// DomainError is returned when a value outside (0, +Inf), or NaN, would reach a logarithm,
// or when a magnitude comes out non-finite.
type DomainError struct {
	Quantity string
	Value    float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s must be positive and finite for magnitude, got %v", e.Quantity, e.Value)
}
