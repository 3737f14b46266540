package correction

import (
	"math"

	"github.com/star/glmag/internal/radiometry"
)

const spectralName = "spectral"

// Spectral corrects for the velocity dependence of the meteor spectrum:
//
//	cmv = −0.022·v + 0.79
//	dmv =  0.102·v − 3.31
//	m'  = m + cmv·log10(E·d²) − cmv·log10(dt·A) + dmv
type Spectral struct {
	Model radiometry.Model
}

func (Spectral) Name() string   { return spectralName }
func (Spectral) Column() string { return "mag_spectral" }

// Coefficients returns cmv and dmv for velocity v (km/s).
func (Spectral) Coefficients(v float64) (cmv, dmv float64) {
	return -0.022*v + 0.79, 0.102*v - 3.31
}

func (s Spectral) Apply(in Input) (float64, error) {
	if err := radiometry.CheckDomain(in.Energy, in.DistanceKm); err != nil {
		return 0, err
	}
	cmv, dmv := s.Coefficients(in.Velocity)
	dtA := s.Model.IntegrationTime() * s.Model.Aperture()
	// Summed left to right from the raw magnitude.
	return in.Raw + cmv*math.Log10(in.Energy*in.DistanceKm*in.DistanceKm) - cmv*math.Log10(dtA) + dmv, nil
}

// SpectralTerm is the additive spectral correction on its own, with both logarithms
// evaluated separately.
func SpectralTerm(cmv, dmv, energy, distanceKm, dtA float64) float64 {
	return cmv*math.Log10(energy*distanceKm*distanceKm) - cmv*math.Log10(dtA) + dmv
}
