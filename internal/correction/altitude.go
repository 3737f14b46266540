package correction

import (
	"fmt"
	"math"
	"strings"
)

// AltitudeModel selects the typical-altitude baseline of the altitude correction.
type AltitudeModel int

const (
	NonFlare AltitudeModel = iota
	Flare
)

// Calibrated range of raw magnitudes for the altitude correction. Outside it the
// correction tends to overcorrect.
const (
	BrightestCalibrated = -15.0
	FaintestCalibrated  = -8.0
	// MaxBaselineOffsetKm is how far the flash height may sit from the typical
	// altitude before the correction is flagged.
	MaxBaselineOffsetKm = 20.0
)

func (m AltitudeModel) String() string {
	switch m {
	case NonFlare:
		return "nonflare"
	case Flare:
		return "flare"
	default:
		return fmt.Sprintf("AltitudeModel(%d)", int(m))
	}
}

// ParseAltitudeModel accepts "nonflare"/"non-flare"/"hn" and "flare"/"hf".
func ParseAltitudeModel(s string) (AltitudeModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nonflare", "non-flare", "hn":
		return NonFlare, nil
	case "flare", "hf":
		return Flare, nil
	}
	return 0, fmt.Errorf("unknown altitude model %q", s)
}

// Baseline returns the typical altitude in km for velocity v (km/s).
//
//	HN = 0.82·v + 34.0 (non-flare)
//	HF = 0.37·v + 61.4 (flare)
func (m AltitudeModel) Baseline(v float64) float64 {
	if m == Flare {
		return 0.37*v + 61.4
	}
	return 0.82*v + 34.0
}

// Slope returns the magnitude change per km of height above the baseline.
func (m AltitudeModel) Slope() float64 {
	if m == Flare {
		return 0.10
	}
	return 0.14
}

// Altitude corrects the raw magnitude for flash height relative to the typical altitude
// of a meteor with the assumed velocity. It always applies to the raw magnitude.
type Altitude struct {
	Model AltitudeModel
}

func (a Altitude) Name() string { return a.Model.String() }

func (a Altitude) Column() string {
	if a.Model == Flare {
		return "mag_HFcorr"
	}
	return "mag_HNcorr"
}

func (a Altitude) Apply(in Input) (float64, error) {
	return in.Raw + a.Model.Slope()*(in.HeightKm-a.Model.Baseline(in.Velocity)), nil
}

// Advise flags raw magnitudes outside [−15, −8] and heights far from the baseline.
func (a Altitude) Advise(in Input) []string {
	var ws []string
	if in.Raw < BrightestCalibrated || in.Raw > FaintestCalibrated {
		ws = append(ws, fmt.Sprintf("%s: raw magnitude %.2f outside calibrated range [%.0f, %.0f], correction may overcorrect",
			a.Name(), in.Raw, BrightestCalibrated, FaintestCalibrated))
	}
	base := a.Model.Baseline(in.Velocity)
	if math.Abs(in.HeightKm-base) > MaxBaselineOffsetKm {
		ws = append(ws, fmt.Sprintf("%s: height %.1f km is %.1f km from typical altitude %.1f km",
			a.Name(), in.HeightKm, in.HeightKm-base, base))
	}
	return ws
}
