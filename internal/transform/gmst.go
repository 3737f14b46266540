package transform

import (
	"math"
	"time"
)

const (
	// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
	j2000 = 2451545.0
	// unixEpochJD is the Julian Date of 1970-01-01T00:00:00Z, the epoch of GLM timestamps.
	unixEpochJD = 2440587.5
)

// JulianDate converts a UTC time to Julian Date. Leap seconds are ignored, which
// matches how GLM reports time (milliseconds since the Unix epoch).
func JulianDate(t time.Time) float64 {
	ms := float64(t.UnixMilli())
	return unixEpochJD + ms/86400000.0
}

// GMST calculates Greenwich Mean Sidereal Time in radians for a given UTC time.
// IAU-82 model, Vallado Eq 3-47:
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0 and the result is in seconds of time.
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t.UTC()) - j2000) / 36525.0

	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}
