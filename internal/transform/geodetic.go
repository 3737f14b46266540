package transform

import (
	"fmt"
	"math"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84B  = wgs84A * (1 - wgs84F) // semi-minor axis (meters)
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// SemiMajorAxis and SemiMinorAxis expose the WGS-84 axes in meters.
const (
	SemiMajorAxis = wgs84A
	SemiMinorAxis = wgs84B
)

// PositionECEF is a point in the Earth-centered, Earth-fixed frame, in meters.
type PositionECEF struct {
	X, Y, Z float64
}

// GeodeticPoint holds a geodetic position (latitude/longitude in degrees, height in meters
// above the WGS-84 ellipsoid).
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// GeodeticToECEF converts a geodetic longitude/latitude (degrees) and height above the
// WGS-84 ellipsoid (meters) to ECEF meters.
//
// NaN or Inf input is not trapped; it propagates into the result. Use CheckFinite on the
// output where a bad coordinate must be reported.
func GeodeticToECEF(lonDeg, latDeg, heightM float64) PositionECEF {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return PositionECEF{
		X: (N + heightM) * cosLat * math.Cos(lon),
		Y: (N + heightM) * cosLat * math.Sin(lon),
		Z: ((wgs84B*wgs84B)/(wgs84A*wgs84A)*N + heightM) * sinLat,
	}
}

// ECEFToGeodetic converts ECEF coordinates (meters) to geodetic coordinates
// using the iterative Bowring method. Converges in a few iterations, including
// at geostationary distances.
func ECEFToGeodetic(pos PositionECEF) GeodeticPoint {
	x, y, z := pos.X, pos.Y, pos.Z
	lon := math.Atan2(y, x)

	p := math.Sqrt(x*x + y*y)

	// Initial estimate using Bowring's method.
	lat := math.Atan2(z, p*(1-wgs84E2))

	for i := 0; i < 8; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltM:   alt,
	}
}

// RangeKm returns the straight-line distance between two ECEF positions in kilometers.
func RangeKm(a, b PositionECEF) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx+dy*dy+dz*dz) / 1000.0
}

// NumericError reports a non-finite coordinate produced from malformed geodetic input.
type NumericError struct {
	Field string
	Value float64
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("non-finite %s coordinate: %v", e.Field, e.Value)
}

// CheckFinite returns a *NumericError if any component of pos is NaN or Inf.
func CheckFinite(pos PositionECEF) error {
	for _, c := range []struct {
		field string
		v     float64
	}{{"x", pos.X}, {"y", pos.Y}, {"z", pos.Z}} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return &NumericError{Field: c.field, Value: c.v}
		}
	}
	return nil
}
