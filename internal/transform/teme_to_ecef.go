// Package transform provides the coordinate conversions behind the line-of-sight range
// between a lightning-mapper satellite and a flash.
//
// Flash and satellite positions are given as WGS-84 geodetic coordinates and converted to
// ECEF (Earth-Centered Earth-Fixed) meters. When the satellite position comes from a TLE
// instead of the file header, SGP4 output in TEME (True Equator Mean Equinox) is rotated
// into ECEF first.
//
// Method: Simplified Vallado-style rotation using GMST only (TEME -> PEF ~ ECEF).
// Polar motion and the equation of the equinoxes are ignored; at geostationary range that
// amounts to well under a kilometer, far below the resolution of the magnitude model.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// PositionTEME represents a satellite position in the TEME frame, in km.
type PositionTEME struct {
	X, Y, Z float64
}

// TEMEToECEF rotates a TEME position (km) to ECEF (meters) at the given UTC time.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates TEME to ECEF using a precomputed GMST angle (radians).
//
//	r_ECEF = R3(θ) * r_TEME
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	return PositionECEF{
		X: (teme.X*cosG + teme.Y*sinG) * 1000.0,
		Y: (-teme.X*sinG + teme.Y*cosG) * 1000.0,
		Z: teme.Z * 1000.0,
	}
}

// ValidateOrbit checks that an ECEF position is physically reasonable for an
// Earth-orbiting satellite: finite, and between ~6200 km and ~50000 km from the
// geocenter. Geostationary mappers sit at ~42164 km.
func ValidateOrbit(pos PositionECEF) bool {
	if CheckFinite(pos) != nil {
		return false
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)

	const minRadius = 6200.0 * 1000.0
	const maxRadius = 50000.0 * 1000.0

	return mag >= minRadius && mag <= maxRadius
}
