// Package propagation places a lightning-mapper satellite from its TLE with SGP4.
package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/glmag/internal/tle"
	"github.com/star/glmag/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, explicit TEME output, and it handles the deep-space (SDP4) branch needed for
// geostationary elements.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. Failures are detected from the output instead (NaN/Inf or an
// implausible radius).

// SGP4Propagator wraps the go-satellite library for a single satellite.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
	name    string
}

// NewSGP4Propagator creates an SGP4 propagator from a parsed TLE entry.
//
// Pre-validates TLE format before passing to the library, because go-satellite
// calls log.Fatal on malformed input (which would kill the process).
func NewSGP4Propagator(entry tle.TLEEntry) (*SGP4Propagator, error) {
	if err := validateTLELines(entry.Line1, entry.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", entry.NORADID, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(entry.Line1), strings.TrimSpace(entry.Line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", entry.NORADID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: entry.NORADID, name: entry.Name}, nil
}

// validateTLELines performs basic format validation on TLE lines.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// NORADID returns the catalog number of the propagated satellite.
func (p *SGP4Propagator) NORADID() int { return p.noradID }

// PositionTEME computes the satellite position (km) in the TEME frame at t.
// go-satellite resolves time to whole seconds.
func (p *SGP4Propagator) PositionTEME(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return transform.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
	}
	return transform.PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z}, nil
}

// PositionAt returns the satellite ECEF position (meters) at t.
func (p *SGP4Propagator) PositionAt(t time.Time) (transform.PositionECEF, error) {
	teme, err := p.PositionTEME(t)
	if err != nil {
		return transform.PositionECEF{}, err
	}

	ecef := transform.TEMEToECEF(teme, t)
	if !transform.ValidateOrbit(ecef) {
		mag := math.Sqrt(ecef.X*ecef.X+ecef.Y*ecef.Y+ecef.Z*ecef.Z) / 1000.0
		return transform.PositionECEF{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", p.noradID, mag)
	}
	return ecef, nil
}

// Geometry returns the geodetic sub-satellite point and height above the ellipsoid at t.
func (p *SGP4Propagator) Geometry(t time.Time) (transform.GeodeticPoint, error) {
	ecef, err := p.PositionAt(t)
	if err != nil {
		return transform.GeodeticPoint{}, err
	}
	return transform.ECEFToGeodetic(ecef), nil
}

// GeometryAt is a convenience for one-shot use: build a propagator for entry and place it at t.
func GeometryAt(entry tle.TLEEntry, t time.Time) (transform.GeodeticPoint, error) {
	p, err := NewSGP4Propagator(entry)
	if err != nil {
		return transform.GeodeticPoint{}, err
	}
	return p.Geometry(t)
}
