package glm

import (
	"fmt"
	"time"
)

// SatelliteGeometry is the sub-satellite point and height of the mapper for one event.
type SatelliteGeometry struct {
	LatDeg  float64
	LonDeg  float64
	HeightM float64 // above the ellipsoid, meters
}

func (g SatelliteGeometry) String() string {
	return fmt.Sprintf("%.4f/%.4f/%.1f km", g.LatDeg, g.LonDeg, g.HeightM/1000)
}

// Sample is one GLM detection in acquisition order.
type Sample struct {
	TimeMS  int64 // milliseconds since the Unix epoch
	LatDeg  float64
	LonDeg  float64
	EnergyJ float64

	// Record holds the raw CSV fields of the row, in Event.Columns order.
	Record []string
}

// Time returns the sample timestamp in UTC.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.TimeMS).UTC()
}

// Event is a parsed GLM export for a single flash/meteor event.
type Event struct {
	// Metadata holds the '#' header lines split on commas, marker stripped.
	Metadata  [][]string
	Satellite SatelliteGeometry
	Columns   []string
	Samples   []Sample
}

// Start returns the timestamp of the first sample.
func (e *Event) Start() time.Time {
	if len(e.Samples) == 0 {
		return time.Time{}
	}
	return e.Samples[0].Time()
}

// ParseError reports malformed or missing input. Line is 1-based within the file;
// zero when the problem is not tied to a line.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
