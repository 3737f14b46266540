// Package glm reads GLM (Geostationary Lightning Mapper) event exports: a block of
// '#'-prefixed metadata lines followed by a CSV table of detections.
package glm

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Column names required in the data table. Matching is case-insensitive.
const (
	ColumnTime      = "time (ms)"
	ColumnLatitude  = "latitude"
	ColumnLongitude = "longitude"
	ColumnEnergy    = "energy (joules)"
)

// DefaultGeometryKey is the metadata key fragment that marks the satellite geometry line.
const DefaultGeometryKey = "satellite"

var (
	// lat/lon/distance, distance carrying a unit suffix, e.g. "0.0/-75.2/35786.0 km".
	geometryPattern = regexp.MustCompile(`^\s*([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)\s*/\s*([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)\s*/\s*(.*\d.*)$`)
	// First unsigned number of the distance token; interpreted as kilometers.
	numberPattern = regexp.MustCompile(`\d*\.?\d+`)
)

// Options controls how the metadata block is interpreted.
type Options struct {
	// GeometryKey selects the metadata line carrying satellite geometry by a
	// case-insensitive fragment of its key. Empty means DefaultGeometryKey, with a
	// fallback to the first line whose value has the lat/lon/distance shape.
	GeometryKey string
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path string, opts Options, logger *slog.Logger) (*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening GLM file: %w", err)
	}
	defer f.Close()

	ev, err := Parse(f, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return ev, nil
}

// Parse reads a GLM export from r. Any malformed header, column set or row is a
// *ParseError; nothing is skipped.
func Parse(r io.Reader, opts Options, logger *slog.Logger) (*Event, error) {
	br := bufio.NewReader(r)

	var (
		meta   [][]string
		first  string
		lineNo int
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading GLM data: %w", err)
		}
		if line == "" && err != nil {
			break
		}
		lineNo++
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			meta = append(meta, splitMetadata(trimmed[1:]))
		case trimmed == "":
			// Blank lines inside the header block are ignored.
		default:
			first = line
		}
		if first != "" || err != nil {
			break
		}
	}
	headerLines := lineNo - 1

	sat, err := findGeometry(meta, opts.GeometryKey)
	if err != nil {
		return nil, err
	}

	if first == "" {
		return nil, &ParseError{Field: "columns", Err: errors.New("missing column header row")}
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(first), br))
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	columns, err := cr.Read()
	if err != nil {
		return nil, csvError(err, headerLines)
	}
	for i := range columns {
		columns[i] = strings.TrimSpace(columns[i])
	}

	idx, err := columnIndex(columns)
	if err != nil {
		return nil, &ParseError{Line: headerLines + 1, Field: "columns", Err: err}
	}

	var samples []Sample
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err, headerLines)
		}
		line, _ := cr.FieldPos(0)
		s, err := parseSample(row, idx)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Line = headerLines + line
			}
			return nil, err
		}
		if n := len(samples); n > 0 && s.TimeMS < samples[n-1].TimeMS {
			logger.Warn("sample timestamp earlier than previous, keeping acquisition order",
				"line", headerLines+line,
				"time_ms", s.TimeMS,
				"previous_ms", samples[n-1].TimeMS,
			)
		}
		samples = append(samples, s)
	}

	if len(samples) == 0 {
		return nil, &ParseError{Field: "samples", Err: errors.New("no data rows")}
	}

	logger.Debug("parsed GLM export",
		"component", "glm",
		"metadata_lines", len(meta),
		"samples", len(samples),
		"satellite", sat.String(),
	)

	return &Event{
		Metadata:  meta,
		Satellite: sat,
		Columns:   columns,
		Samples:   samples,
	}, nil
}

func splitMetadata(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// findGeometry locates the satellite geometry line by key rather than by position.
func findGeometry(meta [][]string, key string) (SatelliteGeometry, error) {
	explicit := key != ""
	if !explicit {
		key = DefaultGeometryKey
	}
	key = strings.ToLower(key)

	fallback := -1
	for i, fields := range meta {
		if len(fields) < 2 || !geometryPattern.MatchString(fields[1]) {
			continue
		}
		if strings.Contains(strings.ToLower(fields[0]), key) {
			return parseGeometry(fields[1], i+1)
		}
		if fallback < 0 {
			fallback = i
		}
	}
	if !explicit && fallback >= 0 {
		return parseGeometry(meta[fallback][1], fallback+1)
	}
	return SatelliteGeometry{}, &ParseError{
		Field: "satellite geometry",
		Err:   fmt.Errorf("no metadata line keyed %q with a lat/lon/distance value", key),
	}
}

// parseGeometry parses "lat/lon/distance"; the distance is the first number of the
// third token, in kilometers.
func parseGeometry(value string, line int) (SatelliteGeometry, error) {
	fail := func(err error) (SatelliteGeometry, error) {
		return SatelliteGeometry{}, &ParseError{Line: line, Field: "satellite geometry", Err: err}
	}

	m := geometryPattern.FindStringSubmatch(value)
	if m == nil {
		return fail(fmt.Errorf("value %q is not lat/lon/distance", value))
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fail(fmt.Errorf("latitude: %w", err))
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return fail(fmt.Errorf("longitude: %w", err))
	}
	num := numberPattern.FindString(m[3])
	if num == "" {
		return fail(fmt.Errorf("distance %q has no number", m[3]))
	}
	km, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return fail(fmt.Errorf("distance: %w", err))
	}

	g := SatelliteGeometry{LatDeg: lat, LonDeg: lon, HeightM: km * 1000}
	if math.Abs(lat) > 90 {
		return fail(fmt.Errorf("latitude %v out of range", lat))
	}
	if !(g.HeightM > 0) {
		return fail(fmt.Errorf("height must be positive, got %v m", g.HeightM))
	}
	return g, nil
}

type columnSet struct {
	time, lat, lon, energy int
}

func columnIndex(names []string) (columnSet, error) {
	pos := make(map[string]int, len(names))
	for i, n := range names {
		n = strings.ToLower(n)
		if _, ok := pos[n]; !ok {
			pos[n] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
		}
		return i
	}
	c := columnSet{
		time:   lookup(ColumnTime),
		lat:    lookup(ColumnLatitude),
		lon:    lookup(ColumnLongitude),
		energy: lookup(ColumnEnergy),
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("missing required column(s) %q in %q", missing, names)
	}
	return c, nil
}

func parseSample(row []string, idx columnSet) (Sample, error) {
	s := Sample{Record: row}

	ms, err := parseMillis(row[idx.time])
	if err != nil {
		return s, &ParseError{Field: ColumnTime, Err: err}
	}
	s.TimeMS = ms

	for _, f := range []struct {
		name string
		i    int
		dst  *float64
	}{
		{ColumnLatitude, idx.lat, &s.LatDeg},
		{ColumnLongitude, idx.lon, &s.LonDeg},
		{ColumnEnergy, idx.energy, &s.EnergyJ},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[f.i]), 64)
		if err != nil {
			return s, &ParseError{Field: f.name, Err: err}
		}
		*f.dst = v
	}
	return s, nil
}

// parseMillis accepts integer milliseconds, or a float rendering of them.
func parseMillis(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return ms, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("timestamp %q is not finite", v)
	}
	r := math.Round(f)
	if r >= math.MaxInt64 || r < math.MinInt64 {
		return 0, fmt.Errorf("timestamp %q is out of range", v)
	}
	return int64(r), nil
}

func csvError(err error, offset int) error {
	var ce *csv.ParseError
	if errors.As(err, &ce) {
		return &ParseError{Line: offset + ce.Line, Field: "row", Err: ce.Err}
	}
	return &ParseError{Field: "row", Err: err}
}
