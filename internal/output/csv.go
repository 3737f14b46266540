// Package output writes a computed light curve as a table and a chart.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/star/glmag/internal/correction"
	"github.com/star/glmag/internal/lightcurve"
)

// Derived column names, in output order. The correction columns follow.
const (
	ColumnTimeS    = "time (s)"
	ColumnDatetime = "datetime"
	ColumnElapsed  = "elapsed (s)"
	ColumnRange    = "meteor_to_GLM_dist_(km)"
	ColumnMag      = "mag"

	// ColumnLegacyFlare repeats the flare correction under the name older tools expect.
	ColumnLegacyFlare = "mag_BHFcorr"
)

// DatetimeLayout is the UTC timestamp format of the datetime column.
const DatetimeLayout = "2006-01-02T15:04:05.000Z07:00"

// CSVOptions controls optional output columns.
type CSVOptions struct {
	// LegacyColumns appends mag_BHFcorr, a copy of the flare correction.
	LegacyColumns bool
}

// Header returns the output header for res: the input columns, then the derived ones.
func Header(res *lightcurve.Result, opts CSVOptions) []string {
	h := make([]string, 0, len(res.Event.Columns)+8)
	h = append(h, res.Event.Columns...)
	h = append(h, ColumnTimeS, ColumnDatetime, ColumnElapsed, ColumnRange, ColumnMag)
	h = append(h, res.Config.Chain.Columns()...)
	if legacyFlare(res, opts) {
		h = append(h, ColumnLegacyFlare)
	}
	return h
}

func legacyFlare(res *lightcurve.Result, opts CSVOptions) bool {
	if !opts.LegacyColumns {
		return false
	}
	for _, s := range res.Config.Chain.Stages() {
		if s.Name() == correction.Flare.String() {
			return true
		}
	}
	return false
}

// WriteCSV writes one row per sample, in acquisition order. Input fields are copied
// verbatim.
func WriteCSV(w io.Writer, res *lightcurve.Result, opts CSVOptions) error {
	if res == nil || res.Event == nil {
		return errors.New("no light curve to write")
	}
	if len(res.Samples) != len(res.Event.Samples) {
		return fmt.Errorf("light curve has %d samples, event has %d", len(res.Samples), len(res.Event.Samples))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header(res, opts)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	legacy := legacyFlare(res, opts)
	flare := correction.Flare.String()
	for i, d := range res.Samples {
		rec := make([]string, 0, len(res.Event.Columns)+8)
		rec = append(rec, res.Event.Samples[i].Record...)
		rec = append(rec,
			formatFloat(d.TimeS),
			d.Time.UTC().Format(DatetimeLayout),
			formatFloat(d.ElapsedS),
			formatFloat(d.RangeKm),
			formatFloat(d.RawMag),
		)
		for _, c := range d.Corrections {
			rec = append(rec, formatFloat(c.Value))
		}
		if legacy {
			v, _ := d.Corrected(flare)
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing sample %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the table to path, replacing any existing file.
func WriteCSVFile(path string, res *lightcurve.Result, opts CSVOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteCSV(f, res, opts); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// formatFloat uses the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
