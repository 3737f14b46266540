package output

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/star/glmag/internal/lightcurve"
)

// LegendLabel is the legend entry of the light-curve series.
const LegendLabel = "GLM lightcurve in mag"

// ChartOptions controls chart rendering.
type ChartOptions struct {
	// MagRange is {faint, bright}. Brighter (more negative) magnitudes are drawn higher.
	MagRange [2]float64
	Title    string
	Width    vg.Length
	Height   vg.Length
}

// DefaultChartOptions matches the published light-curve plots.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		MagRange: [2]float64{-14, -26},
		Width:    10 * vg.Inch,
		Height:   6 * vg.Inch,
	}
}

var chartFormats = map[string]bool{".png": true, ".svg": true, ".pdf": true}

// ChartPoints returns elapsed seconds against raw magnitude, one point per sample.
func ChartPoints(res *lightcurve.Result) plotter.XYs {
	pts := make(plotter.XYs, len(res.Samples))
	for i, d := range res.Samples {
		pts[i].X = d.ElapsedS
		pts[i].Y = d.RawMag
	}
	return pts
}

// NewChart builds the light-curve plot: a red line with circle markers and an
// inverted magnitude axis limited to opts.MagRange.
func NewChart(res *lightcurve.Result, opts ChartOptions) (*plot.Plot, error) {
	if res == nil || len(res.Samples) == 0 {
		return nil, errors.New("no light curve to plot")
	}
	lo, hi := opts.MagRange[0], opts.MagRange[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == hi {
		return nil, fmt.Errorf("magnitude range %v is empty", opts.MagRange)
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "time [s]"
	p.Y.Label.Text = "mag"

	line, points, err := plotter.NewLinePoints(ChartPoints(res))
	if err != nil {
		return nil, fmt.Errorf("building light-curve series: %w", err)
	}
	red := color.RGBA{R: 255, A: 255}
	line.Color = red
	points.Color = red
	points.Shape = draw.CircleGlyph{}

	p.Add(plotter.NewGrid(), line, points)
	p.Legend.Add(LegendLabel, line, points)
	p.Legend.Top = true
	p.Legend.Left = true

	// Set after Add, which widens the axes to the data.
	p.Y.Min = lo
	p.Y.Max = hi
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	return p, nil
}

// RenderChart draws the light curve to path. The format follows the extension
// (.png, .svg or .pdf).
func RenderChart(path string, res *lightcurve.Result, opts ChartOptions) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !chartFormats[ext] {
		return fmt.Errorf("unsupported chart format %q for %s", ext, path)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		def := DefaultChartOptions()
		opts.Width, opts.Height = def.Width, def.Height
	}

	p, err := NewChart(res, opts)
	if err != nil {
		return err
	}
	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("saving chart %s: %w", path, err)
	}
	return nil
}
