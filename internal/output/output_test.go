package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/glmag/internal/correction"
	"github.com/star/glmag/internal/glm"
	"github.com/star/glmag/internal/lightcurve"
	"github.com/star/glmag/internal/radiometry"
)

const export = `# GLM bolide event export
# Satellite lat/lon/alt,0.0/-75.2/35786.0 km
time (ms),latitude,longitude,energy (joules),flag
1642562047000,31.20,-96.40,1.2e-13,a
1642562047002,31.21,-96.41,3.4e-13,b
1642562047020,31.22,-96.42,2.1e-13,c
`

func computeResult(t *testing.T, chain correction.Chain) *lightcurve.Result {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ev, err := glm.Parse(strings.NewReader(export), glm.Options{}, logger)
	require.NoError(t, err)

	model := radiometry.DefaultModel()
	if len(chain.Stages()) == 0 {
		chain = correction.DefaultChain(model)
	}
	p, err := lightcurve.NewPipeline(lightcurve.RunConfig{
		VelocityKmS:  20,
		FlashHeightM: 16000,
		Model:        model,
		Chain:        chain,
		Workers:      2,
	}, logger)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), ev)
	require.NoError(t, err)
	return res
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV(t *testing.T) {
	res := computeResult(t, correction.Chain{})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res, CSVOptions{}))
	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 4)

	assert.Equal(t, []string{
		"time (ms)", "latitude", "longitude", "energy (joules)", "flag",
		"time (s)", "datetime", "elapsed (s)", "meteor_to_GLM_dist_(km)", "mag",
		"mag_spectral", "mag_HNcorr", "mag_HFcorr",
	}, rows[0])

	row := rows[2]
	assert.Equal(t, []string{"1642562047002", "31.21", "-96.41", "3.4e-13", "b"}, row[:5])
	assert.Equal(t, "1642562047.002", row[5])
	assert.Equal(t, "2022-01-19T03:14:07.002Z", row[6])
	assert.Equal(t, "0.002", row[7])

	d := res.Samples[1]
	got := func(i int) float64 {
		v, err := strconv.ParseFloat(row[i], 64)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, d.RangeKm, got(8))
	assert.Equal(t, d.RawMag, got(9))
	for i, c := range d.Corrections {
		assert.Equal(t, c.Value, got(10+i), c.Column)
	}

	assert.Equal(t, "0", rows[1][7])
	assert.Equal(t, "0.02", rows[3][7])
}

func TestWriteCSV_LegacyColumn(t *testing.T) {
	res := computeResult(t, correction.Chain{})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res, CSVOptions{LegacyColumns: true}))
	rows := readCSV(t, buf.Bytes())

	header := rows[0]
	require.Equal(t, ColumnLegacyFlare, header[len(header)-1])
	for _, row := range rows[1:] {
		assert.Equal(t, row[len(row)-2], row[len(row)-1], "legacy column repeats the flare correction")
	}
}

func TestWriteCSV_LegacyColumnNeedsFlareStage(t *testing.T) {
	chain, err := correction.ParseStages("spectral,nonflare", radiometry.DefaultModel())
	require.NoError(t, err)
	res := computeResult(t, chain)

	header := Header(res, CSVOptions{LegacyColumns: true})
	assert.NotContains(t, header, ColumnLegacyFlare)
	assert.Equal(t, "mag_HNcorr", header[len(header)-1])
}

func TestWriteCSV_MismatchedResult(t *testing.T) {
	res := computeResult(t, correction.Chain{})
	res.Samples = res.Samples[:1]
	assert.Error(t, WriteCSV(io.Discard, res, CSVOptions{}))
	assert.Error(t, WriteCSV(io.Discard, nil, CSVOptions{}))
}

func TestWriteCSVFile(t *testing.T) {
	res := computeResult(t, correction.Chain{})
	path := filepath.Join(t.TempDir(), "output.csv")

	require.NoError(t, WriteCSVFile(path, res, CSVOptions{}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, data), 4)

	err = WriteCSVFile(filepath.Join(t.TempDir(), "missing", "output.csv"), res, CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestChartPoints(t *testing.T) {
	res := computeResult(t, correction.Chain{})
	pts := ChartPoints(res)
	require.Equal(t, 3, pts.Len())
	for i, d := range res.Samples {
		x, y := pts.XY(i)
		assert.Equal(t, d.ElapsedS, x)
		assert.Equal(t, d.RawMag, y)
	}
}

func TestNewChart_AxisRange(t *testing.T) {
	res := computeResult(t, correction.Chain{})

	p, err := NewChart(res, DefaultChartOptions())
	require.NoError(t, err)
	assert.Equal(t, -26.0, p.Y.Min)
	assert.Equal(t, -14.0, p.Y.Max)
	assert.Equal(t, "time [s]", p.X.Label.Text)
	assert.Equal(t, "mag", p.Y.Label.Text)

	_, err = NewChart(res, ChartOptions{MagRange: [2]float64{-10, -10}})
	assert.Error(t, err)
}

func TestRenderChart(t *testing.T) {
	res := computeResult(t, correction.Chain{})
	dir := t.TempDir()

	for _, name := range []string{"lightcurve.png", "lightcurve.svg", "lightcurve.pdf"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, RenderChart(path, res, DefaultChartOptions()))
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}

	data, err := os.ReadFile(filepath.Join(dir, "lightcurve.png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRenderChart_UnsupportedFormat(t *testing.T) {
	res := computeResult(t, correction.Chain{})
	err := RenderChart(filepath.Join(t.TempDir(), "lightcurve.gif"), res, DefaultChartOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported chart format")
}
