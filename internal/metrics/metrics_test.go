package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPipeline(t *testing.T) {
	okBefore := testutil.ToFloat64(samplesTotal.WithLabelValues("ok"))
	failedBefore := testutil.ToFloat64(samplesTotal.WithLabelValues("failed"))

	RecordPipeline(3*time.Millisecond, 7, 2)

	if got := testutil.ToFloat64(samplesTotal.WithLabelValues("ok")) - okBefore; got != 7 {
		t.Errorf("ok samples delta = %v, want 7", got)
	}
	if got := testutil.ToFloat64(samplesTotal.WithLabelValues("failed")) - failedBefore; got != 2 {
		t.Errorf("failed samples delta = %v, want 2", got)
	}
}

func TestRecordRunAndAdvisory(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues("failed"))
	RecordRun(errors.New("boom"))
	if got := testutil.ToFloat64(runsTotal.WithLabelValues("failed")) - before; got != 1 {
		t.Errorf("failed runs delta = %v, want 1", got)
	}

	before = testutil.ToFloat64(advisoriesTotal.WithLabelValues("flare"))
	IncAdvisory("flare")
	IncAdvisory("flare")
	if got := testutil.ToFloat64(advisoriesTotal.WithLabelValues("flare")) - before; got != 2 {
		t.Errorf("advisories delta = %v, want 2", got)
	}

	SetPeakMagnitude(-21.5)
	if got := testutil.ToFloat64(peakMagnitude); got != -21.5 {
		t.Errorf("peak magnitude = %v, want -21.5", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	RecordRun(nil)

	path := filepath.Join(t.TempDir(), "glmag.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, name := range []string{"glmag_runs_total", "glmag_peak_raw_magnitude"} {
		if !strings.Contains(text, name) {
			t.Errorf("textfile missing %s:\n%s", name, text)
		}
	}
	if strings.Contains(text, "go_goroutines") {
		t.Error("textfile should not carry Go runtime collectors")
	}
}
