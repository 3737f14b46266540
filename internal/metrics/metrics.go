// Package metrics records run statistics for the light-curve pipeline.
//
// glmag is a batch job, so nothing is served over HTTP; the registry is written once at
// the end of a run in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every glmag collector. It is separate from the default registry so the
// textfile only carries pipeline metrics, not Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glmag_samples_total",
			Help: "Total number of GLM samples processed, by result.",
		},
		[]string{"result"},
	)

	advisoriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glmag_correction_advisories_total",
			Help: "Samples where a correction was applied outside its calibrated range.",
		},
		[]string{"stage"},
	)

	pipelineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glmag_pipeline_duration_seconds",
			Help:    "Duration of the per-sample magnitude computation.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
	)

	peakMagnitude = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "glmag_peak_raw_magnitude",
			Help: "Brightest (most negative) raw absolute magnitude of the last run.",
		},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glmag_runs_total",
			Help: "Pipeline runs by final status.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(samplesTotal)
	Registry.MustRegister(advisoriesTotal)
	Registry.MustRegister(pipelineDurationSeconds)
	Registry.MustRegister(peakMagnitude)
	Registry.MustRegister(runsTotal)
}

// RecordPipeline records one pass of the per-sample map.
func RecordPipeline(duration time.Duration, succeeded, failed int) {
	pipelineDurationSeconds.Observe(duration.Seconds())
	samplesTotal.WithLabelValues("ok").Add(float64(succeeded))
	samplesTotal.WithLabelValues("failed").Add(float64(failed))
}

// IncAdvisory counts one out-of-range correction for stage.
func IncAdvisory(stage string) {
	advisoriesTotal.WithLabelValues(stage).Inc()
}

// SetPeakMagnitude records the brightest raw magnitude of the run.
func SetPeakMagnitude(mag float64) {
	peakMagnitude.Set(mag)
}

// RecordRun counts a finished run. err is the run's final error, if any.
func RecordRun(err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	runsTotal.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry to path in the Prometheus text format.
// The write is atomic, as the textfile collector requires.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
