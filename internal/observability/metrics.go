package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// extraction pipeline.
type Metrics struct {
	SlicesExtracted  prometheus.Counter
	VariablesSkipped prometheus.Counter
	DecodeErrors     *prometheus.CounterVec // labels: backend={wgrib2,native}
	JobsCompleted    prometheus.Counter
	JobsFailed       prometheus.Counter
	JobsInFlight     prometheus.Gauge

	ExtractDuration prometheus.Histogram
	JobDuration     prometheus.Histogram

	ArtifactsWritten *prometheus.CounterVec // labels: format={zarr,netcdf}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SlicesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gdas_prep",
			Name:      "slices_extracted_total",
			Help:      "Total (variable, level set) slices decoded from archive files.",
		}),
		VariablesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gdas_prep",
			Name:      "variables_skipped_total",
			Help:      "Total non-mandatory variables skipped after a decode failure.",
		}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gdas_prep",
			Name:      "decode_errors_total",
			Help:      "Decode failures by backend.",
		}, []string{"backend"}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gdas_prep",
			Name:      "jobs_completed_total",
			Help:      "Extraction jobs that produced an output artifact.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gdas_prep",
			Name:      "jobs_failed_total",
			Help:      "Extraction jobs that failed before writing an artifact.",
		}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gdas_prep",
			Name:      "jobs_in_flight",
			Help:      "Extraction jobs currently running.",
		}),
		ExtractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gdas_prep",
			Name:      "extract_duration_seconds",
			Help:      "Duration of one decoder invocation.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gdas_prep",
			Name:      "job_duration_seconds",
			Help:      "Duration of a complete resolve-extract-assemble-write job.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		ArtifactsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gdas_prep",
			Name:      "artifacts_written_total",
			Help:      "Output artifacts written by format.",
		}, []string{"format"}),
	}

	prometheus.MustRegister(
		m.SlicesExtracted,
		m.VariablesSkipped,
		m.DecodeErrors,
		m.JobsCompleted,
		m.JobsFailed,
		m.JobsInFlight,
		m.ExtractDuration,
		m.JobDuration,
		m.ArtifactsWritten,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SlicesExtracted:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gdas_prep", Name: "slices_extracted_total"}),
		VariablesSkipped: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gdas_prep", Name: "variables_skipped_total"}),
		DecodeErrors:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gdas_prep", Name: "decode_errors_total"}, []string{"backend"}),
		JobsCompleted:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gdas_prep", Name: "jobs_completed_total"}),
		JobsFailed:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gdas_prep", Name: "jobs_failed_total"}),
		JobsInFlight:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "gdas_prep", Name: "jobs_in_flight"}),
		ExtractDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "gdas_prep", Name: "extract_duration_seconds"}),
		JobDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "gdas_prep", Name: "job_duration_seconds"}),
		ArtifactsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gdas_prep", Name: "artifacts_written_total"}, []string{"format"}),
	}
}
