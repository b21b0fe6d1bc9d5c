// Package metrics provides Prometheus instrumentation for fixture generation.
// A run is a short-lived batch job, so metrics are written to a node_exporter
// textfile instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run results used as the "result" label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder holds the collectors of one generator process, registered on a
// private registry.
type Recorder struct {
	registry *prometheus.Registry

	// RunsTotal counts generation runs by result.
	RunsTotal *prometheus.CounterVec

	// FailuresTotal counts failed runs by failure code.
	FailuresTotal *prometheus.CounterVec

	// TokensSigned counts signed tokens.
	TokensSigned prometheus.Counter

	// RunDuration observes run latency in seconds.
	RunDuration prometheus.Histogram

	// EnvironmentValues is the number of variables in the last written file.
	EnvironmentValues prometheus.Gauge

	// LastSuccess is the Unix time of the last successful run.
	LastSuccess prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixturegen_runs_total",
				Help: "Total fixture generation runs",
			},
			[]string{"result"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixturegen_failures_total",
				Help: "Total failed fixture generation runs",
			},
			[]string{"code"},
		),
		TokensSigned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fixturegen_tokens_signed_total",
				Help: "Total tokens signed",
			},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fixturegen_run_duration_seconds",
				Help:    "Fixture generation latency in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
			},
		),
		EnvironmentValues: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fixturegen_environment_values",
				Help: "Number of variables in the last written environment",
			},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fixturegen_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run",
			},
		),
	}
	r.registry.MustRegister(
		r.RunsTotal,
		r.FailuresTotal,
		r.TokensSigned,
		r.RunDuration,
		r.EnvironmentValues,
		r.LastSuccess,
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveSuccess records a successful run that wrote values variables and
// signed tokens tokens.
func (r *Recorder) ObserveSuccess(values, tokens int, d time.Duration, at time.Time) {
	r.RunsTotal.WithLabelValues(ResultSuccess).Inc()
	r.TokensSigned.Add(float64(tokens))
	r.RunDuration.Observe(d.Seconds())
	r.EnvironmentValues.Set(float64(values))
	r.LastSuccess.Set(float64(at.Unix()))
}

// ObserveFailure records a failed run.
func (r *Recorder) ObserveFailure(code string, d time.Duration) {
	r.RunsTotal.WithLabelValues(ResultFailure).Inc()
	r.FailuresTotal.WithLabelValues(code).Inc()
	r.RunDuration.Observe(d.Seconds())
}

// WriteTextfile writes all metrics in the Prometheus text format to path,
// replacing the file atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
