// Package metrics exposes Prometheus counters and latency histograms for the
// simulated API calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "efsim"

// Recorder observes API calls. Each server owns its own registry so that
// several servers can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	mounts   prometheus.GaugeFunc
}

// New creates a Recorder with a fresh registry. mountTargets, when not nil,
// is sampled at scrape time for the mount target gauge.
func New(mountTargets func() int) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_calls_total",
				Help:      "Count of simulated AWS API calls by service, operation and error code.",
			},
			[]string{"service", "operation", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_call_duration_seconds",
				Help:      "Latency of simulated AWS API calls.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"service", "operation"},
		),
	}
	r.registry.MustRegister(r.calls, r.latency, collectors.NewGoCollector())
	if mountTargets != nil {
		r.mounts = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mount_targets",
				Help:      "Number of mount targets currently defined.",
			},
			func() float64 { return float64(mountTargets()) },
		)
		r.registry.MustRegister(r.mounts)
	}
	return r
}

// Observe records one call. code is the API error code, or "" on success.
func (r *Recorder) Observe(service, operation, code string, d time.Duration) {
	if code == "" {
		code = "OK"
	}
	r.calls.WithLabelValues(service, operation, code).Inc()
	r.latency.WithLabelValues(service, operation).Observe(d.Seconds())
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
