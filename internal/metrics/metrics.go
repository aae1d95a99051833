// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "farmassist"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Transcription pipeline
	PipelineRuns       *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	RecognizerInFlight prometheus.Gauge
	CleanupErrors      prometheus.Counter

	// Upstream model calls
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	// Advisor cache
	CacheLookups *prometheus.CounterVec

	// HTTP
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the collectors on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcribe_pipeline_runs_total",
			Help:      "Transcription pipeline runs by terminal outcome",
		}, []string{"outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcribe_stage_duration_seconds",
			Help:      "Duration of each transcription pipeline stage",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		RecognizerInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recognizer_in_flight",
			Help:      "Recognizer invocations currently running",
		}),
		CleanupErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcribe_cleanup_errors_total",
			Help:      "Artifact removals that failed",
		}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls to model providers by provider and status",
		}, []string{"provider", "status"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Latency of model provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Advisor cache lookups by result",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
