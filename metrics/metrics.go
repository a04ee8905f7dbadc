// Package metrics provides Prometheus instrumentation for the proxy listing service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	// HTTP metrics
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RateLimitedRequests prometheus.Counter

	// Directory scan metrics
	ScansTotal   *prometheus.CounterVec
	ScanDuration *prometheus.HistogramVec
	FilesParsed  *prometheus.CounterVec
	FilesSkipped *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "proxylisting"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "code"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		RateLimitedRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total number of configuration directory scans",
			},
			[]string{"dir"},
		),
		ScanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Configuration directory scan duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"dir"},
		),
		FilesParsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_parsed_total",
				Help:      "Total number of configuration files parsed",
			},
			[]string{"dir"},
		),
		FilesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_skipped_total",
				Help:      "Total number of directory entries skipped as non-regular or unreadable",
			},
			[]string{"dir"},
		),
	}
}

// ObserveScan records one directory scan.
func (m *Metrics) ObserveScan(dir string, parsed, skipped int, elapsed time.Duration) {
	m.ScansTotal.WithLabelValues(dir).Inc()
	m.ScanDuration.WithLabelValues(dir).Observe(elapsed.Seconds())
	m.FilesParsed.WithLabelValues(dir).Add(float64(parsed))
	m.FilesSkipped.WithLabelValues(dir).Add(float64(skipped))
}
