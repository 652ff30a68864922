// Package metrics provides Prometheus metrics for conversion passes, image
// resolution, content API calls and publishes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pass results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Image outcomes.
const (
	ImageUploaded = "uploaded"
	ImageReused   = "reused"
	ImageSkipped  = "skipped"
)

// Metrics holds the collectors for one process. Each Metrics owns its own
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	PassesTotal   *prometheus.CounterVec
	PassDuration  prometheus.Histogram
	BlocksEmitted prometheus.Counter
	ImagesTotal   *prometheus.CounterVec
	PassesRunning prometheus.Gauge

	ContentAPIRequestsTotal   *prometheus.CounterVec
	ContentAPIRequestDuration *prometheus.HistogramVec

	PublishesTotal *prometheus.CounterVec

	StartTime time.Time
}

// New creates and registers all metrics on a fresh registry, along with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		StartTime: time.Now(),
	}

	m.PassesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docpub_passes_total",
			Help: "Total number of conversion passes",
		},
		[]string{"result"},
	)

	m.PassDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docpub_pass_duration_seconds",
			Help:    "Duration of conversion passes in seconds, including image resolution",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	m.BlocksEmitted = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "docpub_blocks_emitted_total",
			Help: "Total number of content blocks produced by successful passes",
		},
	)

	m.ImagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docpub_images_total",
			Help: "Images seen by the resolver, by outcome",
		},
		[]string{"outcome"},
	)

	m.PassesRunning = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "docpub_passes_running",
			Help: "Number of conversion passes currently running",
		},
	)

	m.ContentAPIRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docpub_content_api_requests_total",
			Help: "Total number of content API operations",
		},
		[]string{"operation", "status"},
	)

	m.ContentAPIRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docpub_content_api_request_duration_seconds",
			Help:    "Duration of content API operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.PublishesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docpub_publishes_total",
			Help: "Total number of publish and preview requests",
		},
		[]string{"kind", "status"},
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
