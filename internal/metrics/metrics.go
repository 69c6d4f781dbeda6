// Package metrics owns the Prometheus registry and the service's collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	uploads         prometheus.Counter
	uploadBytes     prometheus.Counter
	enrichmentJobs  *prometheus.CounterVec
	storageCleanups *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfshelf",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdfshelf",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfshelf",
			Name:      "document_uploads_total",
			Help:      "Documents stored successfully.",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfshelf",
			Name:      "document_upload_bytes_total",
			Help:      "Bytes of documents stored successfully.",
		}),
		enrichmentJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfshelf",
			Name:      "enrichment_jobs_total",
			Help:      "Background enrichment jobs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		storageCleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfshelf",
			Name:      "storage_cleanups_total",
			Help:      "Stored object removals by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.uploads,
		m.uploadBytes,
		m.enrichmentJobs,
		m.storageCleanups,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.uploads.Inc()
	m.uploadBytes.Add(float64(size))
}

func (m *Metrics) ObserveJob(kind, outcome string) {
	if m == nil {
		return
	}
	m.enrichmentJobs.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveCleanup(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.storageCleanups.WithLabelValues(outcome).Inc()
}
