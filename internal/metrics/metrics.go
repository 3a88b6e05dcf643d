package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the gateway's Prometheus metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry *prometheus.Registry

	documents        *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	fetches          *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	retries          *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	reloads          *prometheus.CounterVec
}

// NewCollector creates a collector backed by its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docgateway_documents_total",
			Help: "Documentation requests by service key, version and outcome.",
		}, []string{"key", "version", "outcome"}),
		documentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docgateway_document_duration_seconds",
			Help:    "Time spent producing a documentation response.",
			Buckets: prometheus.DefBuckets,
		}, []string{"key"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docgateway_fetches_total",
			Help: "Downstream document fetch attempts by host and status code.",
		}, []string{"host", "code"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docgateway_fetch_duration_seconds",
			Help:    "Downstream document fetch latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docgateway_fetch_retries_total",
			Help: "Downstream fetch retries by host.",
		}, []string{"host"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docgateway_circuit_breaker_state",
			Help: "Circuit breaker state per downstream host: 0=closed, 1=half_open, 2=open.",
		}, []string{"host"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docgateway_config_reloads_total",
			Help: "Configuration reloads by result.",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		c.documents,
		c.documentDuration,
		c.fetches,
		c.fetchDuration,
		c.retries,
		c.breakerState,
		c.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveDocument records one documentation request.
func (c *Collector) ObserveDocument(key, version, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.documents.WithLabelValues(key, version, outcome).Inc()
	c.documentDuration.WithLabelValues(key).Observe(d.Seconds())
}

// ObserveFetch records one downstream fetch attempt. code is 0 for
// transport errors.
func (c *Collector) ObserveFetch(host string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.fetches.WithLabelValues(host, strconv.Itoa(code)).Inc()
	c.fetchDuration.WithLabelValues(host).Observe(d.Seconds())
}

// RecordRetry records a retried fetch.
func (c *Collector) RecordRetry(host string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(host).Inc()
}

// SetBreakerState records the breaker state for host.
func (c *Collector) SetBreakerState(host string, state int) {
	if c == nil {
		return
	}
	c.breakerState.WithLabelValues(host).Set(float64(state))
}

// RecordReload records a configuration reload.
func (c *Collector) RecordReload(success bool) {
	if c == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	c.reloads.WithLabelValues(result).Inc()
}
