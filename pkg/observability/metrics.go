package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bfdb/domain/events"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Domain metrics, driven by published events
	NodesCreated prometheus.Counter
	NodesUpdated prometheus.Counter
	NodesDeleted prometheus.Counter
	EdgesCreated prometheus.Counter
	EdgesDeleted prometheus.Counter

	// Backend metrics
	BackendOperations *prometheus.CounterVec
	BackendDuration   *prometheus.HistogramVec

	// Bus metrics
	BusEvents   *prometheus.CounterVec
	BusDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		NodesCreated: counter("nodes_created_total", "Total number of nodes created"),
		NodesUpdated: counter("nodes_updated_total", "Total number of nodes updated"),
		NodesDeleted: counter("nodes_deleted_total", "Total number of nodes deleted"),
		EdgesCreated: counter("edges_created_total", "Total number of edges created"),
		EdgesDeleted: counter("edges_deleted_total", "Total number of edges deleted"),
		BackendOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_operations_total",
			Help:      "Total number of storage backend operations",
		}, []string{"backend", "operation", "status"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_operation_duration_seconds",
			Help:      "Storage backend operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		BusEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_total",
			Help:      "Command and query bus events by metric and message type",
		}, []string{"metric", "type"}),
		BusDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bus_duration_seconds",
			Help:      "Command and query handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"metric", "type"}),
		CacheHits:   counter("cache_hits_total", "Total number of node cache hits"),
		CacheMisses: counter("cache_misses_total", "Total number of node cache misses"),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.NodesCreated,
		c.NodesUpdated,
		c.NodesDeleted,
		c.EdgesCreated,
		c.EdgesDeleted,
		c.BackendOperations,
		c.BackendDuration,
		c.BusEvents,
		c.BusDuration,
		c.CacheHits,
		c.CacheMisses,
	)
	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordBackendOperation records one storage call
func (c *Collector) RecordBackendOperation(backend, operation, status string, duration time.Duration) {
	c.BackendOperations.WithLabelValues(backend, operation, status).Inc()
	c.BackendDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordEvent bumps the domain counter matching the event type
func (c *Collector) RecordEvent(event events.DomainEvent) {
	switch event.GetEventType() {
	case events.TypeNodeCreated:
		c.NodesCreated.Inc()
	case events.TypeNodeUpdated:
		c.NodesUpdated.Inc()
	case events.TypeNodeDeleted:
		c.NodesDeleted.Inc()
	case events.TypeEdgeCreated:
		c.EdgesCreated.Inc()
	case events.TypeEdgeDeleted:
		c.EdgesDeleted.Inc()
	}
}

func (c *Collector) RecordCacheHit()  { c.CacheHits.Inc() }
func (c *Collector) RecordCacheMiss() { c.CacheMisses.Inc() }

// Increment counts a bus event such as query_count or query_errors
func (c *Collector) Increment(metric, label string) {
	c.BusEvents.WithLabelValues(metric, label).Inc()
}

// StartTimer starts a bus duration timer; call Stop on the result
func (c *Collector) StartTimer(metric, label string) *Timer {
	return &Timer{
		observer: c.BusDuration.WithLabelValues(metric, label),
		start:    time.Now(),
	}
}

// Timer observes elapsed time into a histogram once stopped
type Timer struct {
	observer prometheus.Observer
	start    time.Time
}

// Stop records the elapsed time
func (t *Timer) Stop() {
	t.observer.Observe(time.Since(t.start).Seconds())
}
