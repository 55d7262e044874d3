package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry so several relays can run in one test
// binary. Every method is safe on a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Connections    prometheus.Gauge
	Boards         prometheus.Gauge
	Frames         *prometheus.CounterVec
	Evictions      prometheus.Counter
	BoardUpdates   *prometheus.CounterVec
	RejectedFields *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
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
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections",
		}),
		Boards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boards",
			Help:      "Boards held in memory",
		}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_published_total",
			Help:      "Frames accepted by subscriber outboxes",
		}, []string{"event"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriber_evictions_total",
			Help:      "Subscribers dropped for a full outbox",
		}),
		BoardUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "board_updates_total",
			Help:      "Applied board patches",
		}, []string{"source"}),
		RejectedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_fields_total",
			Help:      "Patch fields rejected for a malformed value",
		}, []string{"field"}),
	}
	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Connections,
		c.Boards,
		c.Frames,
		c.Evictions,
		c.BoardUpdates,
		c.RejectedFields,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) ConnOpened() {
	if c != nil {
		c.Connections.Inc()
	}
}

func (c *Collector) ConnClosed() {
	if c != nil {
		c.Connections.Dec()
	}
}

func (c *Collector) BoardCreated() {
	if c != nil {
		c.Boards.Inc()
	}
}

func (c *Collector) Published(event string, n int) {
	if c != nil && n > 0 {
		c.Frames.WithLabelValues(event).Add(float64(n))
	}
}

func (c *Collector) Evicted(string) {
	if c != nil {
		c.Evictions.Inc()
	}
}

func (c *Collector) BoardUpdated(source string) {
	if c != nil {
		c.BoardUpdates.WithLabelValues(source).Inc()
	}
}

func (c *Collector) Rejected(fields []string) {
	if c == nil {
		return
	}
	for _, f := range fields {
		c.RejectedFields.WithLabelValues(f).Inc()
	}
}
