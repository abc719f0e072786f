// Package metrics exposes RegionPulse health and cycle figures to Prometheus.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/regionpulse/internal/aggregate"
	"github.com/jpalmerr/regionpulse/internal/poller"
)

const namespace = "regionpulse"

// Collector records probe outcomes, transitions, cycles and triggers.
// It implements [aggregate.Recorder].
//
// Each Collector owns its registry, so several monitors can run in one
// process without colliding on the global default registry.
type Collector struct {
	registry *prometheus.Registry

	probesTotal      *prometheus.CounterVec
	probeLatency     *prometheus.HistogramVec
	endpointUp       *prometheus.GaugeVec
	regionUptime     *prometheus.GaugeVec
	transitionsTotal *prometheus.CounterVec
	cyclesTotal      prometheus.Counter
	cycleDuration    prometheus.Histogram
	triggersTotal    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// New creates a Collector with every metric registered, plus the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total number of health probes by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)

	c.probeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Latency of successful health probes in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	c.endpointUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_up",
			Help:      "Whether the last probe of an endpoint succeeded (1) or not (0)",
		},
		[]string{"endpoint"},
	)

	c.regionUptime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_uptime_percent",
			Help:      "Percentage of successful checks per region since start",
		},
		[]string{"region"},
	)

	c.transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of online/offline transitions by endpoint",
		},
		[]string{"endpoint", "to"},
	)

	c.cyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of completed polling cycles",
		},
	)

	c.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of completed polling cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.triggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Cycle triggers by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	c.registry.MustRegister(
		c.probesTotal,
		c.probeLatency,
		c.endpointUp,
		c.regionUptime,
		c.transitionsTotal,
		c.cyclesTotal,
		c.cycleDuration,
		c.triggersTotal,
		c.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the registry backing this Collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the Prometheus scrape handler for this Collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveProbe records a single probe outcome.
func (c *Collector) ObserveProbe(endpoint string, res poller.Result) {
	result := "failure"
	up := 0.0
	if res.Reachable {
		result = "success"
		up = 1
		c.probeLatency.WithLabelValues(endpoint).Observe(float64(res.LatencyMs) / 1000)
	}
	c.probesTotal.WithLabelValues(endpoint, result).Inc()
	c.endpointUp.WithLabelValues(endpoint).Set(up)
}

// ObserveTransition records a state change of an endpoint.
func (c *Collector) ObserveTransition(endpoint string, online bool) {
	to := "offline"
	if online {
		to = "online"
	}
	c.transitionsTotal.WithLabelValues(endpoint, to).Inc()
}

// ObserveCycle records a completed cycle and refreshes per-region uptime.
func (c *Collector) ObserveCycle(d time.Duration, snap aggregate.Snapshot) {
	c.cyclesTotal.Inc()
	c.cycleDuration.Observe(d.Seconds())
	for code, r := range snap.Regions {
		c.regionUptime.WithLabelValues(code).Set(r.UptimePct)
	}
}

// ObserveTrigger records a cycle request from source. queued reports whether
// the request scheduled a cycle or was coalesced into one already pending.
func (c *Collector) ObserveTrigger(source string, queued bool) {
	outcome := "coalesced"
	if queued {
		outcome = "queued"
	}
	c.triggersTotal.WithLabelValues(source, outcome).Inc()
}

// Middleware counts requests served by next under the given route label.
func (c *Collector) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		c.httpRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
	})
}

// statusWriter captures the response status code. Unwrap keeps
// http.ResponseController working for streaming handlers behind it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Flush lets streaming handlers detect flush support through the middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
