package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics owns a registry with the feed, live view and HTTP metrics.
type Metrics struct {
	registry *prometheus.Registry

	feedDeliveries *prometheus.CounterVec
	feedEntries    *prometheus.GaugeVec
	feedFailures   *prometheus.CounterVec
	liveViews      *prometheus.GaugeVec

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	inFlight        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		feedDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "deliveries_total",
			Help:      "Snapshots published by the collection feeds.",
		}, []string{"collection"}),
		feedEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "entries",
			Help:      "Entries in the last published snapshot.",
		}, []string{"collection"}),
		feedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "failures_total",
			Help:      "Failures reported by the collection feeds.",
		}, []string{"collection"}),
		liveViews: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "views",
			Name:      "live",
			Help:      "Open live view streams.",
		}, []string{"collection"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.feedDeliveries,
		m.feedEntries,
		m.feedFailures,
		m.liveViews,
		m.requestDuration,
		m.requestTotal,
		m.inFlight,
	)
	return m
}

func (m *Metrics) ObserveDelivery(c domain.Collection, entries int) {
	m.feedDeliveries.WithLabelValues(c.String()).Inc()
	m.feedEntries.WithLabelValues(c.String()).Set(float64(entries))
}

func (m *Metrics) ObserveFailure(c domain.Collection) {
	m.feedFailures.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) ViewOpened(c domain.Collection) {
	m.liveViews.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) ViewClosed(c domain.Collection) {
	m.liveViews.WithLabelValues(c.String()).Dec()
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection over to websocket upgrades.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records every request by its mux pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rr, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(rr.status)
		m.requestDuration.WithLabelValues(r.Method, route, status).
			Observe(time.Since(start).Seconds())
		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}
