// Package metrics provides Prometheus metrics for the mediation adapter
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Ad lifecycle metrics
	LoadsTotal         *prometheus.CounterVec
	ShowsTotal         *prometheus.CounterVec
	InvalidationsTotal *prometheus.CounterVec
	AdEventsTotal      *prometheus.CounterVec
	DroppedEventsTotal *prometheus.CounterVec
	ActivePlacements   prometheus.Gauge
	LoadLatency        *prometheus.HistogramVec

	// Privacy metrics
	ConsentSignals *prometheus.CounterVec

	// Event recorder metrics
	RecorderFlushes *prometheus.CounterVec

	// System metrics
	SizeLimitRejected prometheus.Counter
	AuthFailures      prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses the Prometheus default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "mediation"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		// Request metrics
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		// Ad lifecycle metrics
		LoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_loads_total",
				Help:      "Total ad loads by format and result",
			},
			[]string{"format", "result"},
		),
		ShowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_shows_total",
				Help:      "Total ad shows by format and result",
			},
			[]string{"format", "result"},
		),
		InvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_invalidations_total",
				Help:      "Total ad invalidations by format and result",
			},
			[]string{"format", "result"},
		),
		AdEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_events_total",
				Help:      "Partner events delivered to delegates",
			},
			[]string{"format", "event"},
		),
		DroppedEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_events_dropped_total",
				Help:      "Partner events that were not delivered",
			},
			[]string{"event", "reason"},
		),
		ActivePlacements: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_placements",
				Help:      "Number of placements currently holding an ad",
			},
		),
		LoadLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ad_load_latency_seconds",
				Help:      "Time from load request to partner load result",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"format"},
		),

		// Privacy metrics
		ConsentSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consent_signals_total",
				Help:      "Consent signals received",
			},
			[]string{"type", "has_consent"},
		),

		// Event recorder metrics
		RecorderFlushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_recorder_flushes_total",
				Help:      "Lifecycle event batches flushed to the sink",
			},
			[]string{"status"},
		),

		// System metrics
		SizeLimitRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "size_limit_rejected_total",
				Help:      "Total requests rejected for exceeding size limits",
			},
		),
		AuthFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total requests rejected for a missing or invalid API key",
			},
		),
	}

	// Register all metrics
	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.LoadsTotal,
		m.ShowsTotal,
		m.InvalidationsTotal,
		m.AdEventsTotal,
		m.DroppedEventsTotal,
		m.ActivePlacements,
		m.LoadLatency,
		m.ConsentSignals,
		m.RecorderFlushes,
		m.SizeLimitRejected,
		m.AuthFailures,
	)

	return m
}

// Handler returns the Prometheus HTTP handler for the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a Prometheus HTTP handler serving g
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Middleware returns HTTP middleware that records request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		// Label by route pattern so ad IDs don't explode cardinality
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}

		m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecordLoad records the outcome of a load request
func (m *Metrics) RecordLoad(format, result string) {
	m.LoadsTotal.WithLabelValues(format, result).Inc()
}

// RecordLoadLatency records how long the partner took to resolve a load
func (m *Metrics) RecordLoadLatency(format string, latency time.Duration) {
	m.LoadLatency.WithLabelValues(format).Observe(latency.Seconds())
}

// RecordShow records the outcome of a show request
func (m *Metrics) RecordShow(format, result string) {
	m.ShowsTotal.WithLabelValues(format, result).Inc()
}

// RecordInvalidate records the outcome of an invalidate request
func (m *Metrics) RecordInvalidate(format, result string) {
	m.InvalidationsTotal.WithLabelValues(format, result).Inc()
}

// RecordEvent records a partner event delivered to a delegate
func (m *Metrics) RecordEvent(format, event string) {
	m.AdEventsTotal.WithLabelValues(format, event).Inc()
}

// RecordDroppedEvent records a partner event that was not delivered
func (m *Metrics) RecordDroppedEvent(event, reason string) {
	m.DroppedEventsTotal.WithLabelValues(event, reason).Inc()
}

// SetActivePlacements sets the number of occupied placements
func (m *Metrics) SetActivePlacements(n int) {
	m.ActivePlacements.Set(float64(n))
}

// RecordConsentSignal records a consent signal
func (m *Metrics) RecordConsentSignal(signalType string, hasConsent bool) {
	consent := "no"
	if hasConsent {
		consent = "yes"
	}
	m.ConsentSignals.WithLabelValues(signalType, consent).Inc()
}

// RecordFlush records an event recorder flush
// Implements events.FlushMetrics interface
func (m *Metrics) RecordFlush(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RecorderFlushes.WithLabelValues(status).Inc()
}

// IncSizeLimitRejected increments the size limit rejected counter
// Implements middleware.SizeLimitMetrics interface
func (m *Metrics) IncSizeLimitRejected() {
	m.SizeLimitRejected.Inc()
}

// IncAuthFailures increments the auth failures counter
// Implements middleware.AuthMetrics interface
func (m *Metrics) IncAuthFailures() {
	m.AuthFailures.Inc()
}
