package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the portal's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	notificationsSent         *prometheus.CounterVec
	notificationsDeadLettered *prometheus.CounterVec
	notificationQueueDepth    prometheus.Gauge

	rateLimited *prometheus.CounterVec
}

// New registers the collectors on reg. Pass a fresh prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "nagarseva_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nagarseva_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nagarseva_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		notificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nagarseva_notifications_sent_total",
			Help: "Notification emails accepted by the mail server.",
		}, []string{"kind"}),
		notificationsDeadLettered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nagarseva_notifications_dead_lettered_total",
			Help: "Notification emails that were dropped.",
		}, []string{"kind", "reason"}),
		notificationQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "nagarseva_notification_queue_depth",
			Help: "Notifications waiting for a worker.",
		}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nagarseva_rate_limited_total",
			Help: "Requests rejected by rate limiting.",
		}, []string{"purpose"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Instrument records request count, latency and in-flight gauge. The route
// label is the chi pattern so path parameters don't explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, routePattern(r), strconv.Itoa(status)}

		m.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(labels...).Inc()
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (m *Metrics) NotificationSent(kind string) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) NotificationDeadLettered(kind, reason string) {
	if m == nil {
		return
	}
	m.notificationsDeadLettered.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.notificationQueueDepth.Set(float64(n))
}

func (m *Metrics) RateLimited(purpose string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(purpose).Inc()
}
