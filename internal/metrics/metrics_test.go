package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/complaints/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/complaints/a", "/complaints/b", "/health"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/complaints/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestNotificationCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.NotificationSent("complaint_submitted")
	m.NotificationDeadLettered("complaint_resolved", "queue_full")
	m.NotificationDeadLettered("complaint_resolved", "queue_full")
	m.SetQueueDepth(3)
	m.RateLimited("login")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsSent.WithLabelValues("complaint_submitted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.notificationsDeadLettered.WithLabelValues("complaint_resolved", "queue_full")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.notificationQueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("login")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.NotificationSent("x")
		m.NotificationDeadLettered("x", "y")
		m.SetQueueDepth(1)
		m.RateLimited("login")
	})

	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Instrument(h))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.NotificationSent("complaint_updated")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nagarseva_notifications_sent_total{kind="complaint_updated"} 1`)
}
