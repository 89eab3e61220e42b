package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	freezesCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "freezes_committed_total",
			Help: "Total number of subscription freezes committed",
		},
	)

	sessionsRescheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_rescheduled_total",
			Help: "Total number of sessions moved to a new slot",
		},
	)

	rescheduleConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reschedule_conflicts_total",
			Help: "Total number of sessions marked for manual rescheduling",
		},
	)

	rescheduleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reschedule_duration_seconds",
			Help:    "Duration of a reschedule batch commit",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	impactAnalyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impact_analyses_total",
			Help: "Total number of impact analyses by mode",
		},
		[]string{"mode", "severity"},
	)

	modificationsRolledBack = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modifications_rolled_back_total",
			Help: "Total number of committed modifications rolled back",
		},
	)

	notificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total number of stakeholder notifications dispatched",
		},
		[]string{"stakeholder", "status"},
	)

	realtimeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Total number of realtime events published per type",
		},
		[]string{"type"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
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

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordFreezeCommitted records a committed freeze
func RecordFreezeCommitted() {
	freezesCommitted.Inc()
}

// RecordReschedule records the outcome of a reschedule batch
func RecordReschedule(moved, conflicts int, duration time.Duration) {
	sessionsRescheduled.Add(float64(moved))
	rescheduleConflicts.Add(float64(conflicts))
	rescheduleDuration.Observe(duration.Seconds())
}

// RecordImpactAnalysis records an impact analysis run
func RecordImpactAnalysis(mode, severity string) {
	impactAnalyses.WithLabelValues(mode, severity).Inc()
}

// RecordRollback records a modification rollback
func RecordRollback() {
	modificationsRolledBack.Inc()
}

// RecordNotification records a dispatched stakeholder notification
func RecordNotification(stakeholder string, success bool) {
	status := "failed"
	if success {
		status = "sent"
	}
	notificationsDispatched.WithLabelValues(stakeholder, status).Inc()
}

// RecordRealtimeEvent records a published realtime event
func RecordRealtimeEvent(eventType string) {
	realtimeEventsPublished.WithLabelValues(eventType).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
