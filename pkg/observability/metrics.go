package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access control metrics
	AccessDecisionsTotal *prometheus.CounterVec
	InvitationsTotal     *prometheus.CounterVec

	// Blob and report metrics
	BlobOperationsTotal *prometheus.CounterVec
	ReportsTotal        *prometheus.CounterVec
	ReportDuration      *prometheus.HistogramVec

	// Notifier metrics
	RemindersSentTotal prometheus.Counter

	// Database metrics
	DBConnectionsOpen prometheus.Gauge
	DBConnectionsIdle prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundwork_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundwork_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundwork_access_decisions_total",
				Help: "Access checks by outcome and grant kind",
			},
			[]string{"outcome", "grant", "required"},
		),
		InvitationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundwork_invitations_total",
				Help: "Invitation operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		BlobOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundwork_blob_operations_total",
				Help: "Blob store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		ReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundwork_reports_total",
				Help: "Generated reports by format and status",
			},
			[]string{"format", "status"},
		),
		ReportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundwork_report_duration_seconds",
				Help:    "Report rendering duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"format"},
		),
		RemindersSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "groundwork_invitation_reminders_sent_total",
				Help: "Expiring invitation reminders sent by the notifier",
			},
		),
		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "groundwork_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "groundwork_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessDecisionsTotal,
		m.InvitationsTotal,
		m.BlobOperationsTotal,
		m.ReportsTotal,
		m.ReportDuration,
		m.RemindersSentTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsIdle,
	)

	return m
}

// ObserveAccessDecision records one access check. A nil receiver is a no-op so
// services can run without metrics in tests.
func (m *Metrics) ObserveAccessDecision(granted bool, grant, required string) {
	if m == nil {
		return
	}
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	if grant == "" {
		grant = "none"
	}
	m.AccessDecisionsTotal.WithLabelValues(outcome, grant, required).Inc()
}

// ObserveInvitation records an invitation operation outcome
func (m *Metrics) ObserveInvitation(operation, outcome string) {
	if m == nil {
		return
	}
	m.InvitationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveBlob records a blob store call
func (m *Metrics) ObserveBlob(operation string, err error) {
	if m == nil {
		return
	}
	m.BlobOperationsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
}

// ObserveReport records a report render
func (m *Metrics) ObserveReport(format string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(format, statusLabel(err)).Inc()
	m.ReportDuration.WithLabelValues(format).Observe(time.Since(started).Seconds())
}

// ObserveReminder counts one reminder
func (m *Metrics) ObserveReminder() {
	if m == nil {
		return
	}
	m.RemindersSentTotal.Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel returns the mux route template so ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, gatherer prometheus.Gatherer) {
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
