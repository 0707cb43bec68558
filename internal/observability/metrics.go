package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	sequenceConflicts prometheus.Counter
	transitionsTotal  *prometheus.CounterVec
	rendersTotal      *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atelier_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	seqConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atelier_sequence_conflicts_total",
		Help: "Document number allocations retried after a uniqueness conflict.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_document_transitions_total",
		Help: "Applied lifecycle transitions by document family and target status.",
	}, []string{"family", "status"})
	renders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_documents_rendered_total",
		Help: "Rendered document artifacts by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, seqConflicts, transitions, renders)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		sequenceConflicts: seqConflicts,
		transitionsTotal:  transitions,
		rendersTotal:      renders,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// SequenceConflict records a retried document number allocation.
func (m *Metrics) SequenceConflict() {
	if m == nil {
		return
	}
	m.sequenceConflicts.Inc()
}

// TransitionApplied records a successful lifecycle transition.
func (m *Metrics) TransitionApplied(family, status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(family, status).Inc()
}

// RenderCompleted records a document render outcome ("success" or "failure").
func (m *Metrics) RenderCompleted(outcome string) {
	if m == nil {
		return
	}
	m.rendersTotal.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
