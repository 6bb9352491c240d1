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
}

// NewMetrics initialises the registry and base HTTP metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	registry.MustRegister(requests, duration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
	}
}

// Handler exposes the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
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

// Registerer exposes the registry for module-specific metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ReportMetrics instruments general ledger report runs.
type ReportMetrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	linesProcessed prometheus.Counter
	pagesFetched   prometheus.Counter
}

// NewReportMetrics registers report run metrics with the given registerer.
func NewReportMetrics(reg prometheus.Registerer) *ReportMetrics {
	m := &ReportMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_gl_report_runs_total",
			Help: "General ledger report runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meridian_gl_report_duration_seconds",
			Help:    "Duration of general ledger report runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		linesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meridian_gl_report_lines_total",
			Help: "Movement lines accumulated across report runs.",
		}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meridian_gl_report_pages_total",
			Help: "Movement line pages fetched across report runs.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runsTotal, m.runDuration, m.linesProcessed, m.pagesFetched)
	}
	return m
}

// ObservePage records one accumulated page.
func (m *ReportMetrics) ObservePage(lines int) {
	if m == nil {
		return
	}
	m.pagesFetched.Inc()
	m.linesProcessed.Add(float64(lines))
}

// ObserveRun records one finished run.
func (m *ReportMetrics) ObserveRun(duration time.Duration, accounts int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
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
