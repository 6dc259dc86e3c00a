package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

// Outcome labels for service operations.
const (
	OutcomeOK         = "ok"
	OutcomeNotFound   = "not_found"
	OutcomeConflict   = "conflict"
	OutcomeValidation = "validation"
	OutcomeError      = "error"
)

// Metrics collects the Prometheus collectors of the process.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewMetrics initialises the registry with HTTP and RBAC operation collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iam_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "iam_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iam_service_operations_total",
		Help: "RBAC service operations by service, operation and outcome.",
	}, []string{"service", "operation", "outcome"})
	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "iam_service_operation_duration_seconds",
		Help:    "RBAC service operation duration including its transaction.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "operation"})
	registry.MustRegister(requests, duration, operations, opDuration)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		operationsTotal:   operations,
		operationDuration: opDuration,
	}
}

// Handler returns the http.Handler serving /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route.
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

// ObserveOperation records one service call. Domain errors are counted by kind.
func (m *Metrics) ObserveOperation(service, operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(service, operation, Outcome(err)).Inc()
	m.operationDuration.WithLabelValues(service, operation).Observe(elapsed.Seconds())
}

// Outcome maps an operation error to its metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, shared.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, shared.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, shared.ErrValidation):
		return OutcomeValidation
	default:
		return OutcomeError
	}
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Push sends the current registry contents to a Pushgateway under job.
// Short-lived commands use it since nothing scrapes them.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("observability: push metrics: %w", err)
	}
	return nil
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
