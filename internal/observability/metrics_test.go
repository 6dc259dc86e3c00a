package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsObserveOperation(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveOperation("role", "delete", fmt.Errorf("%w: role 1 in use", shared.ErrConflict), 3*time.Millisecond)
	metrics.ObserveOperation("role", "delete", nil, time.Millisecond)
	metrics.ObserveOperation("user", "get", fmt.Errorf("%w: user 9", shared.ErrNotFound), time.Millisecond)

	body := scrape(t, metrics)
	require.Contains(t, body, `iam_service_operations_total{operation="delete",outcome="conflict",service="role"} 1`)
	require.Contains(t, body, `iam_service_operations_total{operation="delete",outcome="ok",service="role"} 1`)
	require.Contains(t, body, `iam_service_operations_total{operation="get",outcome="not_found",service="user"} 1`)
	require.Contains(t, body, `iam_service_operation_duration_seconds_count{operation="delete",service="role"} 2`)
}

func TestOutcome(t *testing.T) {
	require.Equal(t, OutcomeOK, Outcome(nil))
	require.Equal(t, OutcomeValidation, Outcome(fmt.Errorf("%w: name is required", shared.ErrValidation)))
	require.Equal(t, OutcomeError, Outcome(errors.New("connection reset")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveOperation("access", "list", nil, time.Millisecond)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "iam_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "iam_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestMetricsPushSendsRegistry(t *testing.T) {
	var method, path string
	var size int64
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, size = r.Method, r.URL.Path, r.ContentLength
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	metrics := NewMetrics()
	metrics.ObserveOperation("user", "create", nil, time.Millisecond)

	require.NoError(t, metrics.Push(context.Background(), gateway.URL, "iam"))
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/metrics/job/iam", path)
	require.NotZero(t, size)
}

func TestMetricsPushWithoutGateway(t *testing.T) {
	metrics := NewMetrics()
	require.NoError(t, metrics.Push(context.Background(), "", "iam"))

	var nilMetrics *Metrics
	require.NoError(t, nilMetrics.Push(context.Background(), "http://127.0.0.1:1", "iam"))
}

func TestMetricsPushGatewayError(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer gateway.Close()

	err := NewMetrics().Push(context.Background(), gateway.URL, "iam")
	require.ErrorContains(t, err, "push metrics")
}
