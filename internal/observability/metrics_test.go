package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsExposeLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePosting("success")
	metrics.ObservePosting("success")
	metrics.ObservePosting("failure")
	metrics.ObserveAutopost("BillApproved", "posted")
	metrics.ObserveAutopost("", "posted")

	body := scrape(t, metrics)
	assert.Contains(t, body, `odyssey_ledger_postings_total{result="success"} 2`)
	assert.Contains(t, body, `odyssey_ledger_postings_total{result="failure"} 1`)
	assert.Contains(t, body, `odyssey_ledger_autopost_total{event="BillApproved",result="posted"} 1`)
	assert.NotContains(t, body, `event=""`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/finance/journals/{id}")

	req := httptest.NewRequest(http.MethodGet, "/finance/journals/7", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	if !strings.Contains(body, `odyssey_http_requests_total{code="418",route="/finance/journals/{id}"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	assert.Contains(t, body, `odyssey_http_request_duration_seconds_bucket{route="/finance/journals/{id}"`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObservePosting("success")
	metrics.ObserveAutopost("BillApproved", "posted")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
