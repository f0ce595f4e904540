package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider() *Provider {
	return &Provider{Logger: logging.NewNopLogger(), Metrics: metrics.NewCollector("test")}
}

func TestMiddlewareSetsTraceID(t *testing.T) {
	var seen string
	h := newProvider().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetTraceIDFromContext(r.Context())
		assert.NotNil(t, logging.LoggerFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(TraceHeader))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestMiddlewareReusesIncomingTraceID(t *testing.T) {
	incoming := uuid.NewString()
	h := newProvider().Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(TraceHeader, incoming)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get(TraceHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(TraceHeader, "not-a-trace\nid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-trace\nid", rec.Header().Get(TraceHeader))
}

func TestMiddlewareLabelsUnmatchedPathsAsOther(t *testing.T) {
	h := newProvider().Middleware(http.NotFoundHandler())
	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodGet, OtherRoute, "Not Found"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))

	after := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodGet, OtherRoute, "Not Found"))
	assert.Equal(t, before+1, after)
	assert.False(t, metrics.RequestsTotal.DeleteLabelValues(http.MethodGet, "/wp-login.php", "Not Found"))
}

func TestMiddlewareLabelsWithRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RouteMiddleware)
	r.HandleFunc("/scenarios/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := newProvider().Middleware(r)
	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/scenarios/{id}", "OK"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/scenarios/42", nil))

	after := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/scenarios/{id}", "OK"))
	assert.Equal(t, before+1, after)
	assert.False(t, metrics.RequestsTotal.DeleteLabelValues(http.MethodGet, "/scenarios/42", "OK"))
}

func TestSetRouteOutsideMiddleware(t *testing.T) {
	assert.NotPanics(t, func() {
		SetRoute(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "/healthz")
	})
}
