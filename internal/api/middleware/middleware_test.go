package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/caro-api/internal/api/middleware"
	"github.com/phrazzld/caro-api/internal/api/shared"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("reuses the chi request ID", func(t *testing.T) {
		t.Parallel()
		log, buf := logger.NewTestLogger(t)

		var traceID string
		handler := chimw.RequestID(middleware.NewTraceMiddleware(log)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				traceID = shared.GetTraceID(r.Context())
				logger.FromContext(r.Context()).Info("inside handler")
				w.WriteHeader(http.StatusTeapot)
			})))

		req := httptest.NewRequest(http.MethodGet, "/brew", nil)
		req.Header.Set(chimw.RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", traceID)

		entry, ok := logger.FindLogEntry(t, buf, "inside handler")
		require.True(t, ok)
		assert.Equal(t, "req-42", entry["trace_id"])

		done, ok := logger.FindLogEntry(t, buf, "request completed")
		require.True(t, ok)
		assert.Equal(t, float64(http.StatusTeapot), done["status"])
		assert.Equal(t, "/brew", done["path"])
	})

	t.Run("generates an ID without chi", func(t *testing.T) {
		t.Parallel()
		log, _ := logger.NewTestLogger(t)

		var traceID string
		handler := middleware.NewTraceMiddleware(log)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				traceID = shared.GetTraceID(r.Context())
			}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, traceID, 36)
	})
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := middleware.MustNewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(metrics.Handler)
	r.Get("/cards/{cardId}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/cards/1", "/cards/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
# HELP caro_http_requests_total HTTP requests by method, route pattern, and status code.
# TYPE caro_http_requests_total counter
caro_http_requests_total{method="GET",route="/cards/{cardId}",status="200"} 2
caro_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "caro_http_requests_total"))

	t.Run("registering twice reuses the collectors", func(t *testing.T) {
		again := middleware.MustNewHTTPMetrics(reg)
		handler := again.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(t, 3, testutil.CollectAndCount(reg, "caro_http_requests_total"))
	})

	t.Run("nil metrics pass requests through", func(t *testing.T) {
		var nilMetrics *middleware.HTTPMetrics
		called := false
		nilMetrics.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).
			ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, called)
	})
}
