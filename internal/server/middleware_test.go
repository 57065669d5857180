package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maximewewer/ntp-offset/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMiddleware(t *testing.T) {
	m := metrics.NewOffsetMetrics()
	mw := NewMiddleware(m)

	assert.NotNil(t, mw)
	assert.Same(t, m, mw.metrics)
}

func TestMiddleware_Apply(t *testing.T) {
	mw := NewMiddleware(metrics.NewOffsetMetrics())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test"))
	})

	wrapped := mw.Apply(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", w.Body.String())
}

func TestMiddleware_Recovery(t *testing.T) {
	mw := NewMiddleware(metrics.NewOffsetMetrics())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	wrapped := mw.Apply(handler)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		wrapped.ServeHTTP(w, req)
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestMiddleware_Metrics(t *testing.T) {
	m := metrics.NewOffsetMetrics()
	mw := NewMiddleware(m)

	wrapped := mw.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/metrics", "/metrics", "/health", "/random/path"} {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/metrics", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/health", "503")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("other", "200")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.HTTPRequestsTotal))
	assert.Equal(t, 3, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestMiddleware_NilMetrics(t *testing.T) {
	mw := NewMiddleware(nil)

	wrapped := mw.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/":         "/",
		"/metrics":  "/metrics",
		"/health":   "/health",
		"/health/x": "other",
		"/../etc":   "other",
		"":          "other",
	}

	for path, want := range tests {
		assert.Equal(t, want, routeLabel(path), path)
	}
}

func TestResponseWriter_WriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rw.statusCode)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
