package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maximewewer/ntp-offset/internal/collector"
	"github.com/maximewewer/ntp-offset/internal/config"
	"github.com/maximewewer/ntp-offset/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHealth []collector.Outcome

func (s staticHealth) Last() []collector.Outcome {
	return s
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestNewHandlers(t *testing.T) {
	handlers := NewHandlers(config.DefaultConfig(), prometheus.NewRegistry(), nil)

	assert.NotNil(t, handlers)
	assert.NotNil(t, handlers.config)
	assert.NotNil(t, handlers.registry)
	assert.NotNil(t, handlers.metrics)
}

func TestHandlers_MetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()

	testGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_metric",
		Help: "Test metric",
	})
	registry.MustRegister(testGauge)
	testGauge.Set(42)

	handlers := NewHandlers(config.DefaultConfig(), registry, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handlers.MetricsHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_metric 42")
}

func TestHandlers_MetricsHandler_OffsetMetrics(t *testing.T) {
	m := metrics.NewOffsetMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(m)
	m.OffsetSeconds.WithLabelValues("time.example.org").Set(-0.125)

	handlers := NewHandlers(config.DefaultConfig(), registry, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handlers.MetricsHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ntp_offset_seconds{server="time.example.org"} -0.125`)
}

func TestHandlers_HealthHandler(t *testing.T) {
	tests := []struct {
		name    string
		health  HealthSource
		code    int
		status  string
		servers map[string]string
	}{
		{
			name:   "no source",
			health: nil,
			code:   http.StatusOK,
			status: StatusHealthy,
		},
		{
			name:   "before first round",
			health: staticHealth(nil),
			code:   http.StatusOK,
			status: StatusStarting,
		},
		{
			name: "one server answered",
			health: staticHealth{
				{Server: "a", Result: metrics.ResultOK},
				{Server: "b", Result: metrics.ResultTimeout, Err: errors.New("timeout")},
			},
			code:    http.StatusOK,
			status:  StatusHealthy,
			servers: map[string]string{"a": "ok", "b": "timeout"},
		},
		{
			name: "every server failed",
			health: staticHealth{
				{Server: "a", Result: metrics.ResultUnreachable, Duration: time.Millisecond},
				{Server: "b", Result: metrics.ResultCircuitOpen},
			},
			code:    http.StatusServiceUnavailable,
			status:  StatusDegraded,
			servers: map[string]string{"a": "unreachable", "b": "circuit_open"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHandlers(config.DefaultConfig(), prometheus.NewRegistry(), tt.health)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			handlers.HealthHandler(w, req)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			body := decodeHealth(t, w)
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, "ntp-offset", body.Service)
			assert.Equal(t, tt.servers, body.Servers)
		})
	}
}

func TestHandlers_IndexHandler(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NTP.Servers = []string{"a.example.org", "<b>"}
	handlers := NewHandlers(cfg, prometheus.NewRegistry(), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handlers.IndexHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "NTP Offset Watch")
	assert.Contains(t, body, "/metrics")
	assert.Contains(t, body, "/health")
	assert.Contains(t, body, "Servers (2)")
	assert.Contains(t, body, "a.example.org")
	assert.Contains(t, body, "&lt;b&gt;")
	assert.NotContains(t, body, "<b>")
	assert.Contains(t, body, "Scrape interval: 1m0s")
}

func TestHandlers_IndexHandler_NotFound(t *testing.T) {
	handlers := NewHandlers(config.DefaultConfig(), prometheus.NewRegistry(), nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	handlers.IndexHandler(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoggerAdapter_Println(t *testing.T) {
	adapter := &loggerAdapter{}

	assert.NotPanics(t, func() {
		adapter.Println("error gathering metrics:", errors.New("boom"))
		adapter.Println()
	})
}
