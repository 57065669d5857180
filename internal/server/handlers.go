package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/maximewewer/ntp-offset/internal/collector"
	"github.com/maximewewer/ntp-offset/internal/config"
	"github.com/maximewewer/ntp-offset/pkg/logger"
	"github.com/maximewewer/ntp-offset/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health states reported by /health
const (
	StatusHealthy  = "healthy"
	StatusStarting = "starting"
	StatusDegraded = "degraded"
)

// HealthSource exposes the outcomes of the latest collection round
type HealthSource interface {
	Last() []collector.Outcome
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Servers map[string]string `json:"servers,omitempty"`
}

// Handlers contains HTTP request handlers
type Handlers struct {
	config   *config.Config
	registry *prometheus.Registry
	health   HealthSource
	metrics  http.Handler
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, registry *prometheus.Registry, health HealthSource) *Handlers {
	return &Handlers{
		config:   cfg,
		registry: registry,
		health:   health,
		metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog:      &loggerAdapter{},
			ErrorHandling: promhttp.ContinueOnError,
		}),
	}
}

// MetricsHandler serves Prometheus metrics
func (h *Handlers) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HealthHandler reports healthy while at least one server answered the
// latest round, and 503 once every server failed
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: StatusHealthy, Service: "ntp-offset"}
	code := http.StatusOK

	if h.health != nil {
		outcomes := h.health.Last()
		if len(outcomes) == 0 {
			response.Status = StatusStarting
		} else {
			response.Servers = make(map[string]string, len(outcomes))
			reachable := 0
			for _, o := range outcomes {
				response.Servers[o.Server] = o.Result
				if o.Result == metrics.ResultOK {
					reachable++
				}
			}
			if reachable == 0 {
				response.Status = StatusDegraded
				code = http.StatusServiceUnavailable
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("server", "Failed to write health response", err)
	}
}

// IndexHandler serves the index page
func (h *Handlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)

	servers := make([]string, 0, len(h.config.NTP.Servers))
	for _, s := range h.config.NTP.Servers {
		servers = append(servers, "<li>"+html.EscapeString(s)+"</li>")
	}

	page := `<!DOCTYPE html>
<html>
<head>
    <title>NTP Offset</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        h1 { color: #333; }
        ul { list-style-type: none; padding: 0; }
        li { margin: 10px 0; }
        a { color: #0066cc; text-decoration: none; }
        a:hover { text-decoration: underline; }
        .info { background-color: #f0f0f0; padding: 15px; border-radius: 5px; }
    </style>
</head>
<body>
    <h1>NTP Offset Watch</h1>
    <div class="info">
        <h2>Available Endpoints:</h2>
        <ul>
            <li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
            <li><a href="/health">/health</a> - Health check</li>
        </ul>
        <h2>Configuration:</h2>
        <ul>
            <li>Scrape interval: ` + h.config.NTP.ScrapeInterval.String() + `</li>
            <li>Timeout: ` + h.config.NTP.Timeout.String() + `</li>
            <li>NTP Version: ` + strconv.Itoa(h.config.NTP.Version) + `</li>
            <li>Reference check: ` + strconv.FormatBool(h.config.NTP.Verify) + `</li>
        </ul>
        <h2>Servers (` + strconv.Itoa(len(servers)) + `):</h2>
        <ul>
            ` + strings.Join(servers, "\n            ") + `
        </ul>
    </div>
</body>
</html>`

	if _, err := w.Write([]byte(page)); err != nil {
		logger.Error("server", "Failed to write index page", err)
	}
}

// loggerAdapter adapts pkg/logger to the promhttp logger interface
type loggerAdapter struct{}

func (l *loggerAdapter) Println(v ...interface{}) {
	logger.Error("promhttp", strings.TrimSuffix(fmt.Sprintln(v...), "\n"), nil)
}
