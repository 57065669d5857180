package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exchange results used as the "result" label of ExchangesTotal
const (
	ResultOK          = "ok"
	ResultTimeout     = "timeout"
	ResultUnreachable = "unreachable"
	ResultMalformed   = "malformed"
	ResultCircuitOpen = "circuit_open"
	ResultError       = "error"
)

// OffsetMetrics holds the metrics published in watch mode
type OffsetMetrics struct {
	// Per-server exchange results
	OffsetSeconds       *prometheus.GaugeVec
	DelaySeconds        *prometheus.GaugeVec
	ServerReachable     *prometheus.GaugeVec
	Stratum             *prometheus.GaugeVec
	RootDelay           *prometheus.GaugeVec
	RootDispersion      *prometheus.GaugeVec
	LeapIndicator       *prometheus.GaugeVec
	ReferenceDivergence *prometheus.GaugeVec

	// Statistics over the recent exchanges with each server
	OffsetMedianSeconds *prometheus.GaugeVec
	OffsetStdDevSeconds *prometheus.GaugeVec
	JitterSeconds       *prometheus.GaugeVec
	PacketLossRatio     *prometheus.GaugeVec

	// Trust signals
	KissOfDeathTotal        *prometheus.CounterVec
	SuspiciousRepliesTotal  *prometheus.CounterVec
	MalformedResponsesTotal *prometheus.CounterVec
	CircuitBreakerState     *prometheus.GaugeVec

	// Operational
	ExchangesTotal       *prometheus.CounterVec
	QueryDurationSeconds *prometheus.HistogramVec
	RoundDuration        prometheus.Histogram
	ServersConfigured    prometheus.Gauge
	DNSCacheEntries      prometheus.Gauge
	BuildInfo            *prometheus.GaugeVec

	// HTTP server
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func gaugeVec(namespace, subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func counterVec(namespace, subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewOffsetMetricsWithConfig creates all metrics under namespace and subsystem
func NewOffsetMetricsWithConfig(namespace, subsystem string) *OffsetMetrics {
	return &OffsetMetrics{
		OffsetSeconds: gaugeVec(namespace, subsystem, "offset_seconds",
			"Estimated offset of the server clock relative to the local clock in seconds", "server"),
		DelaySeconds: gaugeVec(namespace, subsystem, "delay_seconds",
			"Round-trip delay of the last exchange minus server processing time in seconds", "server"),
		ServerReachable: gaugeVec(namespace, subsystem, "server_reachable",
			"Whether the last exchange with the server produced a reply (1) or not (0)", "server"),
		Stratum: gaugeVec(namespace, subsystem, "stratum",
			"Stratum reported by the server (0-16)", "server"),
		RootDelay: gaugeVec(namespace, subsystem, "root_delay_seconds",
			"Root delay reported by the server in seconds", "server"),
		RootDispersion: gaugeVec(namespace, subsystem, "root_dispersion_seconds",
			"Root dispersion reported by the server in seconds", "server"),
		LeapIndicator: gaugeVec(namespace, subsystem, "leap_indicator",
			"Leap indicator reported by the server (0-3)", "server"),
		ReferenceDivergence: gaugeVec(namespace, subsystem, "reference_divergence_seconds",
			"Difference between our offset and the reference client offset in seconds", "server"),

		OffsetMedianSeconds: gaugeVec(namespace, subsystem, "offset_median_seconds",
			"Median offset over the recent exchanges with the server in seconds", "server"),
		OffsetStdDevSeconds: gaugeVec(namespace, subsystem, "offset_stddev_seconds",
			"Standard deviation of the offset over the recent exchanges in seconds", "server"),
		JitterSeconds: gaugeVec(namespace, subsystem, "jitter_seconds",
			"Standard deviation of the delay over the recent exchanges in seconds", "server"),
		PacketLossRatio: gaugeVec(namespace, subsystem, "packet_loss_ratio",
			"Share of the recent exchanges that produced no usable reply (0-1)", "server"),

		KissOfDeathTotal: counterVec(namespace, subsystem, "kiss_of_death_total",
			"Kiss-o'-death replies received", "server", "code"),
		SuspiciousRepliesTotal: counterVec(namespace, subsystem, "suspicious_replies_total",
			"Replies whose content makes the offset estimate untrustworthy", "server", "reason"),
		MalformedResponsesTotal: counterVec(namespace, subsystem, "malformed_responses_total",
			"Replies that could not be decoded", "server"),
		CircuitBreakerState: gaugeVec(namespace, subsystem, "circuit_breaker_state",
			"Circuit breaker state per server (0=closed, 1=half-open, 2=open)", "server"),

		ExchangesTotal: counterVec(namespace, subsystem, "exchanges_total",
			"Exchanges attempted, by result", "server", "result"),
		QueryDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "query_duration_seconds",
				Help:      "Wall-clock duration of an exchange, including rate limiting",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"server"},
		),
		RoundDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "round_duration_seconds",
				Help:      "Duration of a collection round over all configured servers",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ServersConfigured: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "servers_configured",
			Help:      "Number of servers queried each round",
		}),
		DNSCacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dns_cache_entries",
			Help:      "Server names held in the DNS cache",
		}),
		BuildInfo: gaugeVec(namespace, subsystem, "offset_build_info",
			"Build information, constant 1", "version", "goversion"),

		HTTPRequestsTotal: counterVec(namespace, subsystem, "http_requests_total",
			"HTTP requests served, by path and status code", "path", "code"),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}
}

// NewOffsetMetrics creates the metrics with the default "ntp" namespace
func NewOffsetMetrics() *OffsetMetrics {
	return NewOffsetMetricsWithConfig("ntp", "")
}

func (m *OffsetMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.OffsetSeconds,
		m.DelaySeconds,
		m.ServerReachable,
		m.Stratum,
		m.RootDelay,
		m.RootDispersion,
		m.LeapIndicator,
		m.ReferenceDivergence,

		m.OffsetMedianSeconds,
		m.OffsetStdDevSeconds,
		m.JitterSeconds,
		m.PacketLossRatio,

		m.KissOfDeathTotal,
		m.SuspiciousRepliesTotal,
		m.MalformedResponsesTotal,
		m.CircuitBreakerState,

		m.ExchangesTotal,
		m.QueryDurationSeconds,
		m.RoundDuration,
		m.ServersConfigured,
		m.DNSCacheEntries,
		m.BuildInfo,

		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	}
}

// Describe implements prometheus.Collector
func (m *OffsetMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *OffsetMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
