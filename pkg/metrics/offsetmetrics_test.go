package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOffsetMetrics_Types(t *testing.T) {
	m := NewOffsetMetrics()

	assert.IsType(t, &prometheus.GaugeVec{}, m.OffsetSeconds)
	assert.IsType(t, &prometheus.GaugeVec{}, m.DelaySeconds)
	assert.IsType(t, &prometheus.CounterVec{}, m.ExchangesTotal)
	assert.IsType(t, &prometheus.CounterVec{}, m.KissOfDeathTotal)
	assert.IsType(t, &prometheus.HistogramVec{}, m.QueryDurationSeconds)
	assert.NotNil(t, m.RoundDuration)
	assert.NotNil(t, m.DNSCacheEntries)
}

func TestOffsetMetrics_Labels(t *testing.T) {
	m := NewOffsetMetrics()

	m.OffsetSeconds.WithLabelValues("ntp.example.org").Set(-0.25)
	m.KissOfDeathTotal.WithLabelValues("ntp.example.org", "RATE").Inc()
	m.ExchangesTotal.WithLabelValues("ntp.example.org", ResultTimeout).Inc()
	m.ExchangesTotal.WithLabelValues("ntp.example.org", ResultTimeout).Inc()
	m.HTTPRequestsTotal.WithLabelValues("/metrics", "200").Inc()

	assert.Equal(t, -0.25, testutil.ToFloat64(m.OffsetSeconds.WithLabelValues("ntp.example.org")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KissOfDeathTotal.WithLabelValues("ntp.example.org", "RATE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("ntp.example.org", ResultTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/metrics", "200")))
}

func TestOffsetMetrics_DescribeCoversCollectors(t *testing.T) {
	m := NewOffsetMetrics()

	ch := make(chan *prometheus.Desc, 100)
	m.Describe(ch)
	close(ch)

	assert.Len(t, ch, len(m.collectors()))
}

func TestOffsetMetrics_Lint(t *testing.T) {
	m := NewOffsetMetrics()
	m.OffsetSeconds.WithLabelValues("ntp.example.org").Set(0)

	problems, err := testutil.CollectAndLint(m)

	assert.NoError(t, err)
	assert.Empty(t, problems)
}
