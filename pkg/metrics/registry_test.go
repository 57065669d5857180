package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	assert.NotNil(t, reg.GetRegistry())
	assert.NotNil(t, reg.GetMetrics())
}

func TestRegistry_Register_Twice(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register())
	assert.Error(t, reg.Register(), "metrics already registered")
}

func TestRegistry_MustRegister(t *testing.T) {
	reg := NewRegistry()

	assert.NotPanics(t, reg.MustRegister)
	assert.Panics(t, reg.MustRegister)
}

func TestRegistry_MetricsRegistered(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister()

	m := reg.GetMetrics()
	m.OffsetSeconds.WithLabelValues("ntp.example.org").Set(0.001)
	m.ExchangesTotal.WithLabelValues("ntp.example.org", ResultOK).Inc()
	m.BuildInfo.WithLabelValues("1.0.0", "go1.24").Set(1)
	m.ServersConfigured.Set(3)

	names := gatherNames(t, reg.GetRegistry())

	for _, expected := range []string{
		"ntp_offset_seconds",
		"ntp_exchanges_total",
		"ntp_offset_build_info",
		"ntp_servers_configured",
		"go_goroutines",
	} {
		assert.True(t, names[expected], "expected metric %s", expected)
	}
}

func TestRegistry_CustomNamespace(t *testing.T) {
	reg := NewRegistryWithConfig("clock", "watch")
	reg.MustRegister()

	reg.GetMetrics().DelaySeconds.WithLabelValues("ntp.example.org").Set(0.02)

	names := gatherNames(t, reg.GetRegistry())
	assert.True(t, names["clock_watch_delay_seconds"])
	assert.False(t, names["ntp_delay_seconds"])
}

func TestRegistry_MultipleInstances(t *testing.T) {
	reg1 := NewRegistry()
	reg2 := NewRegistry()

	require.NoError(t, reg1.Register())
	require.NoError(t, reg2.Register(), "registries are independent")
	assert.NotSame(t, reg1.GetMetrics(), reg2.GetMetrics())
}
