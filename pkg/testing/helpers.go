package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/maximewewer/ntp-offset/internal/packet"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// ReplyFunc builds the reply to a decoded request. Returning nil drops the request.
type ReplyFunc func(request *packet.Message, received time.Time) *packet.Message

// ServerReply answers like a healthy server whose clock is offset from ours
func ServerReply(offset time.Duration, stratum uint8) ReplyFunc {
	return func(request *packet.Message, received time.Time) *packet.Message {
		serverNow := received.Add(offset)
		return &packet.Message{
			Leap:           packet.LeapNoWarning,
			Version:        request.Version,
			Mode:           packet.ModeServer,
			Stratum:        stratum,
			Poll:           6,
			Precision:      -20,
			RootDelay:      packet.NewShort(0, 0x0200),
			RootDispersion: packet.NewShort(0, 0x0100),
			ReferenceID:    0xC0000201,
			ReferenceTime:  packet.TimestampFromTime(serverNow.Add(-time.Minute)),
			OriginTime:     request.TransmitTime,
			ReceiveTime:    packet.TimestampFromTime(serverNow),
			TransmitTime:   packet.TimestampFromTime(serverNow),
		}
	}
}

// KissOfDeathReply answers with a stratum 0 reply carrying code
func KissOfDeathReply(code string) ReplyFunc {
	return func(request *packet.Message, received time.Time) *packet.Message {
		var id [4]byte
		copy(id[:], code)
		return &packet.Message{
			Leap:        packet.LeapNotInSync,
			Version:     request.Version,
			Mode:        packet.ModeServer,
			Stratum:     0,
			ReferenceID: uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3]),
			OriginTime:  request.TransmitTime,
		}
	}
}

// StartNTPServer serves reply on a loopback UDP port until the test ends
// and returns its port
func StartNTPServer(t *testing.T, reply ReplyFunc) int {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			received := time.Now()

			request, err := packet.Decode(buf[:n])
			if err != nil {
				continue
			}
			msg := reply(request, received)
			if msg == nil {
				continue
			}
			data, err := packet.Encode(msg)
			if err != nil {
				continue
			}
			_, _ = conn.WriteTo(data, addr)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr).Port
}

// CreateReferenceResponse creates a beevik/ntp response as returned by the
// reference client
func CreateReferenceResponse(offset time.Duration, stratum uint8) *ntp.Response {
	now := time.Now()
	return &ntp.Response{
		Time:           now.Add(offset),
		ClockOffset:    offset,
		RTT:            20 * time.Millisecond,
		Precision:      time.Microsecond,
		Stratum:        stratum,
		ReferenceID:    0xC0000201,
		ReferenceTime:  now.Add(-time.Minute),
		RootDelay:      8 * time.Millisecond,
		RootDispersion: 4 * time.Millisecond,
		RootDistance:   12 * time.Millisecond,
		Leap:           ntp.LeapNoWarning,
		Poll:           6,
	}
}

// AssertMetricValue validates a Prometheus metric value
func AssertMetricValue(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string, expected float64) {
	t.Helper()

	m, mtype, ok := findMetric(t, registry, metricName, labels)
	if !ok {
		t.Errorf("Metric %s with labels %v not found", metricName, labels)
		return
	}

	var value float64
	switch mtype {
	case dto.MetricType_GAUGE:
		value = m.GetGauge().GetValue()
	case dto.MetricType_COUNTER:
		value = m.GetCounter().GetValue()
	case dto.MetricType_HISTOGRAM:
		value = float64(m.GetHistogram().GetSampleCount())
	default:
		t.Fatalf("Unsupported metric type: %v", mtype)
	}

	if value != expected {
		t.Errorf("Metric %s with labels %v: expected %f, got %f", metricName, labels, expected, value)
	}
}

// AssertMetricExists checks if a metric exists with given labels
func AssertMetricExists(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string) {
	t.Helper()

	if _, _, ok := findMetric(t, registry, metricName, labels); !ok {
		t.Errorf("Metric %s with labels %v not found", metricName, labels)
	}
}

// AssertMetricAbsent checks that no series of metricName carries labels
func AssertMetricAbsent(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string) {
	t.Helper()

	if _, _, ok := findMetric(t, registry, metricName, labels); ok {
		t.Errorf("Metric %s with labels %v unexpectedly present", metricName, labels)
	}
}

func findMetric(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string) (*dto.Metric, dto.MetricType, bool) {
	t.Helper()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != metricName {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				return m, mf.GetType(), true
			}
		}
	}

	return nil, 0, false
}

// labelsMatch checks if metric labels match expected labels
func labelsMatch(metricLabels []*dto.LabelPair, expected map[string]string) bool {
	if len(metricLabels) != len(expected) {
		return false
	}

	for _, label := range metricLabels {
		expectedValue, exists := expected[label.GetName()]
		if !exists || expectedValue != label.GetValue() {
			return false
		}
	}

	return true
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for condition: %s", message)
		}
		<-ticker.C
	}
}

// NewTestHTTPServer creates a test HTTP server closed when the test ends
func NewTestHTTPServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server
}

// CreateTestRegistry creates a new Prometheus registry for testing
func CreateTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

var (
	validMetricName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	validLabelName  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidatePrometheusMetricName validates that a metric name follows Prometheus conventions
func ValidatePrometheusMetricName(t *testing.T, name string) {
	t.Helper()

	if !validMetricName.MatchString(name) {
		t.Errorf("Invalid metric name: %q (must match [a-zA-Z_:][a-zA-Z0-9_:]*)", name)
	}

	if !strings.HasPrefix(name, "ntp_") {
		t.Errorf("Metric name %s should have the ntp_ prefix", name)
	}
}

// ValidatePrometheusLabelName validates that a label name follows Prometheus conventions
func ValidatePrometheusLabelName(t *testing.T, name string) {
	t.Helper()

	if !validLabelName.MatchString(name) {
		t.Errorf("Invalid label name: %q (must match [a-zA-Z_][a-zA-Z0-9_]*)", name)
	}

	if strings.HasPrefix(name, "__") || name == "job" || name == "instance" {
		t.Errorf("Label name %s is reserved", name)
	}
}
