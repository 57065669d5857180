package collector

import (
	"time"

	"github.com/maximewewer/ntp-offset/internal/ntp"
	"github.com/maximewewer/ntp-offset/pkg/logger"
	"github.com/maximewewer/ntp-offset/pkg/metrics"
)

// SuspicionReferenceDivergence is the reason recorded when the reference
// client disagrees with our offset by more than the configured maximum
const SuspicionReferenceDivergence = "reference_divergence"

// trustRecorder counts replies that decoded fine but should not be trusted
type trustRecorder struct {
	metrics       *metrics.OffsetMetrics
	maxDivergence time.Duration
}

func newTrustRecorder(m *metrics.OffsetMetrics, maxDivergence time.Duration) *trustRecorder {
	if maxDivergence <= 0 {
		maxDivergence = ntp.DefaultMaxDivergence
	}
	return &trustRecorder{metrics: m, maxDivergence: maxDivergence}
}

func (t *trustRecorder) record(resp *ntp.Response) {
	m := t.metrics

	// Check for Kiss-of-Death
	if resp.IsKissOfDeath() {
		m.KissOfDeathTotal.WithLabelValues(resp.Server, resp.KissCode()).Inc()
		logger.SafeWarn("collector", "Kiss-of-Death received", map[string]interface{}{
			"server":   resp.Server,
			"kod_code": resp.KissCode(),
		})
	}

	reasons := resp.SuspicionReasons()
	if ref := resp.Reference; ref != nil && ref.Diverged(t.maxDivergence) {
		reasons = append(reasons, SuspicionReferenceDivergence)
	}
	for _, reason := range reasons {
		m.SuspiciousRepliesTotal.WithLabelValues(resp.Server, reason).Inc()
	}
	if len(reasons) > 0 {
		logger.SafeWarn("collector", "Suspicious NTP reply", map[string]interface{}{
			"server":  resp.Server,
			"reasons": reasons,
		})
	}
}
