package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maximewewer/ntp-offset/internal/config"
	"github.com/maximewewer/ntp-offset/internal/ntp"
	"github.com/maximewewer/ntp-offset/internal/packet"
	"github.com/maximewewer/ntp-offset/pkg/logger"
	"github.com/maximewewer/ntp-offset/pkg/metrics"
)

// Outcome is the result of one exchange during a collection round
type Outcome struct {
	Server   string
	Response *ntp.Response
	Err      error
	Result   string
	Duration time.Duration
}

// ExchangeCollector queries every configured server once per round and
// publishes offset, delay and header fields
type ExchangeCollector struct {
	servers  []string
	querier  ntp.Querier
	dnsCache *ntp.DNSCache
	metrics  *metrics.OffsetMetrics
	trust    *trustRecorder
	history  *ntp.History

	mu   sync.RWMutex
	last []Outcome
}

// NewExchangeCollector creates a collector over the servers of cfg
func NewExchangeCollector(cfg *config.Config, stack *Stack, m *metrics.OffsetMetrics) *ExchangeCollector {
	return &ExchangeCollector{
		servers:  append([]string(nil), cfg.NTP.Servers...),
		querier:  stack.Querier,
		dnsCache: stack.DNSCache,
		metrics:  m,
		trust:    newTrustRecorder(m, cfg.NTP.MaxDivergence),
		history:  ntp.NewHistory(cfg.NTP.HistorySize),
	}
}

// Name returns the collector name
func (c *ExchangeCollector) Name() string {
	return "exchange"
}

// Enabled indicates if the collector is active
func (c *ExchangeCollector) Enabled() bool {
	return len(c.servers) > 0
}

// Collect runs one exchange per server, in order. It fails only when no
// server answered or ctx was cancelled.
func (c *ExchangeCollector) Collect(ctx context.Context) error {
	start := time.Now()
	m := c.metrics

	m.ServersConfigured.Set(float64(len(c.servers)))

	outcomes := make([]Outcome, 0, len(c.servers))
	successCount := 0

	for _, server := range c.servers {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome := c.collectFromServer(ctx, server)
		if outcome.Err == nil {
			successCount++
		}
		outcomes = append(outcomes, outcome)
	}

	c.mu.Lock()
	c.last = outcomes
	c.mu.Unlock()

	if c.dnsCache != nil {
		m.DNSCacheEntries.Set(float64(c.dnsCache.Len()))
	}

	duration := time.Since(start)
	m.RoundDuration.Observe(duration.Seconds())

	logger.SafeInfo("collector", "Collection round completed", map[string]interface{}{
		"success":  successCount,
		"failed":   len(c.servers) - successCount,
		"duration": duration.Seconds(),
	})

	if successCount == 0 {
		return fmt.Errorf("none of %d servers answered", len(c.servers))
	}
	return nil
}

func (c *ExchangeCollector) collectFromServer(ctx context.Context, server string) Outcome {
	m := c.metrics

	start := time.Now()
	resp, err := c.querier.Query(ctx, server)
	elapsed := time.Since(start)

	result := ResultLabel(err)
	m.QueryDurationSeconds.WithLabelValues(server).Observe(elapsed.Seconds())
	m.ExchangesTotal.WithLabelValues(server, result).Inc()

	outcome := Outcome{
		Server:   server,
		Response: resp,
		Err:      err,
		Result:   result,
		Duration: elapsed,
	}

	c.history.Record(server, resp)
	c.updateStatistics(server)

	if err != nil {
		m.ServerReachable.WithLabelValues(server).Set(0)
		if result == metrics.ResultMalformed {
			m.MalformedResponsesTotal.WithLabelValues(server).Inc()
		}
		logger.SafeWarn("collector", "Failed to collect from server", map[string]interface{}{
			"server": server,
			"result": result,
			"error":  err.Error(),
		})
		return outcome
	}

	c.updateMetrics(resp)
	c.trust.record(resp)

	return outcome
}

// updateMetrics updates Prometheus metrics from a completed exchange
func (c *ExchangeCollector) updateMetrics(resp *ntp.Response) {
	m := c.metrics
	server := resp.Server

	m.ServerReachable.WithLabelValues(server).Set(1)
	m.OffsetSeconds.WithLabelValues(server).Set(resp.Offset.Seconds())
	m.DelaySeconds.WithLabelValues(server).Set(resp.Delay.Seconds())
	m.Stratum.WithLabelValues(server).Set(float64(resp.Stratum()))
	m.RootDelay.WithLabelValues(server).Set(resp.Reply.RootDelay.Seconds())
	m.RootDispersion.WithLabelValues(server).Set(resp.Reply.RootDispersion.Seconds())
	m.LeapIndicator.WithLabelValues(server).Set(float64(resp.Reply.Leap))

	if ref := resp.Reference; ref != nil && ref.Err == nil {
		m.ReferenceDivergence.WithLabelValues(server).Set(ref.Divergence.Seconds())
	}

	logger.SafeDebug("collector", "Metrics updated", map[string]interface{}{
		"server":  server,
		"offset":  resp.Offset.Seconds(),
		"delay":   resp.Delay.Seconds(),
		"stratum": resp.Stratum(),
	})
}

// updateStatistics publishes the windowed statistics of server
func (c *ExchangeCollector) updateStatistics(server string) {
	stats := c.history.Statistics(server)
	if stats == nil {
		return
	}

	m := c.metrics
	m.PacketLossRatio.WithLabelValues(server).Set(stats.PacketLossRatio)
	if stats.SamplesCount == 0 {
		return
	}
	m.OffsetMedianSeconds.WithLabelValues(server).Set(stats.MedianOffset.Seconds())
	m.OffsetStdDevSeconds.WithLabelValues(server).Set(stats.StdDevOffset.Seconds())
	m.JitterSeconds.WithLabelValues(server).Set(stats.Jitter.Seconds())
}

// Statistics returns the windowed statistics of server, nil if never queried
func (c *ExchangeCollector) Statistics(server string) *ntp.Statistics {
	return c.history.Statistics(server)
}

// Last returns the outcomes of the most recent round, in server order
func (c *ExchangeCollector) Last() []Outcome {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Outcome(nil), c.last...)
}

// ResultLabel maps an exchange error to the "result" label of ExchangesTotal
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ntp.ErrCircuitOpen):
		return metrics.ResultCircuitOpen
	case errors.Is(err, ntp.ErrTimeout):
		return metrics.ResultTimeout
	case errors.Is(err, packet.ErrMalformedPacket):
		return metrics.ResultMalformed
	case errors.Is(err, ntp.ErrUnreachable):
		return metrics.ResultUnreachable
	default:
		return metrics.ResultError
	}
}
