package collector

import (
	"github.com/maximewewer/ntp-offset/internal/config"
	"github.com/maximewewer/ntp-offset/internal/ntp"
	"github.com/maximewewer/ntp-offset/pkg/metrics"
	"github.com/sony/gobreaker"
)

// Stack is the querier built from configuration, with handles on the
// components that report their own state
type Stack struct {
	Querier ntp.Querier

	// DNSCache is nil when the cache is disabled
	DNSCache *ntp.DNSCache

	// Breaker is nil when the circuit breaker is disabled
	Breaker *ntp.CircuitBreakerClient
}

// NewStack wires the client with its DNS cache, rate limiter, reference
// checker and circuit breaker. When m is set, breaker transitions are
// exported as metrics.
func NewStack(cfg *config.Config, m *metrics.OffsetMetrics) *Stack {
	stack := &Stack{}

	opts := ntp.ClientOptions{
		Timeout: cfg.NTP.Timeout,
		Version: uint8(cfg.NTP.Version),
		Port:    cfg.NTP.Port,
	}

	if cfg.NTP.DNSCache.Enabled {
		stack.DNSCache = ntp.NewDNSCache(ntp.DNSCacheConfig{
			MinTTL:     cfg.NTP.DNSCache.MinTTL,
			MaxTTL:     cfg.NTP.DNSCache.MaxTTL,
			StaleGrace: cfg.NTP.DNSCache.StaleGrace,
		})
		opts.Resolver = stack.DNSCache
	}

	if cfg.NTP.RateLimit.Enabled {
		opts.RateLimiter = ntp.NewRateLimiter(
			cfg.NTP.RateLimit.GlobalRate,
			cfg.NTP.RateLimit.PerServerRate,
			cfg.NTP.RateLimit.BurstSize,
		)
	}

	if cfg.NTP.Verify {
		opts.Reference = ntp.NewReferenceChecker(cfg.NTP.Timeout, cfg.NTP.Version, cfg.NTP.Port).
			WithMaxDivergence(cfg.NTP.MaxDivergence)
	}

	stack.Querier = ntp.NewClient(opts)

	if cfg.NTP.CircuitBreaker.Enabled {
		cbConfig := ntp.NewCircuitBreakerConfigWithThreshold(
			cfg.NTP.CircuitBreaker.MaxRequests,
			cfg.NTP.CircuitBreaker.Interval,
			cfg.NTP.CircuitBreaker.Timeout,
			cfg.NTP.CircuitBreaker.FailureThreshold,
		)
		if m != nil {
			cbConfig.OnStateChange = func(server string, _, to gobreaker.State) {
				m.CircuitBreakerState.WithLabelValues(server).Set(float64(to))
			}
		}
		stack.Breaker = ntp.NewCircuitBreakerClient(stack.Querier, cbConfig)
		stack.Querier = stack.Breaker
	}

	return stack
}
