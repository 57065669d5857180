package ntp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maximewewer/ntp-offset/pkg/logger"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a server is skipped after repeated failures.
// It matches ErrUnreachable under errors.Is.
var ErrCircuitOpen = fmt.Errorf("%w: circuit breaker open", ErrUnreachable)

// CircuitBreakerClient wraps a Querier with one circuit breaker per server.
// The breaker only short-circuits further queries; it never retries.
type CircuitBreakerClient struct {
	querier  Querier
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.RWMutex
	config   CircuitBreakerConfig
}

// CircuitBreakerConfig holds configuration for circuit breakers.
type CircuitBreakerConfig struct {
	// MaxRequests is the number of probes allowed while half-open
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which counts reset
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open
	Timeout time.Duration

	// ReadyToTrip decides, from the counts, whether to open the breaker
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is notified of every transition, after logging
	OnStateChange func(server string, from, to gobreaker.State)
}

// DefaultCircuitBreakerConfig trips after 3 requests with a 60% failure ratio
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return NewCircuitBreakerConfigWithThreshold(3, 60*time.Second, 30*time.Second, 0.6)
}

// NewCircuitBreakerConfigWithThreshold creates a config with a custom failure ratio
func NewCircuitBreakerConfigWithThreshold(maxRequests uint32, interval, timeout time.Duration, failureThreshold float64) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= failureThreshold
		},
	}
}

// NewCircuitBreakerClient wraps querier. A zero config uses the defaults.
func NewCircuitBreakerClient(querier Querier, config CircuitBreakerConfig) *CircuitBreakerClient {
	if config.MaxRequests == 0 {
		hook := config.OnStateChange
		config = DefaultCircuitBreakerConfig()
		config.OnStateChange = hook
	}

	return &CircuitBreakerClient{
		querier:  querier,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		config:   config,
	}
}

// breakerFor returns or creates the circuit breaker for a server
func (cb *CircuitBreakerClient) breakerFor(server string) *gobreaker.CircuitBreaker {
	cb.mu.RLock()
	breaker, exists := cb.breakers[server]
	cb.mu.RUnlock()

	if exists {
		return breaker
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if breaker, exists := cb.breakers[server]; exists {
		return breaker
	}

	breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        server,
		MaxRequests: cb.config.MaxRequests,
		Interval:    cb.config.Interval,
		Timeout:     cb.config.Timeout,
		ReadyToTrip: cb.config.ReadyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.SafeInfo("ntp", "Circuit breaker state changed", map[string]interface{}{
				"server": name,
				"from":   from.String(),
				"to":     to.String(),
			})
			if cb.config.OnStateChange != nil {
				cb.config.OnStateChange(name, from, to)
			}
		},
	})

	cb.breakers[server] = breaker
	return breaker
}

// Query runs the wrapped query unless the server's breaker is open
func (cb *CircuitBreakerClient) Query(ctx context.Context, server string) (*Response, error) {
	result, err := cb.breakerFor(server).Execute(func() (interface{}, error) {
		return cb.querier.Query(ctx, server)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w for %s: %w", ErrCircuitOpen, server, err)
		}
		return nil, err
	}

	return result.(*Response), nil
}

// State returns the breaker state for a server, closed if never queried
func (cb *CircuitBreakerClient) State(server string) gobreaker.State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	breaker, exists := cb.breakers[server]
	if !exists {
		return gobreaker.StateClosed
	}

	return breaker.State()
}

// Counts returns the current counts for a server's breaker
func (cb *CircuitBreakerClient) Counts(server string) gobreaker.Counts {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	breaker, exists := cb.breakers[server]
	if !exists {
		return gobreaker.Counts{}
	}

	return breaker.Counts()
}
