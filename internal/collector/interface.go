// Package collector runs the periodic exchanges of watch mode and turns
// their outcomes into Prometheus metrics.
//
// Usage:
//
//	stack := collector.NewStack(cfg, m)
//	rounds := collector.NewRegistry()
//	if err := rounds.Register(collector.NewExchangeCollector(cfg, stack, m)); err != nil {
//	    return err
//	}
//	return rounds.Run(ctx, cfg.NTP.ScrapeInterval)
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maximewewer/ntp-offset/pkg/logger"
)

// ErrDuplicateCollector is returned when a collector name is registered twice
var ErrDuplicateCollector = errors.New("collector already registered")

// Collector is one source of metrics refreshed on every round
type Collector interface {
	// Collect runs one collection round
	Collect(ctx context.Context) error

	// Name returns the name of the collector
	Name() string

	// Enabled indicates if the collector is active
	Enabled() bool
}

// Round describes a completed call to CollectAll
type Round struct {
	Number   int
	Finished time.Time
	Err      error
}

// Registry runs its collectors together, one round at a time
type Registry struct {
	collectors []Collector

	mu     sync.RWMutex
	rounds int
	last   Round
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds c, refusing a second collector with the same name
func (r *Registry) Register(c Collector) error {
	for _, existing := range r.collectors {
		if existing.Name() == c.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateCollector, c.Name())
		}
	}
	r.collectors = append(r.collectors, c)
	return nil
}

// CollectAll runs every enabled collector and joins their errors. A
// cancelled ctx stops the round before the next collector.
func (r *Registry) CollectAll(ctx context.Context) error {
	var errs []error

	for _, c := range r.collectors {
		if !c.Enabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if err := c.Collect(ctx); err != nil {
			logger.SafeWarn("collector", "Collection failed", map[string]interface{}{
				"collector": c.Name(),
				"error":     err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}

	err := errors.Join(errs...)

	r.mu.Lock()
	r.rounds++
	r.last = Round{Number: r.rounds, Finished: time.Now(), Err: err}
	r.mu.Unlock()

	return err
}

// Run collects once immediately, then every interval until ctx is done.
// Failed rounds are logged and do not stop the loop.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("collection interval must be positive, got %s", interval)
	}

	if err := r.CollectAll(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("collector", "Initial collection failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.SafeInfo("collector", "Collection loop started", map[string]interface{}{
		"scrape_interval": interval.String(),
		"collectors":      r.EnabledCount(),
	})

	for {
		select {
		case <-ctx.Done():
			logger.Info("collector", "Collection loop stopped")
			return nil
		case <-ticker.C:
			if err := r.CollectAll(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("collector", "Collection failed")
			}
		}
	}
}

// LastRound returns the most recent round, and false before the first one
func (r *Registry) LastRound() (Round, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.last, r.rounds > 0
}

// Count returns the number of registered collectors
func (r *Registry) Count() int {
	return len(r.collectors)
}

// EnabledCount returns the number of enabled collectors
func (r *Registry) EnabledCount() int {
	count := 0
	for _, c := range r.collectors {
		if c.Enabled() {
			count++
		}
	}
	return count
}
