package ntp

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the rate limiter gives up waiting for a
// slot. It matches ErrUnreachable under errors.Is.
var ErrRateLimited = fmt.Errorf("%w: rate limited", ErrUnreachable)

// RateLimiter paces requests globally and per server so that repeated
// queries do not earn a RATE kiss-o'-death
type RateLimiter struct {
	global        *rate.Limiter
	perServer     map[string]*rate.Limiter
	mu            sync.RWMutex
	perServerRate rate.Limit
	burstSize     int
}

// NewRateLimiter creates a limiter allowing globalRate and perServerRate
// requests per minute, with the given burst
func NewRateLimiter(globalRate, perServerRate, burstSize int) *RateLimiter {
	return &RateLimiter{
		global:        rate.NewLimiter(perMinute(globalRate), burstSize),
		perServer:     make(map[string]*rate.Limiter),
		perServerRate: perMinute(perServerRate),
		burstSize:     burstSize,
	}
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60)
}

// Wait blocks until a request to server is permitted or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, server string) error {
	if err := rl.global.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limit: %w", err)
	}

	if err := rl.limiterFor(server).Wait(ctx); err != nil {
		return fmt.Errorf("per-server rate limit for %s: %w", server, err)
	}

	return nil
}

// Allow reports whether a request may be sent now without waiting
func (rl *RateLimiter) Allow(server string) bool {
	if !rl.global.Allow() {
		return false
	}
	return rl.limiterFor(server).Allow()
}

// limiterFor gets or creates the limiter for a server
func (rl *RateLimiter) limiterFor(server string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.perServer[server]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := rl.perServer[server]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.perServerRate, rl.burstSize)
	rl.perServer[server] = limiter
	return limiter
}
