package ntp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/maximewewer/ntp-offset/pkg/logger"
)

// Resolver turns a server name into one or more IP addresses
type Resolver interface {
	Resolve(ctx context.Context, hostname string) ([]string, error)
}

// DNSCacheEntry represents a cached DNS resolution
type DNSCacheEntry struct {
	IPs        []string
	ExpiresAt  time.Time
	TTL        time.Duration
	ErrorCount int
}

// DNSCacheConfig configures the DNS cache behavior
type DNSCacheConfig struct {
	MinTTL time.Duration // TTL after a failed refresh (default: 5min)
	MaxTTL time.Duration // TTL after repeated successes (default: 60min)

	// StaleGrace is how long an expired entry is kept as a fallback for
	// failed refreshes before cleanup drops it (default: 24h)
	StaleGrace time.Duration
}

// DNSCache caches server name lookups with an adaptive TTL and falls back
// to the stale entry when a refresh fails
type DNSCache struct {
	mu     sync.RWMutex
	cache  map[string]*DNSCacheEntry
	minTTL     time.Duration
	maxTTL     time.Duration
	staleGrace time.Duration
	lookup func(ctx context.Context, host string) ([]string, error)
}

// NewDNSCache creates a new DNS cache using the pure Go resolver
func NewDNSCache(config DNSCacheConfig) *DNSCache {
	if config.MinTTL == 0 {
		config.MinTTL = 5 * time.Minute
	}
	if config.MaxTTL == 0 {
		config.MaxTTL = 60 * time.Minute
	}
	if config.StaleGrace == 0 {
		config.StaleGrace = 24 * time.Hour
	}

	resolver := &net.Resolver{PreferGo: true}
	return &DNSCache{
		cache:  make(map[string]*DNSCacheEntry),
		minTTL:     config.MinTTL,
		maxTTL:     config.MaxTTL,
		staleGrace: config.StaleGrace,
		lookup: resolver.LookupHost,
	}
}

// Resolve returns the addresses for hostname, from cache when fresh
func (c *DNSCache) Resolve(ctx context.Context, hostname string) ([]string, error) {
	if net.ParseIP(hostname) != nil {
		return []string{hostname}, nil
	}

	c.mu.RLock()
	entry, exists := c.cache[hostname]
	c.mu.RUnlock()

	if exists && time.Now().Before(entry.ExpiresAt) {
		logger.SafeDebug("dns", "DNS cache hit", map[string]interface{}{
			"hostname": hostname,
			"ips":      len(entry.IPs),
		})
		return entry.IPs, nil
	}

	ips, err := c.lookup(ctx, hostname)
	if err != nil {
		if exists {
			c.mu.Lock()
			entry.ErrorCount++
			errorCount := entry.ErrorCount
			c.mu.Unlock()

			logger.SafeWarn("dns", "DNS resolution failed, using stale cache", map[string]interface{}{
				"hostname":    hostname,
				"error":       err.Error(),
				"error_count": errorCount,
			})
			return entry.IPs, nil
		}
		return nil, err
	}

	ttl := c.nextTTL(entry)

	c.mu.Lock()
	c.cache[hostname] = &DNSCacheEntry{
		IPs:       ips,
		ExpiresAt: time.Now().Add(ttl),
		TTL:       ttl,
	}
	c.mu.Unlock()

	logger.SafeDebug("dns", "DNS cache updated", map[string]interface{}{
		"hostname": hostname,
		"ips":      len(ips),
		"ttl":      ttl.String(),
	})

	return ips, nil
}

// nextTTL starts in the middle of the range, drops to the minimum after
// errors and rises to the maximum after clean refreshes
func (c *DNSCache) nextTTL(previous *DNSCacheEntry) time.Duration {
	if previous == nil {
		return (c.minTTL + c.maxTTL) / 2
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if previous.ErrorCount > 0 {
		return c.minTTL
	}
	return c.maxTTL
}

// Invalidate removes a hostname from the cache
func (c *DNSCache) Invalidate(hostname string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cache, hostname)
}

// Len returns the number of cached names, fresh or stale
func (c *DNSCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.cache)
}

// CleanupExpired removes entries expired for longer than the stale grace
// period and returns how many were dropped. Entries still within the grace
// period stay available to the stale fallback of Resolve.
func (c *DNSCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for hostname, entry := range c.cache {
		if now.After(entry.ExpiresAt.Add(c.staleGrace)) {
			delete(c.cache, hostname)
			removed++
		}
	}

	if removed > 0 {
		logger.SafeDebug("dns", "Cleaned up expired DNS entries", map[string]interface{}{
			"removed": removed,
		})
	}

	return removed
}

// StartCleanupWorker drops expired entries every interval until ctx is done
func (c *DNSCache) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("dns", "DNS cache cleanup worker stopped")
			return
		case <-ticker.C:
			c.CleanupExpired()
		}
	}
}
