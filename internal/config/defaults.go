package config

import "time"

// DefaultServers are queried when no server is configured
var DefaultServers = []string{
	"ntp.psn.ru",
	"clock.psu.edu",
	"Time2.Stupi.SE",
}

// DefaultConfig returns a configuration with all defaults applied.
// Rate limiting, the circuit breaker and the DNS cache start enabled.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.NTP.RateLimit.Enabled = true
	cfg.NTP.CircuitBreaker.Enabled = true
	cfg.NTP.DNSCache.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for unspecified configuration fields
func ApplyDefaults(cfg *Config) {
	// NTP defaults
	if len(cfg.NTP.Servers) == 0 {
		cfg.NTP.Servers = append([]string(nil), DefaultServers...)
	}
	if cfg.NTP.Port == 0 {
		cfg.NTP.Port = 123
	}
	if cfg.NTP.Timeout == 0 {
		cfg.NTP.Timeout = 5 * time.Second
	}
	if cfg.NTP.Version == 0 {
		cfg.NTP.Version = 4
	}
	if cfg.NTP.ScrapeInterval == 0 {
		cfg.NTP.ScrapeInterval = 60 * time.Second
	}
	if cfg.NTP.MaxDivergence == 0 {
		cfg.NTP.MaxDivergence = 50 * time.Millisecond
	}
	if cfg.NTP.HistorySize == 0 {
		cfg.NTP.HistorySize = 10
	}

	// Rate limiting defaults, per minute
	if cfg.NTP.RateLimit.GlobalRate == 0 {
		cfg.NTP.RateLimit.GlobalRate = 120
	}
	if cfg.NTP.RateLimit.PerServerRate == 0 {
		cfg.NTP.RateLimit.PerServerRate = 12
	}
	if cfg.NTP.RateLimit.BurstSize == 0 {
		cfg.NTP.RateLimit.BurstSize = 3
	}

	// Circuit breaker defaults
	if cfg.NTP.CircuitBreaker.MaxRequests == 0 {
		cfg.NTP.CircuitBreaker.MaxRequests = 3
	}
	if cfg.NTP.CircuitBreaker.Interval == 0 {
		cfg.NTP.CircuitBreaker.Interval = 60 * time.Second
	}
	if cfg.NTP.CircuitBreaker.Timeout == 0 {
		cfg.NTP.CircuitBreaker.Timeout = 30 * time.Second
	}
	if cfg.NTP.CircuitBreaker.FailureThreshold == 0 {
		cfg.NTP.CircuitBreaker.FailureThreshold = 0.6
	}

	// DNS cache defaults
	if cfg.NTP.DNSCache.MinTTL == 0 {
		cfg.NTP.DNSCache.MinTTL = 5 * time.Minute
	}
	if cfg.NTP.DNSCache.MaxTTL == 0 {
		cfg.NTP.DNSCache.MaxTTL = 60 * time.Minute
	}
	if cfg.NTP.DNSCache.CleanupInterval == 0 {
		cfg.NTP.DNSCache.CleanupInterval = 10 * time.Minute
	}
	if cfg.NTP.DNSCache.StaleGrace == 0 {
		cfg.NTP.DNSCache.StaleGrace = 24 * time.Hour
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9560
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	// Metrics defaults
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "ntp"
	}
	if cfg.Metrics.Labels == nil {
		cfg.Metrics.Labels = make(map[string]string)
	}
}
