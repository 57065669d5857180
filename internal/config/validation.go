package config

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if err := validateNTP(&cfg.NTP); err != nil {
		return err
	}

	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	if err := validateMetrics(&cfg.Metrics); err != nil {
		return err
	}

	return nil
}

func validateNTP(cfg *NTPConfig) error {
	if len(cfg.Servers) == 0 {
		return errors.New("at least one NTP server must be configured")
	}
	for i, server := range cfg.Servers {
		if strings.TrimSpace(server) == "" {
			return errors.New("servers[" + strconv.Itoa(i) + "]: name is empty")
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New("ntp port must be between 1 and 65535, got " + strconv.Itoa(cfg.Port))
	}

	if cfg.Timeout < 100*time.Millisecond || cfg.Timeout > 60*time.Second {
		return errors.New("timeout must be between 100ms and 60s")
	}

	if cfg.Version < 1 || cfg.Version > 4 {
		return errors.New("ntp version must be between 1 and 4, got " + strconv.Itoa(cfg.Version))
	}

	if cfg.ScrapeInterval < time.Second {
		return errors.New("scrape_interval must be at least 1s")
	}

	if cfg.MaxDivergence < 0 {
		return errors.New("max_divergence must not be negative")
	}

	if cfg.HistorySize < 1 || cfg.HistorySize > 1000 {
		return errors.New("history_size must be between 1 and 1000, got " + strconv.Itoa(cfg.HistorySize))
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.GlobalRate < 1 {
			return errors.New("rate_limit.global_rate must be at least 1")
		}
		if cfg.RateLimit.PerServerRate < 1 {
			return errors.New("rate_limit.per_server_rate must be at least 1")
		}
		if cfg.RateLimit.BurstSize < 1 {
			return errors.New("rate_limit.burst_size must be at least 1")
		}
	}

	if cfg.CircuitBreaker.Enabled {
		if cfg.CircuitBreaker.FailureThreshold <= 0 || cfg.CircuitBreaker.FailureThreshold > 1 {
			return errors.New("circuit_breaker.failure_threshold must be in (0, 1]")
		}
		if cfg.CircuitBreaker.Timeout < time.Second {
			return errors.New("circuit_breaker.timeout must be at least 1s")
		}
	}

	if cfg.DNSCache.Enabled && cfg.DNSCache.MinTTL > cfg.DNSCache.MaxTTL {
		return errors.New("dns_cache.min_ttl must not exceed dns_cache.max_ttl")
	}
	if cfg.DNSCache.StaleGrace < 0 {
		return errors.New("dns_cache.stale_grace must not be negative")
	}

	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New("port must be between 1 and 65535, got " + strconv.Itoa(cfg.Port))
	}

	if cfg.ReadTimeout < 1*time.Second || cfg.ReadTimeout > 60*time.Second {
		return errors.New("read_timeout must be between 1s and 60s")
	}

	if cfg.WriteTimeout < 1*time.Second || cfg.WriteTimeout > 60*time.Second {
		return errors.New("write_timeout must be between 1s and 60s")
	}

	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLevels[cfg.Level] {
		return errors.New("invalid log level (must be trace, debug, info, warn, error, fatal, or panic)")
	}

	if cfg.Format != "json" && cfg.Format != "console" {
		return errors.New("invalid log format (must be json or console)")
	}

	if cfg.Output != "stdout" && cfg.Output != "stderr" && cfg.Output != "file" {
		return errors.New("invalid log output (must be stdout, stderr, or file)")
	}

	if cfg.EnableFile && cfg.FilePath == "" {
		return errors.New("file_path is required when enable_file is true")
	}

	return nil
}

func validateMetrics(cfg *MetricsConfig) error {
	if cfg.Namespace == "" {
		return errors.New("namespace is required")
	}

	return nil
}
