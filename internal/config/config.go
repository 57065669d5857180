// Package config loads ntp-offset settings from YAML and the environment.
//
// Loaders:
//
//	LoadFromEnvVarsOnly()              - defaults + environment
//	LoadFromYamlFile(path)             - defaults + YAML, no environment
//	LoadFromYamlWithEnvOverrides(path) - defaults + YAML + environment
//	                                     Priority: Env Vars > YAML > Defaults
//
// Environment variables:
//
//	NTP:             NTP_SERVERS (comma-separated), NTP_PORT, NTP_TIMEOUT,
//	                 NTP_VERSION, NTP_SCRAPE_INTERVAL, NTP_VERIFY,
//	                 NTP_MAX_DIVERGENCE, NTP_HISTORY_SIZE
//	RATE_LIMIT:      RATE_LIMIT_ENABLED, RATE_LIMIT_GLOBAL,
//	                 RATE_LIMIT_PER_SERVER, RATE_LIMIT_BURST_SIZE
//	CIRCUIT_BREAKER: CIRCUIT_BREAKER_ENABLED, CIRCUIT_BREAKER_MAX_REQUESTS,
//	                 CIRCUIT_BREAKER_INTERVAL, CIRCUIT_BREAKER_TIMEOUT,
//	                 CIRCUIT_BREAKER_FAILURE_THRESHOLD
//	DNS_CACHE:       DNS_CACHE_ENABLED, DNS_CACHE_MIN_TTL, DNS_CACHE_MAX_TTL,
//	                 DNS_CACHE_CLEANUP_INTERVAL, DNS_CACHE_STALE_GRACE
//	SERVER:          NTP_OFFSET_ADDRESS, NTP_OFFSET_PORT,
//	                 SERVER_READ_TIMEOUT, SERVER_WRITE_TIMEOUT
//	LOGGING:         LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, LOG_ENABLE_FILE,
//	                 LOG_FILE_PATH
//	METRICS:         METRICS_NAMESPACE, METRICS_SUBSYSTEM
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/maximewewer/ntp-offset/pkg/logger"
)

// Config represents the complete application configuration
type Config struct {
	NTP     NTPConfig     `yaml:"ntp"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// NTPConfig contains NTP client configuration
type NTPConfig struct {
	Servers        []string             `yaml:"servers"`
	Port           int                  `yaml:"port"`
	Timeout        time.Duration        `yaml:"timeout"`
	Version        int                  `yaml:"version"`
	ScrapeInterval time.Duration        `yaml:"scrape_interval"`
	Verify         bool                 `yaml:"verify"`
	MaxDivergence  time.Duration        `yaml:"max_divergence"`
	HistorySize    int                  `yaml:"history_size"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	DNSCache       DNSCacheConfig       `yaml:"dns_cache"`
}

// RateLimitConfig contains rate limiting configuration. Rates are requests per minute.
type RateLimitConfig struct {
	Enabled       bool `yaml:"enabled"`
	GlobalRate    int  `yaml:"global_rate"`
	PerServerRate int  `yaml:"per_server_rate"`
	BurstSize     int  `yaml:"burst_size"`
}

// CircuitBreakerConfig contains circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
}

// DNSCacheConfig contains DNS cache configuration
type DNSCacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	MinTTL          time.Duration `yaml:"min_ttl"`
	MaxTTL          time.Duration `yaml:"max_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	StaleGrace      time.Duration `yaml:"stale_grace"`
}

// ServerConfig contains the metrics HTTP server configuration used in watch mode
type ServerConfig struct {
	Address      string        `yaml:"address"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	EnableFile bool   `yaml:"enable_file"`
	FilePath   string `yaml:"file_path"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
	Labels    map[string]string `yaml:"labels"`
}

// LoggerConfig converts the logging section for logger.InitLogger
func (c LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		EnableFile: c.EnableFile,
		Component:  "ntp-offset",
	}
}

// LoadFromYamlFile reads configuration from a YAML file only (no env var overrides)
func LoadFromYamlFile(path string) (*Config, error) {
	cfg, err := readYamlFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration", err)
		return nil, fmt.Errorf("configuration validation failed for %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromYamlWithEnvOverrides loads the YAML file, then applies environment
// overrides. A missing or unreadable file falls back to defaults.
func LoadFromYamlWithEnvOverrides(path string) (*Config, error) {
	cfg, err := readYamlFile(path)
	if err != nil {
		logger.Warn("config", "Failed to load YAML config file, falling back to env vars only")
		cfg = DefaultConfig()
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration after env overrides", err)
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromEnvVarsOnly loads configuration from defaults and environment variables
func LoadFromEnvVarsOnly() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration from environment", err)
		return nil, fmt.Errorf("environment configuration validation failed: %w", err)
	}

	return cfg, nil
}

// readYamlFile decodes path over the defaults, so keys missing from the
// file keep their default value
func readYamlFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("config", "Failed to read config file", err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.Error("config", "Failed to parse config file", err)
		return nil, fmt.Errorf("failed to parse YAML config file %s: %w", path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to an existing config.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// NTP
	if servers := os.Getenv("NTP_SERVERS"); servers != "" {
		cfg.NTP.Servers = parseCommaSeparated(servers)
	}
	envInt("NTP_PORT", &cfg.NTP.Port)
	envDuration("NTP_TIMEOUT", &cfg.NTP.Timeout)
	envInt("NTP_VERSION", &cfg.NTP.Version)
	envDuration("NTP_SCRAPE_INTERVAL", &cfg.NTP.ScrapeInterval)
	envBool("NTP_VERIFY", &cfg.NTP.Verify)
	envDuration("NTP_MAX_DIVERGENCE", &cfg.NTP.MaxDivergence)
	envInt("NTP_HISTORY_SIZE", &cfg.NTP.HistorySize)

	// Rate limit
	envBool("RATE_LIMIT_ENABLED", &cfg.NTP.RateLimit.Enabled)
	envInt("RATE_LIMIT_GLOBAL", &cfg.NTP.RateLimit.GlobalRate)
	envInt("RATE_LIMIT_PER_SERVER", &cfg.NTP.RateLimit.PerServerRate)
	envInt("RATE_LIMIT_BURST_SIZE", &cfg.NTP.RateLimit.BurstSize)

	// Circuit breaker
	envBool("CIRCUIT_BREAKER_ENABLED", &cfg.NTP.CircuitBreaker.Enabled)
	if maxRequests := os.Getenv("CIRCUIT_BREAKER_MAX_REQUESTS"); maxRequests != "" {
		if r, err := strconv.ParseUint(maxRequests, 10, 32); err == nil {
			cfg.NTP.CircuitBreaker.MaxRequests = uint32(r)
		}
	}
	envDuration("CIRCUIT_BREAKER_INTERVAL", &cfg.NTP.CircuitBreaker.Interval)
	envDuration("CIRCUIT_BREAKER_TIMEOUT", &cfg.NTP.CircuitBreaker.Timeout)
	if threshold := os.Getenv("CIRCUIT_BREAKER_FAILURE_THRESHOLD"); threshold != "" {
		if f, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.NTP.CircuitBreaker.FailureThreshold = f
		}
	}

	// DNS cache
	envBool("DNS_CACHE_ENABLED", &cfg.NTP.DNSCache.Enabled)
	envDuration("DNS_CACHE_MIN_TTL", &cfg.NTP.DNSCache.MinTTL)
	envDuration("DNS_CACHE_MAX_TTL", &cfg.NTP.DNSCache.MaxTTL)
	envDuration("DNS_CACHE_CLEANUP_INTERVAL", &cfg.NTP.DNSCache.CleanupInterval)
	envDuration("DNS_CACHE_STALE_GRACE", &cfg.NTP.DNSCache.StaleGrace)

	// Metrics server
	envString("NTP_OFFSET_ADDRESS", &cfg.Server.Address)
	envInt("NTP_OFFSET_PORT", &cfg.Server.Port)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)

	// Logging
	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)
	envString("LOG_OUTPUT", &cfg.Logging.Output)
	envBool("LOG_ENABLE_FILE", &cfg.Logging.EnableFile)
	envString("LOG_FILE_PATH", &cfg.Logging.FilePath)

	// Metrics
	envString("METRICS_NAMESPACE", &cfg.Metrics.Namespace)
	envString("METRICS_SUBSYSTEM", &cfg.Metrics.Subsystem)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// parseCommaSeparated splits a comma-separated list, dropping empty items
func parseCommaSeparated(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
