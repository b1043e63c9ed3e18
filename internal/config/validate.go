package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := validateRateLimit("rate_limit", c.RateLimit); err != nil {
		return err
	}
	if err := validateRateLimit("episode_rate_limit", c.EpisodeRateLimit); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalog() error {
	parsed, err := url.Parse(c.Catalog.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("catalog.endpoint must be an absolute URL, got %q", c.Catalog.Endpoint)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("catalog.endpoint must use http or https, got %q", parsed.Scheme)
	}
	return nil
}

func validateRateLimit(section string, r RateLimit) error {
	if r.RefillIntervalMS < 100 {
		return fmt.Errorf("%s.refill_interval_ms must be at least 100", section)
	}
	if r.MaxConcurrent > r.Reservoir {
		return fmt.Errorf("%s.max_concurrent (%d) cannot exceed reservoir (%d)", section, r.MaxConcurrent, r.Reservoir)
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendSQLite, CacheBackendJSON, CacheBackendMemory:
	default:
		return fmt.Errorf("cache.backend must be one of sqlite, json, memory; got %q", c.Cache.Backend)
	}
	if c.Cache.Backend != CacheBackendMemory && strings.TrimSpace(c.Cache.Path) == "" {
		return fmt.Errorf("cache.path is required for the %s backend", c.Cache.Backend)
	}
	return nil
}

func (c *Config) validateResolver() error {
	if c.Resolver.BatchSize > maxCompoundBatchSize {
		return fmt.Errorf("resolver.batch_size must not exceed %d (upstream complexity ceiling)", maxCompoundBatchSize)
	}
	if c.Resolver.VerificationThreshold >= 1 {
		return fmt.Errorf("resolver.verification_threshold must be below 1, got %.2f", c.Resolver.VerificationThreshold)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL (e.g. https://ntfy.sh/topic), got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json; got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error; got %q", c.Logging.Level)
	}
	return nil
}
