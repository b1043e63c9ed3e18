package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	normalizeRateLimit(&c.RateLimit, Default().RateLimit)
	normalizeRateLimit(&c.EpisodeRateLimit, Default().EpisodeRateLimit)
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeResolver()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.Endpoint = strings.TrimSpace(c.Catalog.Endpoint)
	if value, ok := os.LookupEnv(defaultCatalogEndpointEnv); ok && strings.TrimSpace(value) != "" {
		c.Catalog.Endpoint = strings.TrimSpace(value)
	}
	if c.Catalog.Endpoint == "" {
		c.Catalog.Endpoint = defaultCatalogEndpoint
	}
	c.Catalog.Token = strings.TrimSpace(c.Catalog.Token)
	if c.Catalog.Token == "" {
		if value, ok := os.LookupEnv(defaultCatalogTokenEnv); ok {
			c.Catalog.Token = strings.TrimSpace(value)
		}
	}
	c.Catalog.UserAgent = strings.TrimSpace(c.Catalog.UserAgent)
	if c.Catalog.UserAgent == "" {
		c.Catalog.UserAgent = defaultCatalogUserAgent
	}
	if c.Catalog.RequestTimeout <= 0 {
		c.Catalog.RequestTimeout = defaultCatalogRequestTimeout
	}
}

func normalizeRateLimit(r *RateLimit, fallback RateLimit) {
	if r.Reservoir <= 0 {
		r.Reservoir = fallback.Reservoir
	}
	if r.RefillIntervalMS <= 0 {
		r.RefillIntervalMS = fallback.RefillIntervalMS
	}
	if r.MaxConcurrent <= 0 {
		r.MaxConcurrent = fallback.MaxConcurrent
	}
	if r.MinSpacingMS < 0 {
		r.MinSpacingMS = 0
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = fallback.MaxAttempts
	}
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if c.Cache.Backend == CacheBackendMemory {
		c.Cache.Path = ""
	} else {
		if strings.TrimSpace(c.Cache.Path) == "" {
			name := defaultCacheFileName
			if c.Cache.Backend == CacheBackendJSON {
				name = "store"
			}
			c.Cache.Path = filepath.Join(c.Paths.CacheDir, name)
		}
		var err error
		if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
			return fmt.Errorf("cache.path: %w", err)
		}
	}
	if c.Cache.DebounceMS < 0 {
		c.Cache.DebounceMS = 0
	}
	if c.Cache.GraceMS < 0 {
		c.Cache.GraceMS = 0
	}
	if c.Cache.StaleDays <= 0 {
		c.Cache.StaleDays = defaultCacheStaleDays
	}
	return nil
}

func (c *Config) normalizeResolver() {
	if c.Resolver.BatchSize <= 0 {
		c.Resolver.BatchSize = defaultResolverBatchSize
	}
	if c.Resolver.StepCeiling <= 0 {
		c.Resolver.StepCeiling = defaultResolverStepCeiling
	}
	if c.Resolver.VerificationThreshold <= 0 {
		c.Resolver.VerificationThreshold = defaultVerificationThreshold
	}
	if c.Resolver.Workers <= 0 {
		c.Resolver.Workers = defaultResolverWorkers
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(defaultNotificationsTopicEnvVar); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}
