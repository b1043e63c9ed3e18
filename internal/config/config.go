package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Catalog contains configuration for the upstream catalog API.
type Catalog struct {
	Endpoint       string `toml:"endpoint"`
	Token          string `toml:"token"`
	UserAgent      string `toml:"user_agent"`
	RequestTimeout int    `toml:"request_timeout"`
}

// RateLimit describes one limiter profile. Intervals are expressed in
// milliseconds so the sample file stays readable.
type RateLimit struct {
	Reservoir        int `toml:"reservoir"`
	RefillIntervalMS int `toml:"refill_interval_ms"`
	MaxConcurrent    int `toml:"max_concurrent"`
	MinSpacingMS     int `toml:"min_spacing_ms"`
	MaxAttempts      int `toml:"max_attempts"`
}

// RefillInterval returns the reservoir refill period.
func (r RateLimit) RefillInterval() time.Duration {
	return time.Duration(r.RefillIntervalMS) * time.Millisecond
}

// MinSpacing returns the minimum gap between admissions.
func (r RateLimit) MinSpacing() time.Duration {
	return time.Duration(r.MinSpacingMS) * time.Millisecond
}

// Cache contains configuration for the response cache and its persistence.
type Cache struct {
	Backend    string `toml:"backend"` // sqlite, json, or memory
	Path       string `toml:"path"`
	DebounceMS int    `toml:"debounce_ms"`
	GraceMS    int    `toml:"grace_ms"`
	StaleDays  int    `toml:"stale_days"`
}

// Debounce returns the persistence quiet period.
func (c Cache) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Grace returns how long a settled request keeps absorbing duplicates.
func (c Cache) Grace() time.Duration {
	return time.Duration(c.GraceMS) * time.Millisecond
}

// StaleWindow returns how long an expired entry is kept for fallback use.
func (c Cache) StaleWindow() time.Duration {
	return time.Duration(c.StaleDays) * 24 * time.Hour
}

// Resolver contains tuning for title and season resolution.
type Resolver struct {
	BatchSize             int     `toml:"batch_size"`
	StepCeiling           int     `toml:"step_ceiling"`
	VerificationThreshold float64 `toml:"verification_threshold"`
	Workers               int     `toml:"workers"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	File       bool   `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for animelink.
//
// Configuration sections by subsystem:
//   - Paths: cache and log directories
//   - Catalog: upstream endpoint, token, and HTTP timeout
//   - RateLimit: limiter profile for catalog queries
//   - EpisodeRateLimit: limiter profile for the airing schedule lane
//   - Cache: persistence backend, debounce, grace window
//   - Resolver: compound batch size, season walk ceiling, verification
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and file rotation
type Config struct {
	Paths            Paths         `toml:"paths"`
	Catalog          Catalog       `toml:"catalog"`
	RateLimit        RateLimit     `toml:"rate_limit"`
	EpisodeRateLimit RateLimit     `toml:"episode_rate_limit"`
	Cache            Cache         `toml:"cache"`
	Resolver         Resolver      `toml:"resolver"`
	Notifications    Notifications `toml:"notifications"`
	Logging          Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/animelink/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("animelink.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheDir, c.Paths.LogDir}
	if c.Cache.Backend != CacheBackendMemory && strings.TrimSpace(c.Cache.Path) != "" {
		dirs = append(dirs, filepath.Dir(c.Cache.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CatalogTimeout returns the per-request HTTP timeout for the catalog API.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "animelink")
	}
	return defaultCacheDirFallback
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML. Secrets are masked.
func (c *Config) Encode() (string, error) {
	masked := *c
	if masked.Catalog.Token != "" {
		masked.Catalog.Token = "********"
	}
	data, err := toml.Marshal(masked)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
