package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"animelink/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The cache defaults to the in-memory backend and notifications are off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Cache.Backend = "memory"
	cfgVal.Cache.Path = ""
	cfgVal.Cache.DebounceMS = 10
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Logging.Format = "json"
	cfgVal.Logging.Level = "error"
	cfgVal.Logging.File = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEndpoint points the catalog client at url.
func WithEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Endpoint = url
	}
}

// WithCacheBackend selects a file-backed cache stored under the temp dir.
func WithCacheBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Backend = backend
		switch backend {
		case "sqlite":
			b.cfg.Cache.Path = filepath.Join(b.baseDir, "cache", "cache.db")
		case "json":
			b.cfg.Cache.Path = filepath.Join(b.baseDir, "cache", "json")
		default:
			b.cfg.Cache.Path = ""
		}
	}
}

// WithFastRateLimits removes spacing so tests do not wait between requests.
func WithFastRateLimits() ConfigOption {
	return func(b *configBuilder) {
		for _, r := range []*config.RateLimit{&b.cfg.RateLimit, &b.cfg.EpisodeRateLimit} {
			r.MinSpacingMS = 0
			r.MaxConcurrent = 8
		}
	}
}

// WriteConfig encodes cfg as TOML at path.
func WriteConfig(t testing.TB, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config %s: %v", path, err)
	}
}
