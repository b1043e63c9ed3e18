package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"animelink/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("ANIMELINK_TOKEN", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCache := filepath.Join(tempHome, ".cache", "animelink")
	if cfg.Paths.CacheDir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, wantCache)
	}
	if cfg.Cache.Path != filepath.Join(wantCache, "cache.db") {
		t.Fatalf("unexpected cache path: %q", cfg.Cache.Path)
	}
	if cfg.Cache.Backend != config.CacheBackendSQLite {
		t.Fatalf("unexpected cache backend: %q", cfg.Cache.Backend)
	}
	if cfg.RateLimit.Reservoir != 90 || cfg.RateLimit.MaxConcurrent != 10 || cfg.RateLimit.MinSpacingMS != 100 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.EpisodeRateLimit.Reservoir != 60 || cfg.EpisodeRateLimit.MaxConcurrent != 3 || cfg.EpisodeRateLimit.MinSpacingMS != 300 {
		t.Fatalf("unexpected episode rate limit defaults: %+v", cfg.EpisodeRateLimit)
	}
	if cfg.Resolver.BatchSize != 60 {
		t.Fatalf("expected batch size 60, got %d", cfg.Resolver.BatchSize)
	}
	if cfg.Cache.Debounce().Seconds() != 2 {
		t.Fatalf("expected 2s debounce, got %s", cfg.Cache.Debounce())
	}
}

func TestLoadUsesEnvToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ANIMELINK_TOKEN", "  secret-token ")
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Catalog.Token != "secret-token" {
		t.Fatalf("expected token from env, got %q", cfg.Catalog.Token)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ANIMELINK_TOKEN", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[catalog]
endpoint = "http://127.0.0.1:9999/graphql"
token = "abc"

[cache]
backend = "JSON"

[resolver]
batch_size = 30

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Catalog.Endpoint != "http://127.0.0.1:9999/graphql" {
		t.Fatalf("unexpected endpoint: %q", cfg.Catalog.Endpoint)
	}
	if cfg.Cache.Backend != config.CacheBackendJSON {
		t.Fatalf("expected json backend, got %q", cfg.Cache.Backend)
	}
	if !strings.HasSuffix(cfg.Cache.Path, filepath.Join("animelink", "store")) {
		t.Fatalf("unexpected json store path: %q", cfg.Cache.Path)
	}
	if cfg.Resolver.BatchSize != 30 {
		t.Fatalf("expected batch size 30, got %d", cfg.Resolver.BatchSize)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging values, got %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"endpoint", func(c *config.Config) { c.Catalog.Endpoint = "not a url" }, "catalog.endpoint"},
		{"backend", func(c *config.Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"batch", func(c *config.Config) { c.Resolver.BatchSize = 100 }, "resolver.batch_size"},
		{"concurrency", func(c *config.Config) { c.RateLimit.MaxConcurrent = 500 }, "rate_limit.max_concurrent"},
		{"ntfy", func(c *config.Config) { c.Notifications.NtfyTopic = "topic-only" }, "notifications.ntfy_topic"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[catalog]\nendpointt = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected parse error for unknown key")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if cfg.RateLimit.Reservoir != 90 {
		t.Fatalf("expected sample reservoir 90, got %d", cfg.RateLimit.Reservoir)
	}
}

func TestEncodeMasksToken(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Token = "very-secret"
	out, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(out, "very-secret") {
		t.Fatalf("expected token to be masked, got %s", out)
	}
	if cfg.Catalog.Token != "very-secret" {
		t.Fatal("Encode must not mutate the receiver")
	}
}
