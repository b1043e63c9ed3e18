package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"animelink/internal/config"
	"animelink/internal/logging"
	"animelink/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesRotatedFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.File = true
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file")

	content := readLog(t, filepath.Join(cfg.Paths.LogDir, "animelink.log"))
	if !strings.Contains(content, "hello file") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content := readLog(t, logPath)
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerRendersComponentAndCorrelation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRequestID(context.Background(), "0123456789abcdef")
	ctx = services.WithGroupKey(ctx, "Frieren2023")
	logger := logging.WithContext(ctx, logging.NewComponentLogger(base, "resolver"))
	logger.Info("resolved title", logging.Int("media_id", 154587))

	content := readLog(t, logPath)
	for _, fragment := range []string{"[01234567]", "resolver: resolved title", "group_key=Frieren2023", "media_id=154587"} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "stale cache served", "cache_stale_fallback", logging.Error(errors.New("upstream 500")))

	line := strings.TrimSpace(readLog(t, logPath))
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, line)
	}
	if payload["level"] != "warn" || payload["msg"] != "stale cache served" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload[logging.FieldEventType] != "cache_stale_fallback" {
		t.Fatalf("expected event type injected, got %v", payload[logging.FieldEventType])
	}
	if _, ok := payload[logging.FieldImpact]; !ok {
		t.Fatalf("expected impact injected, got %v", payload)
	}
	if _, ok := payload["source"]; !ok {
		t.Fatalf("expected source for debug level logger, got %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "test")
	logger.Error("ignored")
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("expected nop logger to be disabled")
	}
}

func TestConsoleLoggerGroupsAndOverrides(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "groups.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger := base.With(logging.String("namespace", "search")).WithGroup("flush")
	logger.Info("cache persisted", logging.Int("written", 3), logging.String("note", "two words"))
	base.Info("override", logging.String("k", "a"), logging.String("k", "b"))

	content := readLog(t, logPath)
	for _, fragment := range []string{"namespace=search", "flush.written=3", `flush.note="two words"`, "override k=b"} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
	if strings.Contains(content, "k=a") {
		t.Fatalf("expected last value to win, got %q", content)
	}
}
