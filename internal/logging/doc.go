// Package logging assembles structured slog loggers and formatting helpers used
// across animelink components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing (including rotated log files), and exposes context-aware helpers so
// lookup code can automatically tag log lines with correlation IDs, group
// keys, and release names. The package also provides a no-op logger for tests
// and wiring code that cannot fail.
package logging
