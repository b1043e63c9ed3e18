package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05.000"

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) write(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(p)
	return err
}

type field struct {
	key   string
	value slog.Value
}

// consoleHandler renders one line per record:
//
//	2026-01-02 15:04:05.000 WARN [0123abcd] resolver: message key=value
//
// The component and correlation id are lifted into the header.
type consoleHandler struct {
	out       *lockedWriter
	level     slog.Leveler
	addSource bool

	prefix      string
	component   string
	correlation string
	fields      []field
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{out: &lockedWriter{w: w}, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	component, correlation := h.component, h.correlation
	fields := make([]field, 0, len(h.fields)+record.NumAttrs())
	fields = append(fields, h.fields...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = h.collect(fields, h.prefix, attr, &component, &correlation)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var b strings.Builder
	b.Grow(96 + 24*len(fields))
	b.WriteString(ts.Local().Format(consoleTimeLayout))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')
	if correlation != "" {
		b.WriteString("[" + shortID(correlation) + "] ")
	}
	if component != "" {
		b.WriteString(component + ": ")
	}
	b.WriteString(message)
	if h.addSource {
		if src := record.Source(); src != nil {
			b.WriteString(" (" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + ")")
		}
	}
	for _, f := range lastWins(fields) {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(formatValue(f.value))
	}
	b.WriteByte('\n')
	return h.out.write([]byte(b.String()))
}

// collect flattens attr into fields. Top-level component and correlation
// attributes are diverted into the header instead.
func (h *consoleHandler) collect(fields []field, prefix string, attr slog.Attr, component, correlation *string) []field {
	if attr.Equal(slog.Attr{}) {
		return fields
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = prefix + attr.Key + "."
		}
		for _, child := range attr.Value.Group() {
			fields = h.collect(fields, next, child, component, correlation)
		}
		return fields
	}
	if prefix == "" {
		switch attr.Key {
		case FieldComponent:
			*component = attrString(attr.Value)
			return fields
		case FieldCorrelationID:
			*correlation = attrString(attr.Value)
			return fields
		}
	}
	if attr.Key == "" {
		return fields
	}
	return append(fields, field{key: prefix + attr.Key, value: attr.Value})
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fields = append([]field(nil), h.fields...)
	for _, attr := range attrs {
		clone.fields = clone.collect(clone.fields, clone.prefix, attr, &clone.component, &clone.correlation)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.fields = append([]field(nil), h.fields...)
	clone.prefix = h.prefix + name + "."
	return &clone
}

// lastWins keeps the last value for each key, in first-seen order.
func lastWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
