package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"animelink/internal/config"
	"animelink/internal/logging"
)

const userAgent = "animelink/0.1.0"

// Kind classifies a notification.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
)

// Sink receives notifications. Implementations may block; callers that must
// not wait wrap them in a Dispatcher.
type Sink interface {
	Notify(ctx context.Context, kind Kind, message string) error
}

// NewSink builds a sink backed by ntfy when configured and by the logger
// otherwise. Error notifications can be switched off entirely.
func NewSink(cfg *config.Config, logger *slog.Logger) Sink {
	var sink Sink = logSink{logger: logging.NewComponentLogger(logger, "notifications")}
	if cfg == nil {
		return sink
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		sink = &ntfySink{endpoint: topic, client: &http.Client{Timeout: timeout}}
	}
	if !cfg.Notifications.Errors {
		sink = filterSink{next: sink, drop: KindError}
	}
	return sink
}

// Noop discards every notification.
type Noop struct{}

func (Noop) Notify(context.Context, Kind, string) error { return nil }

type filterSink struct {
	next Sink
	drop Kind
}

func (f filterSink) Notify(ctx context.Context, kind Kind, message string) error {
	if kind == f.drop {
		return nil
	}
	return f.next.Notify(ctx, kind, message)
}

type logSink struct {
	logger *slog.Logger
}

func (l logSink) Notify(ctx context.Context, kind Kind, message string) error {
	logger := logging.WithContext(ctx, l.logger)
	attrs := []logging.Attr{logging.String("kind", string(kind))}
	switch kind {
	case KindError:
		logging.ErrorWithContext(logger, message, "notification_error", attrs...)
	case KindWarning:
		logging.WarnWithContext(logger, message, "notification_warning", attrs...)
	default:
		logger.Info(message, logging.Args(attrs...)...)
	}
	return nil
}

type ntfySink struct {
	endpoint string
	client   *http.Client
}

func (n *ntfySink) Notify(ctx context.Context, kind Kind, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", titleFor(kind))
	req.Header.Set("Tags", strings.Join([]string{"animelink", string(kind)}, ","))
	if kind == KindError {
		req.Header.Set("Priority", "high")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func titleFor(kind Kind) string {
	switch kind {
	case KindError:
		return "animelink - Lookup Failed"
	case KindWarning:
		return "animelink - Warning"
	case KindSuccess:
		return "animelink - Done"
	default:
		return "animelink"
	}
}
