package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"animelink/internal/logging"
)

const dispatchTimeout = 15 * time.Second

// Dispatcher delivers notifications in the background. Notify never blocks
// the caller; Wait drains outstanding deliveries on shutdown.
type Dispatcher struct {
	sink   Sink
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher wraps sink for fire-and-forget delivery.
func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	if sink == nil {
		sink = Noop{}
	}
	return &Dispatcher{sink: sink, logger: logging.NewComponentLogger(logger, "notifications")}
}

// Notify schedules delivery and returns immediately. The caller's context
// values are kept but its cancellation is not.
func (d *Dispatcher) Notify(ctx context.Context, kind Kind, message string) error {
	if d == nil {
		return nil
	}
	base := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(base, dispatchTimeout)
		defer cancel()
		if err := d.sink.Notify(sendCtx, kind, message); err != nil {
			logging.WarnWithContext(d.logger, "notification delivery failed", "notification_failed",
				logging.String("kind", string(kind)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "user did not receive this notification"),
			)
		}
	}()
	return nil
}

// Wait blocks until every scheduled delivery finished or ctx expires.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
