package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"animelink/internal/logging"
)

// ErrClosed is returned to callers waiting on a closed Limiter.
var ErrClosed = errors.New("ratelimit: limiter closed")

// Task is one unit of work admitted by a Limiter.
type Task func(ctx context.Context) error

// Stats is a point-in-time view of a limiter.
type Stats struct {
	Tokens     int
	InFlight   int
	GatedUntil time.Time
}

// Limiter admits tasks under a Budget. The zero value is not usable; call New.
type Limiter struct {
	name     string
	budget   Budget
	classify Classifier
	logger   *slog.Logger

	spacing *rate.Limiter
	slots   chan struct{}
	gate    gate

	mu     sync.Mutex
	tokens int
	wake   chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClassifier sets the failure classifier. The default never retries.
func WithClassifier(c Classifier) Option {
	return func(l *Limiter) {
		if c != nil {
			l.classify = c
		}
	}
}

// WithLogger sets the logger used for backoff warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithName labels log lines from this limiter.
func WithName(name string) Option {
	return func(l *Limiter) {
		if name != "" {
			l.name = name
		}
	}
}

// New constructs a Limiter and starts its refill ticker. Call Close to stop it.
func New(budget Budget, opts ...Option) *Limiter {
	budget = budget.normalized()
	l := &Limiter{
		name:     "default",
		budget:   budget,
		classify: FailAll,
		logger:   logging.NewNop(),
		slots:    make(chan struct{}, budget.MaxConcurrent),
		tokens:   budget.Reservoir,
		wake:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	limit := rate.Inf
	if budget.MinSpacing > 0 {
		limit = rate.Every(budget.MinSpacing)
	}
	l.spacing = rate.NewLimiter(limit, 1)
	go l.refillLoop(budget.RefillInterval)
	return l
}

// Close stops the refill ticker and releases reservoir waiters.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Stats reports the current reservoir, in-flight count, and gate deadline.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	tokens := l.tokens
	l.mu.Unlock()
	_, until := l.gate.current()
	return Stats{Tokens: tokens, InFlight: len(l.slots), GatedUntil: until}
}

// Schedule runs task once it is admitted and applies the classifier to
// failures. The returned error is the task's last error or a context error.
func (l *Limiter) Schedule(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("ratelimit: nil task")
	}
	for attempt := 1; ; attempt++ {
		if err := l.admit(ctx); err != nil {
			return err
		}
		err := l.runAdmitted(ctx, task)
		if err == nil {
			l.release()
			return nil
		}
		decision := l.classify(err)
		if decision.Action != Backoff {
			l.release()
			return err
		}
		maxAttempts := l.budget.MaxAttempts
		if decision.MaxAttempts > 0 {
			maxAttempts = decision.MaxAttempts
		}
		if attempt >= maxAttempts {
			l.release()
			logging.WarnWithContext(logging.WithContext(ctx, l.logger), "rate limit retries exhausted",
				"rate_limit_exhausted",
				logging.String("limiter", l.name),
				logging.Int("attempts", attempt),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "wait for the catalog quota to reset and retry"),
				logging.String(logging.FieldImpact, "request failed"),
			)
			return err
		}
		delay := decision.Delay
		if delay <= 0 {
			delay = DefaultRetryAfter + RetryAfterPad
		}
		resume := time.Now().Add(delay)
		// Gate before the slot is released so no queued task slips through.
		until, opened := l.gate.open(delay)
		l.release()
		if opened {
			logging.WarnWithContext(logging.WithContext(ctx, l.logger), "rate limited; pausing all requests",
				"rate_limited",
				logging.String("limiter", l.name),
				logging.Duration("backoff", delay),
				logging.Time("resume_at", until),
				logging.Int("attempt", attempt),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "reduce batch size or request rate"),
				logging.String(logging.FieldImpact, "requests delayed"),
			)
			continue
		}
		// An already open gate may end before this task's own delay.
		if err := sleepUntil(ctx, resume); err != nil {
			return err
		}
	}
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn under l and returns its value.
func Do[T any](ctx context.Context, l *Limiter, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.Schedule(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (l *Limiter) runAdmitted(ctx context.Context, task Task) error {
	return retry.Do(
		func() error { return task(ctx) },
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(TransientRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return l.classify(err).Action == RetryNow
		}),
		retry.OnRetry(func(n uint, err error) {
			logging.WithContext(ctx, l.logger).Debug("retrying transient failure",
				logging.String("limiter", l.name),
				logging.Error(err),
			)
		}),
	)
}

// admit blocks until the gate is clear, a permit and a slot are held, and
// spacing allows the next request. On success the caller owns one slot.
func (l *Limiter) admit(ctx context.Context) error {
	for {
		if err := l.gate.wait(ctx); err != nil {
			return err
		}
		if err := l.takeToken(ctx); err != nil {
			return err
		}
		select {
		case l.slots <- struct{}{}:
		case <-ctx.Done():
			l.returnToken()
			return ctx.Err()
		}
		if err := l.spacing.Wait(ctx); err != nil {
			l.release()
			l.returnToken()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if l.gate.active() {
			l.release()
			l.returnToken()
			continue
		}
		return nil
	}
}

func (l *Limiter) release() {
	<-l.slots
}

func (l *Limiter) takeToken(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.tokens > 0 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wake := l.wake
		l.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return ErrClosed
		}
	}
}

func (l *Limiter) returnToken() {
	l.mu.Lock()
	if l.tokens < l.budget.Max {
		l.tokens++
	}
	l.signalLocked()
	l.mu.Unlock()
}

func (l *Limiter) signalLocked() {
	close(l.wake)
	l.wake = make(chan struct{})
}

func (l *Limiter) refillLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			l.tokens = l.budget.Max
			l.signalLocked()
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
