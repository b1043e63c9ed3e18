package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var (
	errSlowDown  = errors.New("slow down")
	errFlaky     = errors.New("flaky")
	errPermanent = errors.New("permanent")
)

func testClassifier(delay time.Duration) Classifier {
	return func(err error) Decision {
		switch {
		case errors.Is(err, errSlowDown):
			return Decision{Action: Backoff, Delay: delay}
		case errors.Is(err, errFlaky):
			return Decision{Action: RetryNow}
		default:
			return Decision{Action: Fail}
		}
	}
}

func fastBudget() Budget {
	return Budget{Reservoir: 100, RefillInterval: time.Minute, MaxConcurrent: 10}
}

func TestScheduleRunsTask(t *testing.T) {
	l := New(fastBudget())
	defer l.Close()

	var ran bool
	if err := l.Schedule(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if !ran {
		t.Fatal("expected task to run")
	}
	if got := l.Stats().Tokens; got != 99 {
		t.Fatalf("expected 99 tokens left, got %d", got)
	}
}

func TestDoReturnsValue(t *testing.T) {
	l := New(fastBudget())
	defer l.Close()

	got, err := Do(context.Background(), l, func(context.Context) (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestMaxConcurrentIsHonored(t *testing.T) {
	budget := fastBudget()
	budget.MaxConcurrent = 2
	l := New(budget)
	defer l.Close()

	var current, peak int32
	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Schedule(context.Background(), func(context.Context) error {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(30 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	if peak > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", peak)
	}
	if peak == 0 {
		t.Fatal("expected tasks to run")
	}
}

func TestReservoirRefill(t *testing.T) {
	l := New(Budget{Reservoir: 2, RefillInterval: 150 * time.Millisecond, MaxConcurrent: 5})
	defer l.Close()

	start := time.Now()
	for i := range 3 {
		if err := l.Schedule(context.Background(), func(context.Context) error { return nil }); err != nil {
			t.Fatalf("task %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("third task should wait for refill, finished after %v", elapsed)
	}
}

func TestMinSpacing(t *testing.T) {
	budget := fastBudget()
	budget.MinSpacing = 60 * time.Millisecond
	l := New(budget)
	defer l.Close()

	var mu sync.Mutex
	var starts []time.Time
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Schedule(context.Background(), func(context.Context) error {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if len(starts) != 3 {
		t.Fatalf("expected 3 starts, got %d", len(starts))
	}
	first, last := starts[0], starts[0]
	for _, s := range starts {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	if spread := last.Sub(first); spread < 100*time.Millisecond {
		t.Fatalf("expected admissions spread by spacing, got %v", spread)
	}
}

func TestTransientRetriedOnce(t *testing.T) {
	l := New(fastBudget(), WithClassifier(testClassifier(time.Second)))
	defer l.Close()

	var calls int32
	err := l.Schedule(context.Background(), func(context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery after retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if !l.Stats().GatedUntil.IsZero() {
		t.Fatal("transient failure must not open the gate")
	}
}

func TestTransientSurfacesAfterSecondFailure(t *testing.T) {
	l := New(fastBudget(), WithClassifier(testClassifier(time.Second)))
	defer l.Close()

	var calls int32
	err := l.Schedule(context.Background(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected flaky error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", calls)
	}
}

func TestFailIsNotRetried(t *testing.T) {
	l := New(fastBudget(), WithClassifier(testClassifier(time.Second)))
	defer l.Close()

	var calls int32
	err := l.Schedule(context.Background(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errPermanent
	})
	if !errors.Is(err, errPermanent) || calls != 1 {
		t.Fatalf("expected single permanent failure, got err=%v calls=%d", err, calls)
	}
}

func TestBackoffGatesAllPendingTasks(t *testing.T) {
	const delay = 200 * time.Millisecond
	budget := fastBudget()
	budget.MaxConcurrent = 1
	l := New(budget, WithClassifier(testClassifier(delay)))
	defer l.Close()

	var failedAt atomic.Int64
	var firstCalls int32
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := l.Schedule(context.Background(), func(context.Context) error {
			if atomic.AddInt32(&firstCalls, 1) == 1 {
				close(started)
				<-release
				failedAt.Store(time.Now().UnixNano())
				return errSlowDown
			}
			return nil
		})
		if err != nil {
			t.Errorf("first task: %v", err)
		}
	}()
	<-started

	var mu sync.Mutex
	var admitted []time.Time
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Schedule(context.Background(), func(context.Context) error {
				mu.Lock()
				admitted = append(admitted, time.Now())
				mu.Unlock()
				return nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	failed := time.Unix(0, failedAt.Load())
	if len(admitted) != 2 {
		t.Fatalf("expected 2 pending tasks to run, got %d", len(admitted))
	}
	for _, at := range admitted {
		if at.Sub(failed) < delay-10*time.Millisecond {
			t.Fatalf("pending task admitted %v after failure, expected >= %v", at.Sub(failed), delay)
		}
	}
	if firstCalls != 2 {
		t.Fatalf("expected failing task to be retried once, got %d calls", firstCalls)
	}
}

func TestBackoffHonorsMaxAttempts(t *testing.T) {
	budget := fastBudget()
	budget.MaxAttempts = 3
	l := New(budget, WithClassifier(testClassifier(10*time.Millisecond)))
	defer l.Close()

	var calls int32
	err := l.Schedule(context.Background(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errSlowDown
	})
	if !errors.Is(err, errSlowDown) {
		t.Fatalf("expected slow down error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDecisionMaxAttemptsOverridesBudget(t *testing.T) {
	classifier := func(error) Decision {
		return Decision{Action: Backoff, Delay: 5 * time.Millisecond, MaxAttempts: 2}
	}
	l := New(fastBudget(), WithClassifier(classifier))
	defer l.Close()

	var calls int32
	_ = l.Schedule(context.Background(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errSlowDown
	})
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestBackoffDuringOpenGateWaitsOwnDelay(t *testing.T) {
	l := New(fastBudget(), WithClassifier(testClassifier(150*time.Millisecond)))
	defer l.Close()

	var calls []time.Time
	err := l.Schedule(context.Background(), func(context.Context) error {
		calls = append(calls, time.Now())
		if len(calls) == 1 {
			l.gate.open(20 * time.Millisecond)
			return errSlowDown
		}
		return nil
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(calls))
	}
	if gap := calls[1].Sub(calls[0]); gap < 140*time.Millisecond {
		t.Fatalf("retry ran after %v; expected the task's own 150ms delay", gap)
	}
}

func TestCancelWhileGated(t *testing.T) {
	l := New(fastBudget())
	defer l.Close()
	l.gate.open(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := l.Schedule(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGateIsNotExtendedWhileActive(t *testing.T) {
	var g gate
	first, opened := g.open(100 * time.Millisecond)
	if !opened {
		t.Fatal("expected first open to start the gate")
	}
	second, opened := g.open(time.Hour)
	if opened {
		t.Fatal("expected second open to join the active gate")
	}
	if !second.Equal(first) {
		t.Fatalf("gate deadline moved from %v to %v", first, second)
	}
	if err := g.wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if g.active() {
		t.Fatal("gate should be closed after delay")
	}
}

func TestClosedLimiterReleasesReservoirWaiters(t *testing.T) {
	l := New(Budget{Reservoir: 1, RefillInterval: time.Hour, MaxConcurrent: 1})
	if err := l.Schedule(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("first task: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- l.Schedule(context.Background(), func(context.Context) error { return nil })
	}()
	time.Sleep(10 * time.Millisecond)
	l.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Close")
	}
}
