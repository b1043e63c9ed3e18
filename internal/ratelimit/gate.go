package ratelimit

import (
	"context"
	"sync"
	"time"
)

// gate is the shared backoff barrier. While open, admissions wait on done.
// A failure during an active gate joins it instead of extending it.
type gate struct {
	mu    sync.Mutex
	done  chan struct{}
	until time.Time
}

func (g *gate) open(d time.Duration) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done != nil {
		return g.until, false
	}
	ch := make(chan struct{})
	g.done = ch
	g.until = time.Now().Add(d)
	time.AfterFunc(d, func() {
		g.mu.Lock()
		if g.done == ch {
			g.done = nil
			g.until = time.Time{}
		}
		g.mu.Unlock()
		close(ch)
	})
	return g.until, true
}

func (g *gate) current() (chan struct{}, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done, g.until
}

func (g *gate) active() bool {
	ch, _ := g.current()
	return ch != nil
}

func (g *gate) wait(ctx context.Context) error {
	for {
		ch, _ := g.current()
		if ch == nil {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
