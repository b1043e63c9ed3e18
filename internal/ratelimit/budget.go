package ratelimit

import "time"

// Backoff timings shared by classifiers.
const (
	DefaultRetryAfter   = 60 * time.Second
	RetryAfterPad       = time.Second
	TransportBackoff    = 61 * time.Second
	TransientRetryDelay = time.Millisecond
	DefaultMaxAttempts  = 6
)

// Budget describes a limiter profile.
type Budget struct {
	// Reservoir is the number of permits available at start.
	Reservoir int
	// Max is the value the reservoir is refilled to. Zero means Reservoir.
	Max            int
	RefillInterval time.Duration
	MaxConcurrent  int
	MinSpacing     time.Duration
	// MaxAttempts bounds how often a task is re-admitted after backoff.
	MaxAttempts int
}

// DefaultBudget is the catalog query profile: 90 requests per minute, ten in
// flight, 100ms apart.
func DefaultBudget() Budget {
	return Budget{
		Reservoir:      90,
		Max:            90,
		RefillInterval: time.Minute,
		MaxConcurrent:  10,
		MinSpacing:     100 * time.Millisecond,
		MaxAttempts:    DefaultMaxAttempts,
	}
}

// EpisodeBudget is the slower airing-schedule profile.
func EpisodeBudget() Budget {
	return Budget{
		Reservoir:      60,
		Max:            60,
		RefillInterval: time.Minute,
		MaxConcurrent:  3,
		MinSpacing:     300 * time.Millisecond,
		MaxAttempts:    DefaultMaxAttempts,
	}
}

func (b Budget) normalized() Budget {
	if b.Reservoir <= 0 {
		b.Reservoir = 1
	}
	if b.Max <= 0 {
		b.Max = b.Reservoir
	}
	if b.Reservoir > b.Max {
		b.Reservoir = b.Max
	}
	if b.RefillInterval <= 0 {
		b.RefillInterval = time.Minute
	}
	if b.MaxConcurrent <= 0 {
		b.MaxConcurrent = 1
	}
	if b.MinSpacing < 0 {
		b.MinSpacing = 0
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultMaxAttempts
	}
	return b
}
