package ratelimit

import "time"

// Action is what the limiter does with a failed task.
type Action int

const (
	// Fail surfaces the error to the caller.
	Fail Action = iota
	// RetryNow retries the task once after TransientRetryDelay without
	// touching the shared gate.
	RetryNow
	// Backoff opens the shared gate for Delay and re-admits the task.
	Backoff
)

func (a Action) String() string {
	switch a {
	case RetryNow:
		return "retry_now"
	case Backoff:
		return "backoff"
	default:
		return "fail"
	}
}

// Decision is a classifier verdict for one failure.
type Decision struct {
	Action Action
	Delay  time.Duration
	// MaxAttempts overrides Budget.MaxAttempts when positive.
	MaxAttempts int
}

// Classifier maps a task error to a Decision.
type Classifier func(err error) Decision

// FailAll never retries.
func FailAll(error) Decision { return Decision{Action: Fail} }
