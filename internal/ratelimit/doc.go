// Package ratelimit schedules outbound calls against a shared request budget.
//
// A Limiter admits a task once four conditions hold: no shared backoff gate
// is active, a permit is left in the reservoir, a concurrency slot is free,
// and the minimum spacing since the previous admission has elapsed. The
// reservoir is refilled to its maximum on a fixed interval.
//
// Failed tasks are classified by a Classifier. A Backoff decision opens a
// single gate that delays every pending and future admission, not just the
// failing caller; a RetryNow decision retries the task once immediately.
package ratelimit
