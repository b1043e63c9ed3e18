package gateway

import (
	"fmt"
	"strings"
	"time"

	"animelink/internal/services"
)

// UpstreamError is one structured error reported by the catalog.
type UpstreamError struct {
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("catalog error %d: %s", e.Status, e.Message)
	}
	return "catalog error: " + e.Message
}

// Is matches services.ErrUpstream.
func (e *UpstreamError) Is(target error) bool {
	return target == services.ErrUpstream
}

// TransportError wraps a failure below HTTP: DNS, connect, reset, body read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "catalog transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() []error {
	return []error{services.ErrTransport, e.Err}
}

// RateLimitedError is a retryable status: 429, or a 500 treated as transient.
type RateLimitedError struct {
	Status     int
	RetryAfter time.Duration
	// HasRetryAfter reports whether the server sent a usable Retry-After.
	HasRetryAfter bool
	Body          string
}

func (e *RateLimitedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "catalog http %d", e.Status)
	if e.HasRetryAfter {
		fmt.Fprintf(&b, " (retry after %s)", e.RetryAfter)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 200 {
			body = body[:200]
		}
		b.WriteString(": ")
		b.WriteString(body)
	}
	return b.String()
}

// Is matches services.ErrRateLimited for 429 and services.ErrTransient for 5xx.
func (e *RateLimitedError) Is(target error) bool {
	if e.Status == 429 {
		return target == services.ErrRateLimited
	}
	return target == services.ErrTransient
}
