package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"animelink/internal/ratelimit"
)

// Classify maps gateway failures onto limiter decisions. It is installed on
// the limiter with ratelimit.WithClassifier.
func Classify(err error) ratelimit.Decision {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		if rl.Status == http.StatusTooManyRequests {
			delay := ratelimit.DefaultRetryAfter
			if rl.HasRetryAfter {
				delay = rl.RetryAfter
			}
			return ratelimit.Decision{Action: ratelimit.Backoff, Delay: delay + ratelimit.RetryAfterPad}
		}
		return ratelimit.Decision{Action: ratelimit.RetryNow}
	}
	var te *TransportError
	if errors.As(err, &te) {
		return ratelimit.Decision{Action: ratelimit.Backoff, Delay: ratelimit.TransportBackoff, MaxAttempts: 2}
	}
	return ratelimit.Decision{Action: ratelimit.Fail}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
