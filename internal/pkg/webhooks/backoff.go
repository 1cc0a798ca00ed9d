package webhooks

import (
	"math/rand"
	"time"
)

const jitterFraction = 0.10

// RetryDelay maps the number of attempts made so far (>=1) to the delay
// before the next attempt: min(BackoffBase * 2^attempts, BackoffMax) plus an
// additive jitter of up to 10% of the delay. The jitter is never subtractive,
// so the result is always at least the unjittered exponential value.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	// 2^6 already clears BackoffMax; capping the exponent keeps the shift
	// from overflowing for absurd attempt counts.
	if attempts > 16 {
		attempts = 16
	}

	delay := BackoffBase * time.Duration(1<<uint(attempts))
	if delay > BackoffMax {
		delay = BackoffMax
	}

	jitter := time.Duration(rand.Float64() * jitterFraction * float64(delay))
	return delay + jitter
}

// NextRetryAt returns the absolute time of the next attempt.
func NextRetryAt(now time.Time, attempts int) time.Time {
	return now.Add(RetryDelay(attempts))
}
