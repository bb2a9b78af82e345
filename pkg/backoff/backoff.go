package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Backoff defines reconnect backoff behavior.
type Backoff struct {
	// Min is the minimum backoff duration.
	Min time.Duration
	// Max is the maximum backoff duration.
	Max time.Duration
	// Factor multiplies the delay for each retry attempt.
	Factor float64
	// Jitter adds randomization as a fraction of the delay (0-1).
	Jitter float64
}

// Default provides conservative reconnect defaults.
func Default() Backoff {
	return Backoff{
		Min:    250 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the backoff duration for the given attempt (1-based).
// Each attempt is independent: the delay is Min*Factor^(attempt-1)
// capped at Max, so callers only carry an attempt counter, no timer
// state survives a successful connect.
func (b Backoff) Next(attempt int) time.Duration {
	min := b.Min
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	max := b.Max
	if max <= 0 {
		max = 5 * time.Second
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}
	if attempt < 1 {
		attempt = 1
	}

	wait := float64(min) * math.Pow(factor, float64(attempt-1))
	// Pow overflows to +Inf for large attempts; the cap absorbs it.
	if wait > float64(max) {
		wait = float64(max)
	}

	if j := b.Jitter; j > 0 {
		if j > 1 {
			j = 1
		}
		wait += wait * j * (2*rand.Float64() - 1)
	}
	return time.Duration(wait)
}
