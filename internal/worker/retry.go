package worker

import "time"

// Fallbacks for zero-valued policy fields.
const (
	defaultRetryDelay   = time.Second
	defaultRetryBackoff = 2
)

// RetryPolicy controls how delivery of a failed notification task is retried.
// A task past MaxRetries attempts is dead-lettered instead of rescheduled.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the backoff before the given attempt (1-based). The delay
// grows by BackoffFactor per attempt and is clamped to MaxDelay when set.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	initial := r.InitialDelay
	if initial <= 0 {
		initial = defaultRetryDelay
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = defaultRetryBackoff
	}

	delay := float64(initial)
	for i := 1; i < attempt; i++ {
		delay *= factor
		if r.MaxDelay > 0 && delay >= float64(r.MaxDelay) {
			return r.MaxDelay
		}
	}

	d := time.Duration(delay)
	if d <= 0 {
		d = defaultRetryDelay
	}
	return d
}
