package scheduler

import "time"

// RetryBackoff returns the delay to wait after the given number of failed
// attempts: base doubled per attempt, capped at max. Zero attempts means no
// delay.
func RetryBackoff(attempts int, base, max time.Duration) time.Duration {
	if attempts <= 0 || base <= 0 {
		return 0
	}
	if max <= 0 {
		max = base
	}

	d := base
	for i := 1; i < attempts; i++ {
		d <<= 1
		if d >= max || d <= 0 { // overflow guard
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
