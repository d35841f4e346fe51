package scheduler

import (
	"testing"
	"time"
)

func TestRetryBackoff(t *testing.T) {
	base := 30 * time.Second
	limit := 10 * time.Minute

	cases := []struct {
		name     string
		attempts int
		want     time.Duration
	}{
		{"no attempts", 0, 0},
		{"first failure", 1, 30 * time.Second},
		{"second failure", 2, time.Minute},
		{"third failure", 3, 2 * time.Minute},
		{"capped", 6, 10 * time.Minute},
		{"far past cap", 40, 10 * time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RetryBackoff(tc.attempts, base, limit); got != tc.want {
				t.Errorf("RetryBackoff(%d) = %v, want %v", tc.attempts, got, tc.want)
			}
		})
	}
}

func TestRetryBackoffZeroBase(t *testing.T) {
	if got := RetryBackoff(3, 0, time.Minute); got != 0 {
		t.Errorf("got %v, want 0 when base is unset", got)
	}
}

func TestRetryBackoffZeroCapFallsBackToBase(t *testing.T) {
	if got := RetryBackoff(5, time.Second, 0); got != time.Second {
		t.Errorf("got %v, want base when cap is unset", got)
	}
}
