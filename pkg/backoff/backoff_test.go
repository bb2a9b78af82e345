package backoff

import (
	"testing"
	"time"
)

func TestNextGrowsAndCaps(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: 1 * time.Second, Factor: 2}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{50, 1 * time.Second},
	}
	for _, c := range cases {
		if got := b.Next(c.attempt); got != c.want {
			t.Fatalf("Next(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestNextJitterStaysInBand(t *testing.T) {
	b := Backoff{Min: 1 * time.Second, Max: 10 * time.Second, Factor: 2, Jitter: 0.5}

	for i := 0; i < 100; i++ {
		got := b.Next(1)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Fatalf("Next(1) = %v, outside jitter band", got)
		}
	}
}

func TestNextZeroValueUsesDefaults(t *testing.T) {
	var b Backoff
	if got := b.Next(0); got <= 0 {
		t.Fatalf("Next(0) = %v, want positive", got)
	}
	if got := b.Next(100); got > 5*time.Second {
		t.Fatalf("Next(100) = %v, exceeds default cap", got)
	}
}

func TestNextIsStatelessPerAttempt(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2}

	if a, z := b.Next(3), b.Next(3); a != z {
		t.Fatalf("Next(3) varied without jitter: %v then %v", a, z)
	}
	if got, want := b.Next(4), 2*b.Next(3); got != want {
		t.Fatalf("Next(4) = %v, want %v", got, want)
	}
}
