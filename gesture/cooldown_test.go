package gesture

import (
	"testing"
	"time"
)

func TestCooldownAllow(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCooldown(2 * time.Second)

	steps := []struct {
		at   time.Duration
		want bool
	}{
		{0, true},
		{500 * time.Millisecond, false},
		{1999 * time.Millisecond, false},
		{2 * time.Second, true},
		{3 * time.Second, false},
		{4500 * time.Millisecond, true},
	}

	for _, s := range steps {
		if got := c.Allow(t0.Add(s.at)); got != s.want {
			t.Errorf("Allow(+%v) = %v, want %v", s.at, got, s.want)
		}
	}
}

func TestCooldownZeroIntervalAlwaysAllows(t *testing.T) {
	c := NewCooldown(0)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !c.Allow(now) {
			t.Fatalf("Allow() #%d = false", i)
		}
	}
}
