package audiostream

import (
	"testing"
	"time"
)

func TestActivity(t *testing.T) {
	now := time.Unix(0, 0)
	a := NewActivity(0.02, 400*time.Millisecond)
	a.now = func() time.Time { return now }

	steps := []struct {
		name    string
		advance time.Duration
		level   float32
		want    bool
	}{
		{"silence", 0, 0.001, false},
		{"speech start", 20 * time.Millisecond, 0.05, true},
		{"short pause holds", 200 * time.Millisecond, 0.001, true},
		{"speech continues", 20 * time.Millisecond, 0.08, true},
		{"pause past hang ends", 500 * time.Millisecond, 0.0, false},
		{"threshold is exclusive", 20 * time.Millisecond, 0.02, false},
	}
	for _, s := range steps {
		now = now.Add(s.advance)
		if got := a.Observe(s.level); got != s.want {
			t.Errorf("%s: Observe(%v) = %v, want %v", s.name, s.level, got, s.want)
		}
	}

	if !a.TakeVoiced() {
		t.Error("TakeVoiced() = false after speech")
	}
	if a.TakeVoiced() {
		t.Error("TakeVoiced() = true for a silent window")
	}

	a.Observe(0.5)
	a.Reset()
	if a.Speaking() || a.TakeVoiced() {
		t.Error("Reset did not clear state")
	}
}

func TestActivityDefaults(t *testing.T) {
	a := NewActivity(0, 0)
	if a.threshold != DefaultVoiceThreshold || a.hang != DefaultVoiceHang {
		t.Errorf("NewActivity(0, 0) = {%v %v}, want defaults", a.threshold, a.hang)
	}
}
