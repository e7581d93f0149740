package audiostream

import (
	"sync"
	"time"
)

// Voice activity defaults.
const (
	DefaultVoiceThreshold = 0.02                   // RMS level counted as speech
	DefaultVoiceHang      = 400 * time.Millisecond // silence before speech ends
)

// Activity tracks voice activity from per-chunk RMS levels. It does not
// gate transmission; it annotates clips and drives the level display.
type Activity struct {
	threshold float32
	hang      time.Duration
	now       func() time.Time

	mu        sync.Mutex
	speaking  bool
	lastVoice time.Time
	voiced    bool // voice seen since the last TakeVoiced
}

// NewActivity creates a tracker. Zero values select the defaults.
func NewActivity(threshold float32, hang time.Duration) *Activity {
	if threshold <= 0 {
		threshold = DefaultVoiceThreshold
	}
	if hang <= 0 {
		hang = DefaultVoiceHang
	}
	return &Activity{threshold: threshold, hang: hang, now: time.Now}
}

// Observe records one chunk level and returns the speaking state after it.
func (a *Activity) Observe(level float32) bool {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if level > a.threshold {
		a.speaking = true
		a.voiced = true
		a.lastVoice = now
		return true
	}
	if a.speaking && now.Sub(a.lastVoice) > a.hang {
		a.speaking = false
	}
	return a.speaking
}

// Speaking reports whether speech is ongoing.
func (a *Activity) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking
}

// TakeVoiced reports whether any speech was observed since the previous
// call and starts a new window.
func (a *Activity) TakeVoiced() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := a.voiced || a.speaking
	a.voiced = false
	return v
}

// Reset clears the state.
func (a *Activity) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.speaking = false
	a.voiced = false
	a.lastVoice = time.Time{}
}
