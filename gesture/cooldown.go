package gesture

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum interval between two emitted commands.
const DefaultCooldown = 2 * time.Second

// Cooldown rate-limits command emission.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	fired    bool
}

// NewCooldown creates a cooldown with the given interval.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{interval: interval}
}

// Allow reports whether a command may fire at now and, if so, restarts the
// interval from now.
func (c *Cooldown) Allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fired && now.Sub(c.last) < c.interval {
		return false
	}
	c.last = now
	c.fired = true
	return true
}
