// Package timeutil derives lateness and expiry of bookings relative to an injected clock.
package timeutil

import (
	"sync"
	"time"
)

// DefaultGrace is the grace period used when none is configured.
const DefaultGrace = 15 * time.Minute

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a settable clock for tests and replays.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock returns a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// IsLate reports whether now is past start.
func IsLate(now, start time.Time) bool {
	return now.After(start)
}

// IsBeyondGracePeriod reports whether now is past start plus grace.
func IsBeyondGracePeriod(now, start time.Time, grace time.Duration) bool {
	return now.After(start.Add(grace))
}

// IsExpired reports whether now is past end.
func IsExpired(now, end time.Time) bool {
	return now.After(end)
}

// MinutesLate is the number of whole minutes elapsed since start, never negative.
func MinutesLate(now, start time.Time) int {
	return wholeMinutesSince(now, start)
}

// MinutesOver is the number of whole minutes elapsed since end, never negative.
func MinutesOver(now, end time.Time) int {
	return wholeMinutesSince(now, end)
}

func wholeMinutesSince(now, t time.Time) int {
	d := now.Sub(t)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
