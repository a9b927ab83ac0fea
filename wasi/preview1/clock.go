package preview1

import "time"

// Clock is the time source of clock_time_get and poll_oneoff.
type Clock interface {
	// Now is the wall clock.
	Now() time.Time
	// Monotonic is the time elapsed since the clock was created.
	Monotonic() time.Duration
	// After delivers once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

type systemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock backed by the time package. Its monotonic
// reading starts at zero.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Now() time.Time { return time.Now() }

func (c *systemClock) Monotonic() time.Duration { return time.Since(c.start) }

func (c *systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// reading returns the current value of clock id in nanoseconds.
func reading(c Clock, id ClockID) uint64 {
	if id == ClockRealtime {
		return uint64(c.Now().UnixNano())
	}
	return uint64(c.Monotonic())
}
