package timer

import "time"

// Clock returns the current time. The polling state machines take an
// injected clock so they can be tested without real delays.
type Clock func() time.Time

// Countdown is a one-shot countdown against an injected clock.
type Countdown struct {
	clock    Clock
	deadline time.Time
	active   bool
}

func New(clock Clock) *Countdown {
	if clock == nil {
		clock = time.Now
	}
	return &Countdown{clock: clock}
}

func (c *Countdown) Start(d time.Duration) {
	c.active = true
	c.deadline = c.clock().Add(d)
}

func (c *Countdown) Stop() {
	c.active = false
}

func (c *Countdown) Active() bool {
	return c.active
}

// Expired reports whether the countdown has run out. A stopped countdown
// counts as expired.
func (c *Countdown) Expired() bool {
	return !c.active || c.clock().After(c.deadline)
}

func (c *Countdown) Remaining() time.Duration {
	if !c.active {
		return 0
	}
	left := c.deadline.Sub(c.clock())
	if left < 0 {
		return 0
	}
	return left
}

// ExtendTo restarts the countdown with duration d only if d exceeds the
// time still remaining, so a running countdown is never shortened. It
// reports whether the countdown was restarted.
func (c *Countdown) ExtendTo(d time.Duration) bool {
	if d <= c.Remaining() {
		return false
	}
	c.Start(d)
	return true
}
