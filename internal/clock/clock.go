// Package clock is a thin seam over "now" so every piece of schedule math
// stays a pure function of (spec, now).
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System returns the real wall clock.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Fixed returns a clock pinned to t. Intended for tests.
func Fixed(t time.Time) *FixedClock { return &FixedClock{t: t} }

// FixedClock is a settable clock for tests.
type FixedClock struct{ t time.Time }

func (c *FixedClock) Now() time.Time { return c.t }

func (c *FixedClock) Set(t time.Time) { c.t = t }

func (c *FixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
