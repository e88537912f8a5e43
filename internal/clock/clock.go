package clock

import (
	"context"
	"math"
	"sync/atomic"
)

// Timer is the view of a clock the engine depends on. Both Clock and
// PulseClock implement it.
type Timer interface {
	// Now returns seconds since the clock origin.
	Now() float64

	// Start zeroes the clock for a new run and returns the time after
	// any synchronisation.
	Start(ctx context.Context) (float64, error)

	// Wait blocks for d seconds. Non-positive d returns immediately.
	Wait(ctx context.Context, d float64) error

	// WaitUntil blocks until Now() reaches t. Past targets return immediately.
	WaitUntil(ctx context.Context, t float64) error
}

// Clock measures experiment time relative to a movable origin.
//
// Thread-safety: Now, Raw and FromRaw may be called from any goroutine
// (input devices stamp presses off the control loop). Reset, Shift, Start
// and the waits belong to the single goroutine running the experiment.
type Clock struct {
	src    Source
	origin atomic.Uint64 // float64 bits
}

var _ Timer = (*Clock)(nil)

// New creates a Clock on src with its origin at the current source time.
func New(src Source) *Clock {
	c := &Clock{src: src}
	c.setOrigin(src.Now())
	return c
}

func (c *Clock) loadOrigin() float64 {
	return math.Float64frombits(c.origin.Load())
}

func (c *Clock) setOrigin(v float64) {
	c.origin.Store(math.Float64bits(v))
}

// Now returns seconds elapsed since the origin.
func (c *Clock) Now() float64 {
	return c.src.Now() - c.loadOrigin()
}

// Raw returns the source time, independent of the origin.
func (c *Clock) Raw() float64 {
	return c.src.Now()
}

// FromRaw converts a source time taken with Raw to clock time under the
// current origin. A raw time taken before the last Reset reads negative.
func (c *Clock) FromRaw(raw float64) float64 {
	return raw - c.loadOrigin()
}

// Reset moves the origin to the current source time and returns 0.
func (c *Clock) Reset() float64 {
	c.setOrigin(c.src.Now())
	return 0
}

// Shift moves the origin forward by offset seconds, so Now() drops by offset.
// Used to align time zero with an event observed after the last Reset.
func (c *Clock) Shift(offset float64) {
	c.setOrigin(c.loadOrigin() + offset)
}

// Start resets the clock. A plain clock never blocks here.
func (c *Clock) Start(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.Reset(), nil
}

// Wait blocks for d seconds. Negative, zero and NaN durations are no-ops.
func (c *Clock) Wait(ctx context.Context, d float64) error {
	if !(d > 0) {
		return ctx.Err()
	}
	return c.src.Sleep(ctx, d)
}

// WaitUntil blocks until the clock reads t, clamped to zero wait if t has
// already passed.
func (c *Clock) WaitUntil(ctx context.Context, t float64) error {
	return c.Wait(ctx, math.Max(0, t-c.Now()))
}
