package clock

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/jooh/expcontrol/internal/ir"
)

// PulseInput is the blocking input a PulseClock listens on for triggers.
// Response times must be stamped with the same Clock the PulseClock wraps.
type PulseInput interface {
	WaitPoll(ctx context.Context, timeout float64) ([]ir.Response, error)
}

// PulseState is the synchronisation state of a PulseClock.
type PulseState int

const (
	// PulseIdle means Start has not been called. Waits use plain clock time.
	PulseIdle PulseState = iota
	// PulseAwaiting means Start is blocked on the synchronisation pulses.
	PulseAwaiting
	// PulseSynchronized means time zero is the accepted synchronisation pulse.
	PulseSynchronized
	// PulseFailed means a pulse wait timed out. Every later wait fails.
	PulseFailed
)

func (s PulseState) String() string {
	switch s {
	case PulseIdle:
		return "IDLE"
	case PulseAwaiting:
		return "AWAITING_PULSE"
	case PulseSynchronized:
		return "SYNCHRONIZED"
	case PulseFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("PulseState(%d)", int(s))
	}
}

// Defaults for PulseClock options.
const (
	DefaultPulseDuration = 0.01
	DefaultTolerance     = 0.1
	DefaultPulseTimeout  = 20.0
)

// PulseClock synchronises a Clock to an external periodic pulse.
//
// Time is still measured in seconds, not pulses. The clock re-estimates the
// pulse period whenever WaitUntil has enough time left that a pulse is
// expected during the wait; estimates are kept in PeriodHistory.
type PulseClock struct {
	*Clock

	input PulseInput
	key   string

	period        float64
	history       []float64
	tolerance     float64
	pulseDuration float64
	timeout       float64
	dummies       int

	state  PulseState
	err    error
	logger *slog.Logger
}

var _ Timer = (*PulseClock)(nil)

// PulseOption configures a PulseClock.
type PulseOption func(*PulseClock)

// WithTolerance sets the largest accepted change between successive period
// estimates, in seconds. Default: DefaultTolerance.
func WithTolerance(tolerance float64) PulseOption {
	return func(c *PulseClock) {
		c.tolerance = tolerance
	}
}

// WithPulseDuration sets how long a pulse stays asserted. After catching a
// pulse the clock waits this long so the same pulse is not caught twice.
func WithPulseDuration(d float64) PulseOption {
	return func(c *PulseClock) {
		c.pulseDuration = d
	}
}

// WithPulseTimeout bounds every wait for a single pulse, in seconds.
func WithPulseTimeout(timeout float64) PulseOption {
	return func(c *PulseClock) {
		c.timeout = timeout
	}
}

// WithDummies sets the number of pulses discarded before the synchronisation
// pulse (e.g. scanner dummy volumes).
func WithDummies(n int) PulseOption {
	return func(c *PulseClock) {
		c.dummies = n
	}
}

// WithPulseLogger sets the logger for pulse diagnostics.
func WithPulseLogger(logger *slog.Logger) PulseOption {
	return func(c *PulseClock) {
		c.logger = logger
	}
}

// NewPulseClock creates a PulseClock over base that listens on input for key.
// period is the nominal pulse period in seconds.
func NewPulseClock(base *Clock, input PulseInput, key string, period float64, opts ...PulseOption) (*PulseClock, error) {
	c := &PulseClock{
		Clock:         base,
		input:         input,
		key:           key,
		period:        period,
		history:       []float64{period},
		tolerance:     DefaultTolerance,
		pulseDuration: DefaultPulseDuration,
		timeout:       DefaultPulseTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case base == nil || input == nil:
		return nil, ir.NewConfigurationError("pulse clock requires a base clock and an input")
	case key == "":
		return nil, ir.NewConfigurationError("pulse clock requires a trigger key")
	case !(period > 0) || math.IsInf(period, 0):
		return nil, ir.NewConfigurationError("pulse period must be positive and finite, got %g", period)
	case !(c.tolerance >= 0):
		return nil, ir.NewConfigurationError("pulse tolerance must be 0 or greater, got %g", c.tolerance)
	case !(c.pulseDuration >= 0):
		return nil, ir.NewConfigurationError("pulse duration must be 0 or greater, got %g", c.pulseDuration)
	case !(c.timeout > 0):
		return nil, ir.NewConfigurationError("pulse timeout must be positive, got %g", c.timeout)
	case c.dummies < 0:
		return nil, ir.NewConfigurationError("dummies must be 0 or greater, got %d", c.dummies)
	}
	return c, nil
}

// Period returns the current period estimate.
func (c *PulseClock) Period() float64 {
	return c.period
}

// PeriodHistory returns every accepted estimate, starting with the nominal
// period.
func (c *PulseClock) PeriodHistory() []float64 {
	return slices.Clone(c.history)
}

// State returns the synchronisation state.
func (c *PulseClock) State() PulseState {
	return c.state
}

// Key returns the trigger key.
func (c *PulseClock) Key() string {
	return c.key
}

// Start resets the clock and blocks until dummies+1 pulses have arrived. The
// origin then moves to the last of them, so time zero is the synchronisation
// pulse (and Now() is already positive if time passed since it arrived).
// Triggers stamped before the reset are stale and ignored.
func (c *PulseClock) Start(ctx context.Context) (float64, error) {
	c.state = PulseAwaiting
	c.Clock.Reset()

	var sync float64
	for i := 0; i <= c.dummies; i++ {
		c.logger.Debug("waiting for pulse", "pulse", i, "dummies", c.dummies)
		t, err := c.waitPulse(ctx, sync)
		if err != nil {
			if ir.IsTimeoutError(err) {
				c.state = PulseFailed
				c.err = err
			} else {
				c.state = PulseIdle
			}
			return 0, fmt.Errorf("start pulse clock: %w", err)
		}
		sync = t
	}

	c.Clock.Shift(sync)
	c.state = PulseSynchronized
	return c.Now(), nil
}

// Wait blocks for d seconds through WaitUntil, so pulses are still caught.
func (c *PulseClock) Wait(ctx context.Context, d float64) error {
	if !(d > 0) {
		return ctx.Err()
	}
	return c.WaitUntil(ctx, c.Now()+d)
}

// WaitUntil blocks until the clock reads target, catching every pulse
// expected on the way and refining the period estimate from each one.
//
// Before Start, this is a plain clock wait. After a timeout it keeps
// returning the timeout error.
func (c *PulseClock) WaitUntil(ctx context.Context, target float64) error {
	switch c.state {
	case PulseFailed:
		return c.err
	case PulseSynchronized:
	default:
		return c.Clock.WaitUntil(ctx, target)
	}

	for {
		now := c.Now()
		if math.Floor(target/c.period)-math.Floor(now/c.period) < 1 {
			// less than a pulse left: plain wait, no estimate
			return c.Clock.WaitUntil(ctx, target)
		}

		actual, err := c.waitPulse(ctx, now)
		if err != nil {
			if ir.IsTimeoutError(err) {
				c.state = PulseFailed
				c.err = err
			}
			return err
		}

		// index of the first pulse after the pre-wait time; equal to
		// ceil(now/period) except when now sits exactly on a pulse boundary
		predicted := math.Floor(now/c.period) + 1
		estimated := actual / predicted
		if math.Abs(estimated-c.period) > c.tolerance {
			return ir.NewDriftError(c.period, estimated, c.tolerance)
		}
		c.period = estimated
		c.history = append(c.history, estimated)
		c.logger.Debug("pulse", "actual", actual, "period", estimated, "index", predicted)

		if target-c.Now() > c.pulseDuration {
			if err := c.Clock.Wait(ctx, c.pulseDuration); err != nil {
				return err
			}
		}
	}
}

// waitPulse blocks until a trigger stamped at or after since arrives and
// returns its time stamp. Other keys and older triggers are ignored; the
// whole wait is bounded by the pulse timeout.
func (c *PulseClock) waitPulse(ctx context.Context, since float64) (float64, error) {
	deadline := c.Now() + c.timeout
	for {
		remaining := deadline - c.Now()
		if remaining <= 0 {
			return 0, ir.NewTimeoutError(c.timeout)
		}
		samples, err := c.input.WaitPoll(ctx, remaining)
		if err != nil {
			return 0, err
		}
		for _, s := range samples {
			if s.Key != c.key {
				continue
			}
			if s.Time < since {
				c.logger.Debug("stale pulse ignored", "time", s.Time, "since", since)
				continue
			}
			return s.Time, nil
		}
	}
}
