package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/jooh/expcontrol/internal/ir"
)

// Runnable is anything the engine can schedule: a single Event or a
// sequence of them.
type Runnable interface {
	// Name labels the event (or, for sequences, the condition).
	Name() string

	// Duration is the nominal length in seconds. +Inf means the event only
	// ends on a skip key.
	Duration() float64

	// SkipKeys lists the response keys that end the event early.
	SkipKeys() []string

	// Run executes once until end and returns the records it produced.
	// hist holds everything logged before this invocation and is read-only.
	Run(ctx context.Context, ctrl *Controller, end float64, hist ir.History) (ir.EventLog, ir.ResponseLog, error)
}

// options is shared by every Event and sequence constructor.
type options struct {
	name     string
	duration float64
	skipKeys []string
	verbose  bool
}

// Option configures an Event or a sequence.
type Option func(*options)

// WithName sets the event name (for sequences, the condition label).
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithDuration sets the nominal duration in seconds.
func WithDuration(d float64) Option {
	return func(o *options) {
		o.duration = d
	}
}

// WithSkipKeys makes any of keys end the event early. Combined with an
// infinite duration this presents, say, instructions until the subject is
// ready.
func WithSkipKeys(keys ...string) Option {
	return func(o *options) {
		o.skipKeys = append([]string(nil), keys...)
	}
}

// WithVerbose logs every finished record at Info instead of Debug.
func WithVerbose(v bool) Option {
	return func(o *options) {
		o.verbose = v
	}
}

func applyOptions(o options, opts []Option) options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Event is the smallest schedulable unit. Its behaviour comes from Hooks;
// the Event itself only drives the lifecycle.
//
// An Event is immutable after construction and may be re-run any number of
// times.
type Event struct {
	name     string
	duration float64
	skipKeys []string
	skip     KeySet
	verbose  bool
	hooks    Hooks
}

var _ Runnable = (*Event)(nil)

// NewEvent creates an Event with the default hooks: nothing is drawn and
// every response is logged unscored.
func NewEvent(opts ...Option) (*Event, error) {
	return newEvent(BaseHooks{}, options{}, opts)
}

// NewHookedEvent creates an Event driven by custom hooks.
func NewHookedEvent(hooks Hooks, opts ...Option) (*Event, error) {
	if hooks == nil {
		return nil, ir.NewConfigurationError("event hooks must not be nil")
	}
	return newEvent(hooks, options{}, opts)
}

func newEvent(hooks Hooks, defaults options, opts []Option) (*Event, error) {
	o := applyOptions(defaults, opts)
	if math.IsNaN(o.duration) || o.duration < 0 {
		return nil, ir.NewConfigurationError("event %q: duration must be 0 or greater, got %g", o.name, o.duration)
	}
	if err := checkKeys("skip keys", o.skipKeys); err != nil {
		return nil, fmt.Errorf("event %q: %w", o.name, err)
	}
	return &Event{
		name:     o.name,
		duration: o.duration,
		skipKeys: o.skipKeys,
		skip:     NewKeySet(o.skipKeys...),
		verbose:  o.verbose,
		hooks:    hooks,
	}, nil
}

// Name returns the event name.
func (e *Event) Name() string { return e.name }

// Duration returns the nominal duration.
func (e *Event) Duration() float64 { return e.duration }

// SkipKeys returns the keys that end the event early.
func (e *Event) SkipKeys() []string { return slices.Clone(e.skipKeys) }

// Run drives the event lifecycle until the clock reaches end or a skip key
// arrives, whichever is first.
//
// The returned event log has exactly one record, stamped with the clock
// value at entry. The response log has one record per response, in arrival
// order. A skip key still lets the rest of its tick be scored.
func (e *Event) Run(ctx context.Context, ctrl *Controller, end float64, hist ir.History) (ir.EventLog, ir.ResponseLog, error) {
	clk := ctrl.clock
	rec := ir.NewEventRecord(e.name, clk.Now())
	st := newState(e, ctrl, hist)

	rec.OnCall = e.hooks.OnCall(st)
	ctrl.mark(e.name)

	var responses ir.ResponseLog
	skipped := false
	for clk.Now() < end && !skipped {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rec.OnFrame = e.hooks.OnFrame(st)

		samples, _, err := ctrl.Tick()
		if err != nil {
			return nil, nil, fmt.Errorf("event %q: %w", e.name, err)
		}
		for _, r := range samples {
			score, rt := e.hooks.OnResponse(st, r)
			responses = append(responses, ir.ResponseRecord{
				Time:  r.Time,
				Key:   r.Key,
				Score: score,
				RT:    rt,
			})
			if e.skip.Has(r.Key) {
				skipped = true
			}
		}
	}

	rec.OnEnd = e.hooks.OnEnd(st)

	level := slog.LevelDebug
	if e.verbose {
		level = slog.LevelInfo
	}
	ctrl.logger.Log(ctx, level, "event ended",
		"name", rec.Name,
		"time", rec.Time,
		"on_call", rec.OnCall,
		"on_frame", rec.OnFrame,
		"on_end", rec.OnEnd,
		"responses", len(responses),
		"skipped", skipped,
	)
	return ir.EventLog{rec}, responses, nil
}

// checkKeys rejects the reserved anticipation key in a key list.
func checkKeys(field string, keys []string) error {
	if slices.Contains(keys, ir.ReservedKey) {
		return ir.NewConfigurationError("%s: %q is a reserved key", field, ir.ReservedKey)
	}
	return nil
}
