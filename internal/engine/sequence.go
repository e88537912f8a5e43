package engine

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/jooh/expcontrol/internal/ir"
)

// durationSlack absorbs floating point error when comparing an explicit
// sequence duration with the summed child durations.
const durationSlack = 1e-9

// seqBase holds what both timing disciplines share.
type seqBase struct {
	name     string
	children []Runnable
	verbose  bool
}

func newSeqBase(kind string, children []Runnable, o options) (seqBase, error) {
	if len(o.skipKeys) > 0 {
		return seqBase{}, ir.NewConfigurationError("%s %q: sequences cannot skip on response", kind, o.name)
	}
	for i, child := range children {
		if child == nil {
			return seqBase{}, ir.NewConfigurationError("%s %q: child %d is nil", kind, o.name, i)
		}
	}
	return seqBase{
		name:     o.name,
		children: slices.Clone(children),
		verbose:  o.verbose,
	}, nil
}

// Name returns the condition label written to the records of the sequence.
func (s *seqBase) Name() string { return s.name }

// SkipKeys is always empty for sequences.
func (s *seqBase) SkipKeys() []string { return nil }

// Children returns the child runnables in order.
func (s *seqBase) Children() []Runnable { return slices.Clone(s.children) }

// runChild runs one child and threads its logs into the running history and
// the sequence output.
func (s *seqBase) runChild(ctx context.Context, ctrl *Controller, child Runnable, end float64, acc *seqLogs) error {
	if s.verbose {
		ctrl.logger.Info("sequence child", "sequence", s.name, "time", ctrl.clock.Now(), "child", child.Name())
	}
	events, responses, err := child.Run(ctx, ctrl, end, acc.hist)
	if err != nil {
		return err
	}
	// the running history includes sibling output, but only the sequence's
	// own output is returned, so nested sequences never duplicate records
	acc.hist = acc.hist.Extend(events, responses)
	acc.events = append(acc.events, events...)
	acc.responses = append(acc.responses, responses...)
	return nil
}

// finish labels the output with the condition name (when set) and blocks
// until end, which gives the enclosing schedule its catch-up phase.
func (s *seqBase) finish(ctx context.Context, ctrl *Controller, end float64, acc *seqLogs) (ir.EventLog, ir.ResponseLog, error) {
	events := acc.events
	if s.name != "" {
		events = events.WithCondition(s.name)
	}
	if err := ctrl.clock.WaitUntil(ctx, end); err != nil {
		return nil, nil, fmt.Errorf("sequence %q catch-up: %w", s.name, err)
	}
	return events, acc.responses, nil
}

type seqLogs struct {
	hist      ir.History
	events    ir.EventLog
	responses ir.ResponseLog
}

// RelTimeSeq runs children back to back. Each child's end time is its own
// duration after the moment the previous child actually finished, so the
// sequence tolerates self-paced and pulse-triggered children but makes no
// non-slip guarantee.
type RelTimeSeq struct {
	seqBase
}

var _ Runnable = (*RelTimeSeq)(nil)

// NewRelTimeSeq creates a relative-timing sequence. A sequence duration
// cannot be set: without an absolute schedule there is nothing to catch up
// to.
func NewRelTimeSeq(children []Runnable, opts ...Option) (*RelTimeSeq, error) {
	o := applyOptions(options{}, opts)
	if o.duration != 0 {
		return nil, ir.NewConfigurationError("sequence %q: cannot set sequence duration with relative timings", o.name)
	}
	base, err := newSeqBase("sequence", children, o)
	if err != nil {
		return nil, err
	}
	return &RelTimeSeq{seqBase: base}, nil
}

// Duration is always 0: the length of a relative sequence is not known
// upfront.
func (s *RelTimeSeq) Duration() float64 { return 0 }

// Run executes the children in order, each relative to the actual end of the
// one before.
func (s *RelTimeSeq) Run(ctx context.Context, ctrl *Controller, end float64, hist ir.History) (ir.EventLog, ir.ResponseLog, error) {
	acc := &seqLogs{hist: hist}
	for _, child := range s.children {
		childEnd := ctrl.clock.Now() + child.Duration()
		if err := s.runChild(ctx, ctrl, child, childEnd, acc); err != nil {
			return nil, nil, err
		}
	}
	return s.finish(ctx, ctrl, end, acc)
}

// AbsTimeSeq pins every child to a fixed offset from the sequence start.
// A child that finishes early waits for its boundary; a late child does not
// push the boundaries after it. Given reasonable inputs this guarantees
// non-slip timing over a whole run.
type AbsTimeSeq struct {
	seqBase
	duration float64
	offsets  []float64
}

var _ Runnable = (*AbsTimeSeq)(nil)

// NewAbsTimeSeq creates an absolute-timing sequence. Every child must have a
// finite duration and no skip keys. The sequence duration defaults to the
// summed child durations; a longer duration leaves catch-up time at the end
// for absorbing lag.
func NewAbsTimeSeq(children []Runnable, opts ...Option) (*AbsTimeSeq, error) {
	o := applyOptions(options{}, opts)
	base, err := newSeqBase("sequence", children, o)
	if err != nil {
		return nil, err
	}

	offsets := make([]float64, len(children))
	total := 0.0
	for i, child := range children {
		d := child.Duration()
		if math.IsInf(d, 0) || math.IsNaN(d) {
			return nil, ir.NewConfigurationError("sequence %q: child %q has unbounded duration", o.name, child.Name())
		}
		if len(child.SkipKeys()) > 0 {
			return nil, ir.NewConfigurationError("sequence %q: child %q skips on response", o.name, child.Name())
		}
		total += d
		offsets[i] = total
	}

	duration := o.duration
	switch {
	case math.IsNaN(duration) || duration < 0:
		return nil, ir.NewConfigurationError("sequence %q: duration must be 0 or greater, got %g", o.name, duration)
	case duration == 0:
		duration = total
	case !math.IsInf(duration, 1) && duration+durationSlack < total:
		return nil, ir.NewConfigurationError("sequence %q: duration %g is shorter than its events (%g)", o.name, duration, total)
	}

	return &AbsTimeSeq{seqBase: base, duration: duration, offsets: offsets}, nil
}

// Duration returns the explicit or inferred sequence duration.
func (s *AbsTimeSeq) Duration() float64 { return s.duration }

// Offsets returns the cumulative end offset of each child.
func (s *AbsTimeSeq) Offsets() []float64 { return slices.Clone(s.offsets) }

// Run executes the children against the absolute schedule starting now.
func (s *AbsTimeSeq) Run(ctx context.Context, ctrl *Controller, end float64, hist ir.History) (ir.EventLog, ir.ResponseLog, error) {
	start := ctrl.clock.Now()
	acc := &seqLogs{hist: hist}
	for i, child := range s.children {
		if err := s.runChild(ctx, ctrl, child, start+s.offsets[i], acc); err != nil {
			return nil, nil, err
		}
	}
	return s.finish(ctx, ctrl, end, acc)
}
