package engine

import (
	"github.com/jooh/expcontrol/internal/ir"
)

// nbackHooks re-targets decision scoring on every call: the repeat keys are
// correct when the current stimulus matches the one N events back, the
// non-repeat keys otherwise.
type nbackHooks struct {
	decisionHooks
	name      string
	nback     int
	nshift    int
	repeat    KeySet
	nonRepeat KeySet
}

func (h nbackHooks) OnCall(s *State) float64 {
	// resets the RT origin
	h.decisionHooks.OnCall(s)

	current, currentOK := h.name, true
	if h.nshift != 0 {
		var rec ir.EventRecord
		rec, currentOK = s.History.Events.At(h.nshift)
		current = rec.Name
	}
	previous, previousOK := s.History.Events.At(h.nshift - h.nback)

	switch {
	case !currentOK || !previousOK:
		s.WasRepeat = ir.Null()
	case current == previous.Name:
		s.WasRepeat = 1
	default:
		s.WasRepeat = 0
	}
	s.debug("nback", "current", current, "previous", previous.Name, "was_repeat", s.WasRepeat)

	switch {
	case ir.IsNull(s.WasRepeat):
		// nothing to compare against: every response stays unscored
		s.Correct, s.Incorrect = nil, nil
	case s.WasRepeat == 1:
		s.Correct, s.Incorrect = h.repeat, h.nonRepeat
	default:
		s.Correct, s.Incorrect = h.nonRepeat, h.repeat
	}
	return s.WasRepeat
}

// NBackEvent configures an N-back repetition detection event.
type NBackEvent struct {
	// Draws is drawn on every frame.
	Draws []Drawable

	// RepeatKeys are correct when the stimulus repeats the one N back.
	RepeatKeys []string

	// NonRepeatKeys are correct when it does not.
	NonRepeatKeys []string

	// N is how many events back to compare. Must be 1 or more.
	N int

	// Shift moves the whole comparison back through the history. With
	// Shift -1 an ISI event scores the stimulus before it against the one
	// N before that. 0 compares this event's own name.
	Shift int

	// MinRT filters anticipations.
	MinRT float64
}

// NewNBackEvent creates a decision event whose correct and incorrect keys are
// chosen at each call from the names in the history. OnCall returns the
// repeat status (1, 0 or NaN when the history is too short).
func NewNBackEvent(cfg NBackEvent, opts ...Option) (*Event, error) {
	o := applyOptions(options{}, opts)
	if cfg.N < 1 {
		return nil, ir.NewConfigurationError("nback event %q: N must be 1 or greater, got %d", o.name, cfg.N)
	}
	if cfg.Shift > 0 {
		return nil, ir.NewConfigurationError("nback event %q: shift must be 0 or negative, got %d", o.name, cfg.Shift)
	}
	if cfg.Shift == 0 && o.name == "" {
		return nil, ir.NewConfigurationError("nback event without shift requires a name")
	}
	dec, err := newDecisionHooks(cfg.Draws, cfg.RepeatKeys, cfg.NonRepeatKeys, cfg.MinRT)
	if err != nil {
		return nil, err
	}
	return newEvent(nbackHooks{
		decisionHooks: dec,
		name:          o.name,
		nback:         cfg.N,
		nshift:        cfg.Shift,
		repeat:        NewKeySet(cfg.RepeatKeys...),
		nonRepeat:     NewKeySet(cfg.NonRepeatKeys...),
	}, options{}, opts)
}
