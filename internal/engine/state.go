package engine

import (
	"context"
	"log/slog"

	"github.com/jooh/expcontrol/internal/ir"
)

// KeySet is a set of response keys.
type KeySet map[string]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether key is in the set. A nil set has no keys.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// State is the scoring context of one event invocation.
//
// A fresh State is created for every Run, so scoring fields set in OnCall
// (start time, correct keys, repeat status) cannot leak between trials even
// when one template is shared by several runs.
type State struct {
	// Name is the name of the running event.
	Name string

	// History is everything logged before this invocation. Read-only.
	History ir.History

	// Start is the reaction-time origin, set by scoring hooks at OnCall.
	Start float64

	// Correct and Incorrect are the scoring key sets for this invocation.
	Correct   KeySet
	Incorrect KeySet

	// WasRepeat is 1 if the stimulus repeats the one N back, 0 if not and
	// NaN if unknown.
	WasRepeat float64

	// Draws is the stimulus set drawn on every frame.
	Draws []Drawable

	ctrl    *Controller
	verbose bool
}

func newState(e *Event, ctrl *Controller, hist ir.History) *State {
	return &State{
		Name:      e.name,
		History:   hist,
		Start:     ir.Null(),
		WasRepeat: ir.Null(),
		ctrl:      ctrl,
		verbose:   e.verbose,
	}
}

// Now reads the controller clock.
func (s *State) Now() float64 {
	return s.ctrl.clock.Now()
}

// Controller returns the controller running the event.
func (s *State) Controller() *Controller {
	return s.ctrl
}

// debug logs scoring diagnostics, at Info when the event is verbose.
func (s *State) debug(msg string, args ...any) {
	level := slog.LevelDebug
	if s.verbose {
		level = slog.LevelInfo
	}
	s.ctrl.logger.Log(context.Background(), level, msg, append([]any{"event", s.Name}, args...)...)
}
