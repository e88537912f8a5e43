package device

import "sync/atomic"

// Stimulus is a headless stand-in for a visual stimulus. It only counts
// draws, which is enough to run and log a design without a screen.
type Stimulus struct {
	name  string
	draws atomic.Int64
}

// NewStimulus creates a headless stimulus.
func NewStimulus(name string) *Stimulus {
	return &Stimulus{name: name}
}

// Name returns the stimulus name.
func (s *Stimulus) Name() string { return s.name }

// Draw counts one draw.
func (s *Stimulus) Draw() { s.draws.Add(1) }

// Draws returns the number of draws so far.
func (s *Stimulus) Draws() int { return int(s.draws.Load()) }
