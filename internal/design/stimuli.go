package design

import (
	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/ir"
)

// Stimuli resolves the stimulus names a design draws.
type Stimuli interface {
	Stimulus(name string) (engine.Drawable, error)
}

// StimulusMap resolves names from a fixed set.
type StimulusMap map[string]engine.Drawable

// Stimulus returns the drawable registered under name.
func (m StimulusMap) Stimulus(name string) (engine.Drawable, error) {
	d, ok := m[name]
	if !ok {
		return nil, ir.NewConfigurationError("unknown stimulus %q", name)
	}
	return d, nil
}

// StimulusFunc adapts a function to Stimuli.
type StimulusFunc func(name string) (engine.Drawable, error)

// Stimulus calls f.
func (f StimulusFunc) Stimulus(name string) (engine.Drawable, error) {
	return f(name)
}
