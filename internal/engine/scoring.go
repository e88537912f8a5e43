package engine

import (
	"fmt"
	"slices"

	"github.com/jooh/expcontrol/internal/ir"
)

// detectionHooks scores correct detections with 1 and everything else NaN.
type detectionHooks struct {
	drawHooks
	correct KeySet
	minRT   float64
}

func (h detectionHooks) OnCall(s *State) float64 {
	h.drawHooks.OnCall(s)
	s.Start = s.Now()
	s.Correct = h.correct
	return ir.Null()
}

// prepare converts a raw response to a reaction time and rewrites
// anticipations (faster than minRT) to the reserved key with NaN RT.
func (h detectionHooks) prepare(s *State, r ir.Response) (key string, rt float64) {
	rt = r.Time - s.Start
	if rt < h.minRT {
		return ir.ReservedKey, ir.Null()
	}
	return r.Key, rt
}

func (h detectionHooks) OnResponse(s *State, r ir.Response) (float64, float64) {
	key, rt := h.prepare(s, r)
	if !s.Correct.Has(key) {
		return ir.Null(), ir.Null()
	}
	return 1, rt
}

// NewDetectionEvent creates a DrawEvent that scores responses in correct as 1
// with a reaction time measured from event entry. Responses faster than
// minRT are anticipations and stay unscored.
func NewDetectionEvent(draws []Drawable, correct []string, minRT float64, opts ...Option) (*Event, error) {
	h, err := newDetectionHooks(draws, correct, minRT)
	if err != nil {
		return nil, err
	}
	return newEvent(h, options{}, opts)
}

func newDetectionHooks(draws []Drawable, correct []string, minRT float64) (detectionHooks, error) {
	if err := checkKeys("correct keys", correct); err != nil {
		return detectionHooks{}, err
	}
	if !(minRT >= 0) {
		return detectionHooks{}, ir.NewConfigurationError("minimum RT must be 0 or greater, got %g", minRT)
	}
	return detectionHooks{
		drawHooks: drawHooks{draws: slices.Clone(draws)},
		correct:   NewKeySet(correct...),
		minRT:     minRT,
	}, nil
}

// decisionHooks scores correct keys 1 and incorrect keys 0. Only correct
// responses keep their reaction time.
type decisionHooks struct {
	detectionHooks
	incorrect KeySet
}

func (h decisionHooks) OnCall(s *State) float64 {
	h.detectionHooks.OnCall(s)
	s.Incorrect = h.incorrect
	return ir.Null()
}

func (h decisionHooks) OnResponse(s *State, r ir.Response) (float64, float64) {
	key, rt := h.prepare(s, r)
	score := ir.Null()
	if s.Incorrect.Has(key) {
		score = 0
	}
	if s.Correct.Has(key) {
		score = 1
	}
	if score != 1 {
		rt = ir.Null()
	}
	s.debug("decision", "key", key, "score", score)
	return score, rt
}

// NewDecisionEvent creates a DrawEvent with accuracy scoring: keys in correct
// score 1, keys in incorrect score 0, anything else (and anticipations
// faster than minRT) stays NaN.
func NewDecisionEvent(draws []Drawable, correct, incorrect []string, minRT float64, opts ...Option) (*Event, error) {
	h, err := newDecisionHooks(draws, correct, incorrect, minRT)
	if err != nil {
		return nil, err
	}
	return newEvent(h, options{}, opts)
}

func newDecisionHooks(draws []Drawable, correct, incorrect []string, minRT float64) (decisionHooks, error) {
	det, err := newDetectionHooks(draws, correct, minRT)
	if err != nil {
		return decisionHooks{}, err
	}
	if err := checkKeys("incorrect keys", incorrect); err != nil {
		return decisionHooks{}, err
	}
	for _, k := range incorrect {
		if det.correct.Has(k) {
			return decisionHooks{}, ir.NewConfigurationError("key %q is both correct and incorrect", k)
		}
	}
	return decisionHooks{detectionHooks: det, incorrect: NewKeySet(incorrect...)}, nil
}

// synchHooks scores the trigger key as a detected pulse. The second return is
// the absolute pulse time rather than a reaction time.
type synchHooks struct {
	detectionHooks
}

func (h synchHooks) OnCall(s *State) float64 {
	h.detectionHooks.OnCall(s)
	s.debug("waiting for pulse")
	return ir.Null()
}

func (h synchHooks) OnResponse(s *State, r ir.Response) (float64, float64) {
	key, _ := h.prepare(s, r)
	if !s.Correct.Has(key) {
		return ir.Null(), ir.Null()
	}
	return 1, r.Time
}

// NewSynchEvent creates an event that lasts until key arrives, typically the
// last event of a RelTimeSeq trial so the next trial starts on a scanner
// pulse. Defaults: name "synch", infinite duration, skip on key.
func NewSynchEvent(draws []Drawable, key string, opts ...Option) (*Event, error) {
	if key == "" {
		return nil, ir.NewConfigurationError("synch event requires a target key")
	}
	det, err := newDetectionHooks(draws, []string{key}, 0)
	if err != nil {
		return nil, fmt.Errorf("synch event: %w", err)
	}
	defaults := options{
		name:     "synch",
		duration: ir.Forever,
		skipKeys: []string{key},
	}
	return newEvent(synchHooks{detectionHooks: det}, defaults, opts)
}
