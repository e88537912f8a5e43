package engine

import (
	"slices"

	"github.com/jooh/expcontrol/internal/ir"
)

// Hooks are the four lifecycle callbacks of an Event. They are the only
// axis of variation between event kinds.
//
// Results of OnCall, OnFrame and OnEnd are stored in the EventRecord (only
// the last frame's result is kept). NaN means "no result".
type Hooks interface {
	OnCall(s *State) float64
	OnFrame(s *State) float64
	OnResponse(s *State, r ir.Response) (score, rt float64)
	OnEnd(s *State) float64
}

// BaseHooks does nothing and leaves every response unscored. Embed it to
// override only some callbacks.
type BaseHooks struct{}

// OnCall returns no result.
func (BaseHooks) OnCall(*State) float64 { return ir.Null() }

// OnFrame returns no result.
func (BaseHooks) OnFrame(*State) float64 { return ir.Null() }

// OnResponse leaves the response unscored.
func (BaseHooks) OnResponse(*State, ir.Response) (float64, float64) {
	return ir.Null(), ir.Null()
}

// OnEnd returns no result.
func (BaseHooks) OnEnd(*State) float64 { return ir.Null() }

// drawHooks draws a fixed stimulus set on every frame.
type drawHooks struct {
	BaseHooks
	draws []Drawable
}

func (h drawHooks) OnCall(s *State) float64 {
	s.Draws = h.draws
	return ir.Null()
}

func (drawHooks) OnFrame(s *State) float64 {
	for _, d := range s.Draws {
		d.Draw()
	}
	return ir.Null()
}

// NewDrawEvent creates an Event that draws draws, in order, on every frame.
func NewDrawEvent(draws []Drawable, opts ...Option) (*Event, error) {
	return newEvent(drawHooks{draws: slices.Clone(draws)}, options{}, opts)
}

// Scorer maps the history before an event to a score: 1 correct, any other
// number incorrect, NaN omitted.
type Scorer func(hist ir.History) float64

// LatestScore scores the most recent scored response logged at or after the
// start of the last event in hist. NaN if there is none.
func LatestScore(hist ir.History) float64 {
	last, ok := hist.Events.At(-1)
	if !ok {
		return ir.Null()
	}
	for i := len(hist.Responses) - 1; i >= 0; i-- {
		r := hist.Responses[i]
		if r.Time < last.Time {
			break
		}
		if !ir.IsNull(r.Score) {
			return r.Score
		}
	}
	return ir.Null()
}

// feedbackHooks scores the history at OnCall and picks the stimulus set.
type feedbackHooks struct {
	drawHooks
	scorer    Scorer
	correct   []Drawable
	incorrect []Drawable
	omit      []Drawable
}

func (h feedbackHooks) OnCall(s *State) float64 {
	score := h.scorer(s.History)
	var extra []Drawable
	switch {
	case ir.IsNull(score):
		extra = h.omit
	case score == 1:
		extra = h.correct
	default:
		extra = h.incorrect
	}
	s.Draws = slices.Concat(h.draws, extra)
	s.debug("feedback", "score", score)
	return score
}

// FeedbackDraws are the stimulus sets a feedback event adds to its common
// set, by outcome of the scorer.
type FeedbackDraws struct {
	Correct   []Drawable
	Incorrect []Drawable
	Omit      []Drawable
}

// NewFeedbackEvent creates an Event that scores the history on entry and
// draws common plus the set matching the outcome. The score is the event's
// OnCall result.
func NewFeedbackEvent(common []Drawable, scorer Scorer, fb FeedbackDraws, opts ...Option) (*Event, error) {
	if scorer == nil {
		return nil, ir.NewConfigurationError("feedback event requires a scorer")
	}
	return newEvent(feedbackHooks{
		drawHooks: drawHooks{draws: slices.Clone(common)},
		scorer:    scorer,
		correct:   slices.Clone(fb.Correct),
		incorrect: slices.Clone(fb.Incorrect),
		omit:      slices.Clone(fb.Omit),
	}, options{}, opts)
}
