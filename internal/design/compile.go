package design

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"cuelang.org/go/cue"
	"golang.org/x/text/unicode/norm"

	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/ir"
)

// Design is a compiled experiment design.
type Design struct {
	Name       string
	Conditions map[string]engine.Runnable
	Order      []string
	Timing     engine.Timing
	Pre        engine.Runnable
	Post       engine.Runnable
}

// ConditionNames returns the condition keys in sorted order.
func (d *Design) ConditionNames() []string {
	names := make([]string, 0, len(d.Conditions))
	for name := range d.Conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile turns a CUE value into a Design, resolving stimulus names through
// stimuli.
func Compile(v cue.Value, stimuli Stimuli) (*Design, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError("design", err)
	}
	c := &compiler{stimuli: stimuli}

	d := &Design{Conditions: make(map[string]engine.Runnable)}
	var err error
	if d.Name, err = c.optString(v, "name"); err != nil {
		return nil, err
	}
	if d.Timing, err = c.timing(v, "timing"); err != nil {
		return nil, err
	}

	conds := v.LookupPath(cue.ParsePath("condition"))
	if !conds.Exists() {
		return nil, &CompileError{Field: "condition", Message: "at least one condition is required", Pos: v.Pos()}
	}
	iter, err := conds.Fields()
	if err != nil {
		return nil, formatCUEError("condition", err)
	}
	for iter.Next() {
		label := norm.NFC.String(iter.Selector().Unquoted())
		r, err := c.condition(label, iter.Value())
		if err != nil {
			return nil, err
		}
		d.Conditions[label] = r
	}
	if len(d.Conditions) == 0 {
		return nil, &CompileError{Field: "condition", Message: "at least one condition is required", Pos: conds.Pos()}
	}

	if d.Order, err = c.strings(v, "order"); err != nil {
		return nil, err
	}
	for i, key := range d.Order {
		if _, ok := d.Conditions[key]; !ok {
			return nil, &CompileError{
				Field:   fmt.Sprintf("order[%d]", i),
				Message: fmt.Sprintf("unknown condition %q", key),
				Pos:     v.LookupPath(cue.ParsePath("order")).Pos(),
			}
		}
	}

	if pre := v.LookupPath(cue.ParsePath("pre")); pre.Exists() {
		if d.Pre, err = c.runnable("pre", pre); err != nil {
			return nil, err
		}
	}
	if post := v.LookupPath(cue.ParsePath("post")); post.Exists() {
		if d.Post, err = c.runnable("post", post); err != nil {
			return nil, err
		}
	}
	return d, nil
}

type compiler struct {
	stimuli Stimuli
}

// condition compiles a condition block into a sequence labelled with the
// condition key.
func (c *compiler) condition(label string, v cue.Value) (engine.Runnable, error) {
	path := "condition." + label
	timing, err := c.timing(v, "timing")
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{engine.WithName(label)}
	if dv := v.LookupPath(cue.ParsePath("duration")); dv.Exists() {
		d, err := c.duration(path+".duration", dv)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithDuration(d))
	}
	return c.sequence(path, v, timing, opts)
}

func (c *compiler) sequence(path string, v cue.Value, timing engine.Timing, opts []engine.Option) (engine.Runnable, error) {
	ev := v.LookupPath(cue.ParsePath("events"))
	if !ev.Exists() {
		return nil, &CompileError{Field: path + ".events", Message: "events are required", Pos: v.Pos()}
	}
	list, err := ev.List()
	if err != nil {
		return nil, formatCUEError(path+".events", err)
	}

	var children []engine.Runnable
	for i := 0; list.Next(); i++ {
		child, err := c.runnable(fmt.Sprintf("%s.events[%d]", path, i), list.Value())
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 0 {
		return nil, &CompileError{Field: path + ".events", Message: "at least one event is required", Pos: ev.Pos()}
	}

	var seq engine.Runnable
	switch timing {
	case engine.RelTime:
		seq, err = engine.NewRelTimeSeq(children, opts...)
	default:
		seq, err = engine.NewAbsTimeSeq(children, opts...)
	}
	if err != nil {
		return nil, wrap(path, v, err)
	}
	return seq, nil
}

// runnable compiles one entry of an events list (or a pre/post event).
func (c *compiler) runnable(path string, v cue.Value) (engine.Runnable, error) {
	kind, err := c.optString(v, "kind")
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = "event"
	}

	opts, err := c.options(path, v)
	if err != nil {
		return nil, err
	}

	if kind == "sequence" {
		timing, err := c.timing(v, "timing")
		if err != nil {
			return nil, err
		}
		return c.sequence(path, v, timing, opts)
	}

	draws, err := c.draws(v, "draw")
	if err != nil {
		return nil, err
	}

	var r engine.Runnable
	switch kind {
	case "event":
		r, err = engine.NewEvent(opts...)
	case "draw":
		r, err = engine.NewDrawEvent(draws, opts...)
	case "detection":
		r, err = c.detection(v, draws, opts)
	case "decision":
		r, err = c.decision(v, draws, opts)
	case "nback":
		r, err = c.nback(v, draws, opts)
	case "synch":
		r, err = c.synch(v, draws, opts)
	case "feedback":
		r, err = c.feedback(v, draws, opts)
	default:
		return nil, &CompileError{Field: path + ".kind", Message: fmt.Sprintf("unknown event kind %q", kind), Pos: v.Pos()}
	}
	if err != nil {
		return nil, wrap(path, v, err)
	}
	return r, nil
}

func (c *compiler) options(path string, v cue.Value) ([]engine.Option, error) {
	var opts []engine.Option

	name, err := c.optString(v, "name")
	if err != nil {
		return nil, err
	}
	if name != "" {
		opts = append(opts, engine.WithName(norm.NFC.String(name)))
	}

	if dv := v.LookupPath(cue.ParsePath("duration")); dv.Exists() {
		d, err := c.duration(path+".duration", dv)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithDuration(d))
	}

	if sv := v.LookupPath(cue.ParsePath("skip")); sv.Exists() {
		keys, err := c.strings(v, "skip")
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithSkipKeys(keys...))
	}

	if vv := v.LookupPath(cue.ParsePath("verbose")); vv.Exists() {
		verbose, err := vv.Bool()
		if err != nil {
			return nil, formatCUEError(path+".verbose", err)
		}
		opts = append(opts, engine.WithVerbose(verbose))
	}
	return opts, nil
}

func (c *compiler) detection(v cue.Value, draws []engine.Drawable, opts []engine.Option) (engine.Runnable, error) {
	correct, err := c.strings(v, "correct")
	if err != nil {
		return nil, err
	}
	minRT, err := c.optFloat(v, "min_rt")
	if err != nil {
		return nil, err
	}
	return engine.NewDetectionEvent(draws, correct, minRT, opts...)
}

func (c *compiler) decision(v cue.Value, draws []engine.Drawable, opts []engine.Option) (engine.Runnable, error) {
	correct, err := c.strings(v, "correct")
	if err != nil {
		return nil, err
	}
	incorrect, err := c.strings(v, "incorrect")
	if err != nil {
		return nil, err
	}
	minRT, err := c.optFloat(v, "min_rt")
	if err != nil {
		return nil, err
	}
	return engine.NewDecisionEvent(draws, correct, incorrect, minRT, opts...)
}

func (c *compiler) nback(v cue.Value, draws []engine.Drawable, opts []engine.Option) (engine.Runnable, error) {
	cfg := engine.NBackEvent{Draws: draws}
	var err error
	if cfg.RepeatKeys, err = c.strings(v, "repeat"); err != nil {
		return nil, err
	}
	if cfg.NonRepeatKeys, err = c.strings(v, "non_repeat"); err != nil {
		return nil, err
	}
	if cfg.MinRT, err = c.optFloat(v, "min_rt"); err != nil {
		return nil, err
	}
	n, err := c.optInt(v, "n", 1)
	if err != nil {
		return nil, err
	}
	shift, err := c.optInt(v, "shift", 0)
	if err != nil {
		return nil, err
	}
	cfg.N, cfg.Shift = n, shift
	return engine.NewNBackEvent(cfg, opts...)
}

func (c *compiler) synch(v cue.Value, draws []engine.Drawable, opts []engine.Option) (engine.Runnable, error) {
	key, err := c.optString(v, "key")
	if err != nil {
		return nil, err
	}
	return engine.NewSynchEvent(draws, norm.NFC.String(key), opts...)
}

func (c *compiler) feedback(v cue.Value, draws []engine.Drawable, opts []engine.Option) (engine.Runnable, error) {
	scorer, err := c.optString(v, "scorer")
	if err != nil {
		return nil, err
	}
	if scorer != "" && scorer != "latest" {
		return nil, &CompileError{Field: "scorer", Message: fmt.Sprintf("unknown scorer %q", scorer), Pos: v.Pos()}
	}
	var fb engine.FeedbackDraws
	if fb.Correct, err = c.draws(v, "correct_draw"); err != nil {
		return nil, err
	}
	if fb.Incorrect, err = c.draws(v, "incorrect_draw"); err != nil {
		return nil, err
	}
	if fb.Omit, err = c.draws(v, "omit_draw"); err != nil {
		return nil, err
	}
	return engine.NewFeedbackEvent(draws, engine.LatestScore, fb, opts...)
}

// duration accepts seconds or "forever".
func (c *compiler) duration(field string, v cue.Value) (float64, error) {
	if s, err := v.String(); err == nil {
		if s == "forever" {
			return ir.Forever, nil
		}
		return 0, &CompileError{Field: field, Message: fmt.Sprintf("duration must be seconds or \"forever\", got %q", s), Pos: v.Pos()}
	}
	d, err := v.Float64()
	if err != nil {
		return 0, formatCUEError(field, err)
	}
	return d, nil
}

func (c *compiler) timing(v cue.Value, field string) (engine.Timing, error) {
	s, err := c.optString(v, field)
	if err != nil {
		return 0, err
	}
	t, err := engine.ParseTiming(s)
	if err != nil {
		return 0, wrap(field, v.LookupPath(cue.ParsePath(field)), err)
	}
	return t, nil
}

func (c *compiler) draws(v cue.Value, field string) ([]engine.Drawable, error) {
	names, err := c.strings(v, field)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 && c.stimuli == nil {
		return nil, &CompileError{Field: field, Message: "design draws stimuli but no stimulus set was given", Pos: v.Pos()}
	}
	draws := make([]engine.Drawable, 0, len(names))
	for _, name := range names {
		d, err := c.stimuli.Stimulus(name)
		if err != nil {
			return nil, wrap(field, v.LookupPath(cue.ParsePath(field)), err)
		}
		draws = append(draws, d)
	}
	return draws, nil
}

func (c *compiler) optString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(field, err)
	}
	return s, nil
}

func (c *compiler) optFloat(v cue.Value, field string) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, formatCUEError(field, err)
	}
	return f, nil
}

func (c *compiler) optInt(v cue.Value, field string, def int) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(field, err)
	}
	return int(n), nil
}

// strings reads an optional list of strings, NFC-normalised.
func (c *compiler) strings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	list, err := fv.List()
	if err != nil {
		return nil, formatCUEError(field, err)
	}
	var out []string
	for list.Next() {
		s, err := list.Value().String()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		out = append(out, norm.NFC.String(s))
	}
	return slices.Clip(out), nil
}

// wrap attaches the source position of v to an error from the engine.
// Errors that already carry a position pass through.
func wrap(field string, v cue.Value, err error) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce
	}
	msg := err.Error()
	var ie *ir.Error
	if errors.As(err, &ie) {
		msg = ie.Message
	}
	return &CompileError{Field: field, Message: msg, Pos: v.Pos()}
}
