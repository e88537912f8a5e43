package design

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooh/expcontrol/internal/clock"
	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/ir"
	"github.com/jooh/expcontrol/internal/testutil"
)

func testStimuli() (StimulusMap, map[string]*testutil.Drawable) {
	raw := map[string]*testutil.Drawable{}
	m := StimulusMap{}
	for _, name := range []string{"face", "house", "A", "B", "happy", "sad"} {
		d := &testutil.Drawable{Name: name}
		raw[name] = d
		m[name] = d
	}
	return m, raw
}

func compileString(t *testing.T, src string) (*Design, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	stimuli, _ := testStimuli()
	return Compile(v, stimuli)
}

func TestCompile_Localiser(t *testing.T) {
	stimuli, raw := testStimuli()
	d, err := Load(filepath.Join("testdata", "localiser"), stimuli)
	require.NoError(t, err)

	assert.Equal(t, "localiser", d.Name)
	assert.Equal(t, engine.AbsTime, d.Timing)
	assert.Equal(t, []string{"faces", "houses", "faces"}, d.Order)
	assert.Equal(t, []string{"faces", "houses"}, d.ConditionNames())
	require.NotNil(t, d.Pre)
	assert.Nil(t, d.Post)
	assert.True(t, ir.IsForever(d.Pre.Duration()))
	assert.Equal(t, []string{"space"}, d.Pre.SkipKeys())

	faces, ok := d.Conditions["faces"].(*engine.AbsTimeSeq)
	require.True(t, ok)
	assert.Equal(t, "faces", faces.Name())
	assert.Equal(t, 1.0, faces.Duration())
	assert.Equal(t, 1.5, d.Conditions["houses"].Duration())

	// run one condition to check the stimuli were wired
	src := testutil.NewVirtualSource(0)
	clk := clock.New(src)
	in := testutil.NewScriptedInput(src, testutil.Press{Key: "f", At: 0.75})
	in.Bind(clk)
	ctrl := engine.NewController(testutil.NewFrameDisplay(src, clk, 8), in, clk)

	events, responses, err := faces.Run(context.Background(), ctrl, 0, ir.History{})
	require.NoError(t, err)

	assert.Equal(t, []string{"face", "resp"}, events.Names())
	assert.Equal(t, 4, raw["face"].Draws())
	require.Len(t, responses, 1)
	assert.Equal(t, 1.0, responses[0].Score)
	assert.Equal(t, 0.25, responses[0].RT)
}

func TestCompile_RelTimeWithSynch(t *testing.T) {
	stimuli, _ := testStimuli()
	d, err := Load(filepath.Join("testdata", "pulsed"), stimuli)
	require.NoError(t, err)

	assert.Equal(t, engine.RelTime, d.Timing)
	trial, ok := d.Conditions["trial"].(*engine.RelTimeSeq)
	require.True(t, ok)
	children := trial.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "A", children[0].Name())
	assert.Equal(t, "synch", children[1].Name())
	assert.True(t, ir.IsForever(children[1].Duration()))
}

func TestCompile_AllKinds(t *testing.T) {
	d, err := compileString(t, `
		order: ["all"]
		post: {name: "goodbye", duration: "forever", skip: ["space"], verbose: true}
		condition: all: {
			timing: "rel"
			events: [
				{name: "blank", duration: 0.25},
				{kind: "draw", name: "face", duration: 0.25, draw: ["face"]},
				{kind: "detection", name: "det", duration: 0.25, correct: ["f"]},
				{kind: "decision", name: "dec", duration: 0.25, correct: ["f"], incorrect: ["j"]},
				{kind: "nback", name: "A", duration: 0.25, repeat: ["r"], non_repeat: ["n"], n: 2},
				{kind: "feedback", name: "fb", duration: 0.25, scorer: "latest", correct_draw: ["happy"], incorrect_draw: ["sad"]},
				{kind: "synch", key: "5", name: "wait"},
				{kind: "sequence", name: "inner", timing: "abs", events: [{name: "x", duration: 0.5}]},
			]
		}
	`)
	require.NoError(t, err)

	all := d.Conditions["all"].(*engine.RelTimeSeq)
	names := make([]string, 0)
	for _, c := range all.Children() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"blank", "face", "det", "dec", "A", "fb", "wait", "inner"}, names)
	assert.Equal(t, "goodbye", d.Post.Name())
	assert.Equal(t, engine.AbsTime, d.Timing, "timing defaults to abs")
}

func TestCompile_NormalisesNames(t *testing.T) {
	// the condition label and event name use a decomposed accent
	d, err := compileString(t, `
		order: ["caf\u00e9"]
		condition: "cafe\u0301": events: [{name: "cafe\u0301", duration: 1}]
	`)
	require.NoError(t, err)

	seq, ok := d.Conditions["caf\u00e9"]
	require.True(t, ok)
	assert.Equal(t, "caf\u00e9", seq.(*engine.AbsTimeSeq).Children()[0].Name())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{"no conditions", `order: []`, "at least one condition"},
		{"unknown order key", `order: ["x"], condition: a: events: [{duration: 1}]`, `unknown condition "x"`},
		{"no events", `condition: a: events: []`, "at least one event"},
		{"missing events", `condition: a: {}`, "events are required"},
		{"unknown kind", `condition: a: events: [{kind: "movie"}]`, `unknown event kind "movie"`},
		{"unknown stimulus", `condition: a: events: [{kind: "draw", duration: 1, draw: ["dog"]}]`, `unknown stimulus "dog"`},
		{"bad duration string", `condition: a: events: [{duration: "long"}]`, "seconds or"},
		{"infinite child in abs", `condition: a: events: [{duration: "forever", skip: ["space"]}]`, "unbounded duration"},
		{"rel with duration", `condition: a: {timing: "rel", duration: 2, events: [{duration: 1}]}`, "relative timings"},
		{"bad timing", `timing: "wall", condition: a: events: [{duration: 1}]`, "unknown timing"},
		{"nback without name", `condition: a: events: [{kind: "nback", duration: 1, repeat: ["r"], non_repeat: ["n"]}]`, "requires a name"},
		{"synch without key", `condition: a: {timing: "rel", events: [{kind: "synch"}]}`, "target key"},
		{"unknown scorer", `condition: a: events: [{kind: "feedback", duration: 1, scorer: "median"}]`, `unknown scorer`},
		{"reserved key", `condition: a: events: [{kind: "detection", duration: 1, correct: ["*"]}]`, "reserved key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)

			var ce *CompileError
			assert.True(t, errors.As(err, &ce), "want a CompileError, got %T", err)
			assert.True(t, ir.IsConfigurationError(err))
		})
	}
}

func TestCompile_CUEErrorNamesField(t *testing.T) {
	_, err := compileString(t, `
		name: 42
		condition: a: events: [{duration: 1}]
	`)
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "name", ce.Field)
	assert.True(t, ir.IsConfigurationError(err))
}

func TestLoad_Errors(t *testing.T) {
	stimuli, _ := testStimuli()

	_, err := Load(filepath.Join("testdata", "missing"), stimuli)
	assert.True(t, ir.IsConfigurationError(err))

	_, err = Load(filepath.Join("testdata", "empty"), stimuli)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte("package bad\nname: \"x\"\nname: \"y\"\n"), 0644))
	_, err = Load(dir, stimuli)
	require.Error(t, err)
	assert.True(t, ir.IsConfigurationError(err))
}

func TestStimulusFunc(t *testing.T) {
	called := ""
	f := StimulusFunc(func(name string) (engine.Drawable, error) {
		called = name
		return &testutil.Drawable{Name: name}, nil
	})
	d, err := f.Stimulus("face")
	require.NoError(t, err)
	assert.NotNil(t, d)
	assert.Equal(t, "face", called)
}
