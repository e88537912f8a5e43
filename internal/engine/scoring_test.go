package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooh/expcontrol/internal/ir"
	"github.com/jooh/expcontrol/internal/testutil"
)

func runOnce(t *testing.T, r *rig, ev Runnable, end float64) (ir.EventLog, ir.ResponseLog) {
	t.Helper()
	events, responses, err := ev.Run(context.Background(), r.ctrl, end, ir.History{})
	require.NoError(t, err)
	return events, responses
}

func TestDetectionEvent_ScoresCorrectKeys(t *testing.T) {
	r := newRig(t,
		testutil.Press{Key: "f", At: 0.05},
		testutil.Press{Key: "j", At: 0.25},
		testutil.Press{Key: "f", At: 0.5},
	)
	ev, err := NewDetectionEvent(nil, []string{"f"}, 0.1, WithName("target"), WithDuration(1))
	require.NoError(t, err)

	_, responses := runOnce(t, r, ev, 1)
	require.Len(t, responses, 3)

	// anticipation: logged under its raw key but never scored
	assert.Equal(t, "f", responses[0].Key)
	assert.True(t, math.IsNaN(responses[0].Score))
	assert.True(t, math.IsNaN(responses[0].RT))

	assert.True(t, math.IsNaN(responses[1].Score))

	assert.Equal(t, 1.0, responses[2].Score)
	assert.Equal(t, 0.5, responses[2].RT)
}

func TestDecisionEvent_Scoring(t *testing.T) {
	tests := []struct {
		name      string
		press     testutil.Press
		wantScore float64
		wantRT    float64
	}{
		{"correct", testutil.Press{Key: "f", At: 0.25}, 1, 0.25},
		{"incorrect", testutil.Press{Key: "j", At: 0.25}, 0, math.NaN()},
		{"other key", testutil.Press{Key: "k", At: 0.25}, math.NaN(), math.NaN()},
		{"anticipation", testutil.Press{Key: "f", At: 0.05}, math.NaN(), math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.press)
			ev, err := NewDecisionEvent(nil, []string{"f"}, []string{"j"}, 0.1, WithName("choice"), WithDuration(0.5))
			require.NoError(t, err)

			_, responses := runOnce(t, r, ev, 0.5)
			require.Len(t, responses, 1)

			assertFloat(t, tt.wantScore, responses[0].Score)
			assertFloat(t, tt.wantRT, responses[0].RT)
		})
	}
}

func TestNewDecisionEvent_Validation(t *testing.T) {
	tests := []struct {
		name      string
		correct   []string
		incorrect []string
		minRT     float64
	}{
		{"overlapping keys", []string{"f"}, []string{"f", "j"}, 0},
		{"reserved correct key", []string{ir.ReservedKey}, nil, 0},
		{"reserved incorrect key", []string{"f"}, []string{ir.ReservedKey}, 0},
		{"negative min rt", []string{"f"}, []string{"j"}, -0.1},
		{"nan min rt", []string{"f"}, []string{"j"}, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecisionEvent(nil, tt.correct, tt.incorrect, tt.minRT)
			require.Error(t, err)
			assert.True(t, ir.IsConfigurationError(err))
		})
	}
}

func TestSynchEvent_EndsOnPulse(t *testing.T) {
	r := newRig(t, testutil.Press{Key: "f", At: 0.25}, testutil.Press{Key: "5", At: 1})
	ev, err := NewSynchEvent(nil, "5")
	require.NoError(t, err)

	assert.Equal(t, "synch", ev.Name())
	assert.True(t, ir.IsForever(ev.Duration()))
	assert.Equal(t, []string{"5"}, ev.SkipKeys())

	events, responses := runOnce(t, r, ev, ir.Forever)
	require.Len(t, events, 1)
	require.Len(t, responses, 2)

	assert.True(t, math.IsNaN(responses[0].Score))
	assert.Equal(t, 1.0, responses[1].Score)
	assert.Equal(t, 1.0, responses[1].RT, "the second value is the pulse time")
	assert.Equal(t, 1.125, r.clk.Now())
}

func TestNewSynchEvent_RequiresKey(t *testing.T) {
	_, err := NewSynchEvent(nil, "")
	assert.True(t, ir.IsConfigurationError(err))
}

func TestNBackEvent_RepeatDetection(t *testing.T) {
	stimuli := []string{"A", "B", "A", "A", "B"}
	children := make([]Runnable, len(stimuli))
	for i, name := range stimuli {
		ev, err := NewNBackEvent(NBackEvent{
			RepeatKeys:    []string{"r"},
			NonRepeatKeys: []string{"n"},
			N:             1,
		}, WithName(name), WithDuration(0.5))
		require.NoError(t, err)
		children[i] = ev
	}
	seq, err := NewAbsTimeSeq(children)
	require.NoError(t, err)

	r := newRig(t,
		testutil.Press{Key: "r", At: 0.75},
		testutil.Press{Key: "n", At: 1.25},
		testutil.Press{Key: "r", At: 1.75},
		testutil.Press{Key: "n", At: 2.25},
	)
	events, responses := runOnce(t, r, seq, 0)

	require.Len(t, events, 5)
	assert.Equal(t, stimuli, events.Names())
	assert.True(t, math.IsNaN(events[0].OnCall), "first stimulus has nothing to compare against")
	assert.Equal(t, 0.0, events[1].OnCall)
	assert.Equal(t, 0.0, events[2].OnCall)
	assert.Equal(t, 1.0, events[3].OnCall)
	assert.Equal(t, 0.0, events[4].OnCall)

	require.Len(t, responses, 4)
	assert.Equal(t, 0.0, responses[0].Score, "repeat key on a non-repeat")
	assert.Equal(t, 1.0, responses[1].Score, "non-repeat key on A after B")
	assert.Equal(t, 0.25, responses[1].RT)
	assert.Equal(t, 1.0, responses[2].Score, "repeat key on a repeat")
	assert.Equal(t, 0.25, responses[2].RT)
	assert.Equal(t, 1.0, responses[3].Score, "non-repeat key on a non-repeat")
}

func TestNBackEvent_UnknownHistoryLeavesResponsesUnscored(t *testing.T) {
	r := newRig(t, testutil.Press{Key: "r", At: 0.25}, testutil.Press{Key: "n", At: 0.375})
	ev, err := NewNBackEvent(NBackEvent{
		RepeatKeys:    []string{"r"},
		NonRepeatKeys: []string{"n"},
		N:             2,
	}, WithName("A"), WithDuration(0.5))
	require.NoError(t, err)

	_, responses := runOnce(t, r, ev, 0.5)
	require.Len(t, responses, 2)
	for _, resp := range responses {
		assert.True(t, math.IsNaN(resp.Score))
	}
}

func TestNBackEvent_ShiftComparesEarlierEvents(t *testing.T) {
	names := []string{"A", "isi", "A", "isi"}
	children := make([]Runnable, len(names))
	for i, name := range names {
		var (
			ev  *Event
			err error
		)
		if name == "isi" {
			ev, err = NewNBackEvent(NBackEvent{
				RepeatKeys:    []string{"r"},
				NonRepeatKeys: []string{"n"},
				N:             2,
				Shift:         -1,
			}, WithName(name), WithDuration(0.5))
		} else {
			ev, err = NewDrawEvent(nil, WithName(name), WithDuration(0.5))
		}
		require.NoError(t, err)
		children[i] = ev
	}
	seq, err := NewAbsTimeSeq(children)
	require.NoError(t, err)

	r := newRig(t, testutil.Press{Key: "r", At: 1.75})
	events, responses := runOnce(t, r, seq, 0)

	require.Len(t, events, 4)
	assert.True(t, math.IsNaN(events[1].OnCall))
	assert.Equal(t, 1.0, events[3].OnCall)
	require.Len(t, responses, 1)
	assert.Equal(t, 1.0, responses[0].Score)
}

func TestNewNBackEvent_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  NBackEvent
		opts []Option
	}{
		{"zero n", NBackEvent{N: 0}, []Option{WithName("A")}},
		{"positive shift", NBackEvent{N: 1, Shift: 1}, []Option{WithName("A")}},
		{"unnamed without shift", NBackEvent{N: 1}, nil},
		{"overlapping keys", NBackEvent{N: 1, RepeatKeys: []string{"r"}, NonRepeatKeys: []string{"r"}}, []Option{WithName("A")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNBackEvent(tt.cfg, tt.opts...)
			require.Error(t, err)
			assert.True(t, ir.IsConfigurationError(err))
		})
	}
}

// assertFloat compares floats treating NaN as equal to NaN.
func assertFloat(t *testing.T, want, got float64) {
	t.Helper()
	if math.IsNaN(want) {
		assert.True(t, math.IsNaN(got), "want NaN, got %v", got)
		return
	}
	assert.Equal(t, want, got)
}
