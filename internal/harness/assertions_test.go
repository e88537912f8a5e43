package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/ir"
	"github.com/jooh/expcontrol/internal/store"
)

func score(v float64) *float64 { return &v }

func event(phase engine.Phase, cond, name string, t float64) store.EventRow {
	rec := ir.NewEventRecord(name, t)
	rec.Condition = cond
	return store.EventRow{Session: "s", Subject: "s01", Phase: phase, EventRecord: rec}
}

func response(phase engine.Phase, key string, t, s float64) store.ResponseRow {
	return store.ResponseRow{
		Session:        "s",
		Subject:        "s01",
		Phase:          phase,
		ResponseRecord: ir.ResponseRecord{Time: t, Key: key, Score: s, RT: ir.Null()},
	}
}

func sampleResult() *Result {
	r := NewResult()
	r.Events = []store.EventRow{
		event(engine.PhasePre, "", "ready", 0),
		event(engine.PhaseMain, "a", "stim", 0),
		event(engine.PhaseMain, "a", "stim", 0.5),
		event(engine.PhaseMain, "b", "resp", 1),
		event(engine.PhaseMain, "a", "stim", 1.5),
	}
	r.Responses = []store.ResponseRow{
		response(engine.PhasePre, "space", 0, ir.Null()),
		response(engine.PhaseMain, "5", 0.25, 1),
		response(engine.PhaseMain, "f", 1.2, 0),
		response(engine.PhaseMain, "5", 2.3, ir.Null()),
		response(engine.PhaseMain, "5", 4.25, 1),
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertEventCount, Name: "stim", Count: 3},
		{Type: AssertEventCount, Name: "stim", Phase: "main", Count: 3},
		{Type: AssertEventCount, Name: "ready", Phase: "main", Count: 0},
		{Type: AssertResponseScore, Index: 0, Score: score(1)},
		{Type: AssertResponseScore, Index: 1, Score: score(0)},
		{Type: AssertResponseScore, Index: 2},
		{Type: AssertConditionOrder, Conditions: []string{"a", "b", "a"}},
		{Type: AssertPeriodWithin, Key: "5", Period: 2, Tolerance: 0.1},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "event count",
			assertion: Assertion{Type: AssertEventCount, Name: "stim", Phase: "pre", Count: 1},
			want:      "1 events named stim in phase pre",
		},
		{
			name:      "score mismatch",
			assertion: Assertion{Type: AssertResponseScore, Index: 0, Score: score(0)},
			want:      "key 5 at 0.25 scored 1",
		},
		{
			name:      "expected unscored",
			assertion: Assertion{Type: AssertResponseScore, Index: 1},
			want:      "response 1 scored NaN",
		},
		{
			name:      "index out of range",
			assertion: Assertion{Type: AssertResponseScore, Index: 9},
			want:      "4 responses",
		},
		{
			name:      "condition order",
			assertion: Assertion{Type: AssertConditionOrder, Conditions: []string{"a", "a", "b", "a"}},
			want:      "Actual: [a b a]",
		},
		{
			name:      "period too loose",
			assertion: Assertion{Type: AssertPeriodWithin, Key: "5", Period: 2, Tolerance: 0.01},
			want:      "between 0.25 and 2.3",
		},
		{
			name:      "too few responses",
			assertion: Assertion{Type: AssertPeriodWithin, Key: "f", Period: 1},
			want:      "1 responses",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_order"},
			want:      `unknown type "trace_order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
