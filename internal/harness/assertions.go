package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		return assertEventCount(result, a)
	case AssertResponseScore:
		return assertResponseScore(result, a)
	case AssertConditionOrder:
		return assertConditionOrder(result, a)
	case AssertPeriodWithin:
		return assertPeriodWithin(result, a)
	default:
		return &AssertionError{
			Type:     a.Type,
			Expected: "a known assertion type",
			Actual:   fmt.Sprintf("unknown type %q", a.Type),
		}
	}
}

func assertEventCount(result *Result, a Assertion) error {
	count := 0
	for _, row := range result.Events {
		if row.Name != a.Name {
			continue
		}
		if a.Phase != "" && string(row.Phase) != a.Phase {
			continue
		}
		count++
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d events named %s%s", a.Count, a.Name, phaseSuffix(a.Phase)),
			Actual:   fmt.Sprintf("%d events", count),
		}
	}
	return nil
}

func phaseSuffix(phase string) string {
	if phase == "" {
		return ""
	}
	return " in phase " + phase
}

func assertResponseScore(result *Result, a Assertion) error {
	main := result.MainResponses()
	if a.Index >= len(main) {
		return &AssertionError{
			Type:     AssertResponseScore,
			Expected: fmt.Sprintf("a main phase response at index %d", a.Index),
			Actual:   fmt.Sprintf("%d responses", len(main)),
		}
	}
	got := main[a.Index]
	want := ir.Null()
	if a.Score != nil {
		want = *a.Score
	}
	if ir.IsNull(want) != ir.IsNull(got.Score) || (!ir.IsNull(want) && want != got.Score) {
		return &AssertionError{
			Type:     AssertResponseScore,
			Expected: fmt.Sprintf("response %d scored %g", a.Index, want),
			Actual:   fmt.Sprintf("key %s at %g scored %g", got.Key, got.Time, got.Score),
		}
	}
	return nil
}

func assertConditionOrder(result *Result, a Assertion) error {
	var order []string
	for _, row := range result.Events {
		if row.Phase != engine.PhaseMain {
			continue
		}
		if n := len(order); n > 0 && order[n-1] == row.Condition {
			continue
		}
		order = append(order, row.Condition)
	}
	if !slices.Equal(order, a.Conditions) {
		return &AssertionError{
			Type:     AssertConditionOrder,
			Expected: fmt.Sprintf("%v", a.Conditions),
			Actual:   fmt.Sprintf("%v", order),
		}
	}
	return nil
}

func assertPeriodWithin(result *Result, a Assertion) error {
	var times []float64
	for _, row := range result.MainResponses() {
		if row.Key == a.Key {
			times = append(times, row.Time)
		}
	}
	if len(times) < 2 {
		return &AssertionError{
			Type:     AssertPeriodWithin,
			Expected: fmt.Sprintf("at least 2 main phase responses with key %s", a.Key),
			Actual:   fmt.Sprintf("%d responses", len(times)),
		}
	}
	for i := 1; i < len(times); i++ {
		if d := times[i] - times[i-1]; math.Abs(d-a.Period) > a.Tolerance {
			return &AssertionError{
				Type:     AssertPeriodWithin,
				Expected: fmt.Sprintf("key %s every %gs (±%gs)", a.Key, a.Period, a.Tolerance),
				Actual:   fmt.Sprintf("%gs between %g and %g", d, times[i-1], times[i]),
			}
		}
	}
	return nil
}
