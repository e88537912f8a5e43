package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the stored rows of a result as text, one row per line,
// in append order. Empty conditions print as "-".
func Snapshot(name string, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "session: %s\n", result.Session)
	fmt.Fprintf(&buf, "pass: %t\n", result.Pass)

	buf.WriteString("events:\n")
	for _, row := range result.Events {
		cond := row.Condition
		if cond == "" {
			cond = "-"
		}
		fmt.Fprintf(&buf, "- %s %s %s time=%g on_call=%g on_frame=%g on_end=%g\n",
			row.Phase, cond, row.Name, row.Time, row.OnCall, row.OnFrame, row.OnEnd)
	}

	buf.WriteString("responses:\n")
	for _, row := range result.Responses {
		fmt.Fprintf(&buf, "- %s %s time=%g score=%g rt=%g\n",
			row.Phase, row.Key, row.Time, row.Score, row.RT)
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/<name>.golden.
//
// Returns an error if the session fails. Snapshot mismatches and failed
// assertions fail t.
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), sc)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	AssertGolden(t, sc.Name, result)
	return result, nil
}

// AssertGolden compares the snapshot of an existing result against its
// golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}
