package harness

import (
	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/store"
)

// Result is the outcome of a scenario: what the database holds after the
// session and whether the assertions held.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool

	Session string

	// Events and Responses are read back from the store in append order.
	Events    []store.EventRow
	Responses []store.ResponseRow

	// Errors contains one message per failed assertion.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Events:    []store.EventRow{},
		Responses: []store.ResponseRow{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// MainResponses returns the stored responses of the main phase.
func (r *Result) MainResponses() []store.ResponseRow {
	var out []store.ResponseRow
	for _, row := range r.Responses {
		if row.Phase == engine.PhaseMain {
			out = append(out, row)
		}
	}
	return out
}
