package harness

import "github.com/roach88/statq/internal/engine"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if the outcome, expectations and assertions all held.
	Pass bool

	// Outcome is the observed outcome: ok, validation or not_found.
	Outcome string

	// Response is set for the ok outcome.
	Response *engine.Response

	// Err is the error returned by the query, if any.
	Err error

	// CSV is the page rendered with labels, for the ok outcome.
	CSV []byte

	// Rows is CSV parsed into column → value maps.
	Rows []map[string]string

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
