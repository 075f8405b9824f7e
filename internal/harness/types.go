package harness

import "github.com/seonyeopkim/asyncaction/observability"

// TraceEvent is one store event, reduced to its deterministic fields.
type TraceEvent struct {
	Seq         int64                   `json:"seq"`
	Type        observability.EventType `json:"type"`
	ChainID     string                  `json:"chain_id,omitempty"`
	Action      string                  `json:"action,omitempty"`
	AsyncAction string                  `json:"async_action,omitempty"`
	Effect      string                  `json:"effect,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// States is the deduplicated whole-state trace, each state decoded
	// into its JSON shape.
	States []map[string]any `json:"states"`

	// Trace is the store's event trace in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds assertion failures. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		States: []map[string]any{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FinalState returns the last recorded state, or nil.
func (r *Result) FinalState() map[string]any {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}
