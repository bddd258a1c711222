package harness

import "github.com/Domusgpt/vib3code-0-sub002/internal/param"

// TraceEvent records the engine state captured after one scripted
// step. A tick step with repeat folds into a single event taken after
// the last repetition.
type TraceEvent struct {
	// Step is the zero-based index into the scenario's steps.
	Step int    `json:"step"`
	Kind string `json:"kind"`

	// Revision is the cascade snapshot revision after the step.
	// MindRevision is the estimator state revision.
	Revision     int64 `json:"revision"`
	MindRevision int64 `json:"mind_revision"`

	Mind MindScalars `json:"mind"`

	// Observed holds the freshly derived vector for each scope the
	// scenario observes, keyed by the scope string.
	Observed map[string]param.Vector `json:"observed,omitempty"`

	// IdleFired is set only on check_idle steps.
	IdleFired *bool `json:"idle_fired,omitempty"`
}

// MindScalars is the consciousness quadruple at one trace point.
type MindScalars struct {
	Awareness float64 `json:"awareness"`
	Emergence float64 `json:"emergence"`
	Coherence float64 `json:"coherence"`
	Flux      float64 `json:"flux"`
}

// Result is the outcome of running one scenario.
type Result struct {
	// Pass indicates overall success. True if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order. Used for
	// golden comparison and for assertion failure reports.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is
	// true.
	Errors []string `json:"errors,omitempty"`

	// IdleFired counts the check_idle steps that reported a firing.
	IdleFired int `json:"idle_fired,omitempty"`
}

// NewResult creates a new passing result. Used as the starting point
// for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends one step record to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
