package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// TraceSnapshot captures the complete trace of a scenario execution.
// All fields use canonical serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Token        string       `json:"token,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for
// canonical serialization. Built by hand so step and revision fields
// stay integers; lowering the whole struct through JSON would render
// them with six decimal places.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":          event.Step,
			"kind":          event.Kind,
			"revision":      event.Revision,
			"mind_revision": event.MindRevision,
			"mind": map[string]any{
				"awareness": event.Mind.Awareness,
				"emergence": event.Mind.Emergence,
				"coherence": event.Mind.Coherence,
				"flux":      event.Mind.Flux,
			},
		}
		if len(event.Observed) > 0 {
			observed := make(map[string]any, len(event.Observed))
			for scope, vec := range event.Observed {
				observed[scope] = vec
			}
			eventMap["observed"] = observed
		}
		if event.IdleFired != nil {
			eventMap["idle_fired"] = *event.IdleFired
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.Token != "" {
		result["token"] = s.Token
	}
	return result
}

// MarshalCanonical renders the snapshot as canonical JSON bytes. The
// golden tests and the CLI share this byte form, so fixtures written
// by either compare equal.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return param.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for expected trace output.
// Returns error if scenario execution fails; trace mismatches fail the
// test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Token:        scenario.Token,
		Trace:        result.Trace,
	}

	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}

// AssertGolden compares an existing result's trace against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}

	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
