package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/Domusgpt/vib3code-0-sub002/internal/mind"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
	"github.com/Domusgpt/vib3code-0-sub002/vib3"
)

// DefaultTolerance is the equality window used when an assertion does
// not set one.
const DefaultTolerance = 1e-6

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s rev=%d mind=%d\n",
			event.Step, event.Kind, event.Revision, event.MindRevision)
	}

	return buf.String()
}

// AssertionContext provides final-state access for evaluating
// assertions.
type AssertionContext struct {
	System *vib3.System
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides final engine state for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertIdleFired:
			err = assertIdleFired(result, assertion)
		default:
			if actx == nil || actx.System == nil {
				err = fmt.Errorf("assertion[%d]: %s requires system context", i, assertion.Type)
			} else {
				err = evaluateStateAssertion(i, actx, result.Trace, assertion)
			}
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// evaluateStateAssertion dispatches assertions that read final engine
// state. Unknown types are caught at load time; this re-check keeps
// programmatic callers honest.
func evaluateStateAssertion(index int, actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	switch a.Type {
	case AssertParamEq:
		return assertParamEq(actx, trace, a)
	case AssertParamBetween:
		return assertParamBetween(actx, trace, a)
	case AssertConsciousBetween:
		return assertConsciousBetween(actx, trace, a)
	case AssertRevisionMin:
		return assertRevisionMin(actx, trace, a)
	case AssertMemoryContains:
		return assertMemoryContains(actx, trace, a)
	case AssertAttentionEq:
		return assertAttentionEq(actx, trace, a)
	default:
		return fmt.Errorf("assertion[%d]: unknown assertion type %q", index, a.Type)
	}
}

// deriveScope resolves a "section" or "section/layer" scope against
// the final engine state.
func deriveScope(sys *vib3.System, scope string) (param.Vector, bool) {
	section, layer := splitScope(scope)
	if layer == "" {
		return sys.Cascade().DeriveSection(section)
	}
	return sys.Cascade().DeriveLayer(section, layer)
}

// assertParamEq checks one field of a freshly derived vector against
// an expected value within the tolerance window.
func assertParamEq(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	vec, ok := deriveScope(actx.System, a.Scope)
	if !ok {
		return &AssertionError{
			Type:     AssertParamEq,
			Expected: fmt.Sprintf("scope %s to resolve", a.Scope),
			Actual:   "unknown scope",
			Trace:    trace,
		}
	}

	actual := vec.Get(param.Name(a.Parameter))
	tolerance := a.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}

	if math.Abs(actual-a.Value) > tolerance {
		return &AssertionError{
			Type:     AssertParamEq,
			Expected: fmt.Sprintf("%s %s = %v (tolerance %v)", a.Scope, a.Parameter, a.Value, tolerance),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    trace,
		}
	}

	return nil
}

// assertParamBetween checks one field of a freshly derived vector
// against an inclusive range.
func assertParamBetween(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	vec, ok := deriveScope(actx.System, a.Scope)
	if !ok {
		return &AssertionError{
			Type:     AssertParamBetween,
			Expected: fmt.Sprintf("scope %s to resolve", a.Scope),
			Actual:   "unknown scope",
			Trace:    trace,
		}
	}

	actual := vec.Get(param.Name(a.Parameter))
	if actual < *a.Min || actual > *a.Max {
		return &AssertionError{
			Type:     AssertParamBetween,
			Expected: fmt.Sprintf("%s %s in [%v, %v]", a.Scope, a.Parameter, *a.Min, *a.Max),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    trace,
		}
	}

	return nil
}

// assertConsciousBetween checks one consciousness scalar against an
// inclusive range.
func assertConsciousBetween(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	state := actx.System.Mind().Snapshot()

	var actual float64
	switch a.Field {
	case "awareness":
		actual = state.Awareness
	case "emergence":
		actual = state.Emergence
	case "coherence":
		actual = state.Coherence
	case "flux":
		actual = state.Flux
	default:
		return fmt.Errorf("conscious_between: unknown field %q", a.Field)
	}

	if actual < *a.Min || actual > *a.Max {
		return &AssertionError{
			Type:     AssertConsciousBetween,
			Expected: fmt.Sprintf("%s in [%v, %v]", a.Field, *a.Min, *a.Max),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    trace,
		}
	}

	return nil
}

// assertRevisionMin checks that the cascade reached at least the given
// revision.
func assertRevisionMin(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	actual := actx.System.Cascade().Revision()
	if actual < a.Revision {
		return &AssertionError{
			Type:     AssertRevisionMin,
			Expected: fmt.Sprintf("revision >= %d", a.Revision),
			Actual:   fmt.Sprintf("revision %d", actual),
			Trace:    trace,
		}
	}
	return nil
}

// assertMemoryContains checks that some memory entry starts with the
// given prefix. Prefix matching keeps scenarios independent of the
// timestamp suffix.
func assertMemoryContains(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	state := actx.System.Mind().Snapshot()
	for _, entry := range state.Memory {
		if strings.HasPrefix(entry, a.Entry) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertMemoryContains,
		Expected: fmt.Sprintf("memory entry with prefix %q", a.Entry),
		Actual:   fmt.Sprintf("not found in %d entries", len(state.Memory)),
		Trace:    trace,
	}
}

// assertAttentionEq checks the attention value for one element key
// within the tolerance window. Keys take the "section:layer" form and
// are normalized before lookup.
func assertAttentionEq(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	key := a.Key
	if section, layer, found := strings.Cut(key, ":"); found {
		key = mind.Key(section, layer)
	}

	state := actx.System.Mind().Snapshot()
	actual, ok := state.Attention[key]
	if !ok {
		return &AssertionError{
			Type:     AssertAttentionEq,
			Expected: fmt.Sprintf("attention key %q to exist", key),
			Actual:   "key not registered",
			Trace:    trace,
		}
	}

	tolerance := a.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}

	if math.Abs(actual-a.Value) > tolerance {
		return &AssertionError{
			Type:     AssertAttentionEq,
			Expected: fmt.Sprintf("attention[%s] = %v (tolerance %v)", key, a.Value, tolerance),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    trace,
		}
	}

	return nil
}

// assertIdleFired checks that check_idle steps reported a firing
// exactly count times across the run.
func assertIdleFired(result *Result, a Assertion) error {
	if result.IdleFired != a.Count {
		return &AssertionError{
			Type:     AssertIdleFired,
			Expected: fmt.Sprintf("%d idle firings", a.Count),
			Actual:   fmt.Sprintf("%d idle firings", result.IdleFired),
			Trace:    result.Trace,
		}
	}
	return nil
}
