package harness

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Domusgpt/vib3code-0-sub002/internal/cascade"
	"github.com/Domusgpt/vib3code-0-sub002/internal/interact"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
	"github.com/Domusgpt/vib3code-0-sub002/internal/testutil"
	"github.com/Domusgpt/vib3code-0-sub002/vib3"
)

// DefaultToken is the instance token used when a scenario does not set
// one.
const DefaultToken = "test-token-000001"

// Harness drives one scenario against a freshly built system.
// It runs scripted steps with a manual clock and a fixed instance
// token so traces come out byte-identical run to run.
type Harness struct {
	sys     *vib3.System
	clock   *testutil.ManualClock
	observe []string
	unregs  map[string]func()
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh system for isolation; the manual
// clock starts at the testutil epoch and only moves at tick steps.
// Extra defaults (the CLI passes environment-derived tunables here)
// apply below the scenario's own overrides: a scenario that sets
// decay_tau_ms wins over a default carrying WithDecayTau.
//
// Execution flow:
//  1. Build the system from the scenario tables and overrides.
//  2. Enable cascade stepping. The real-time idle poll stays off so
//     idle fires only at explicit check_idle steps.
//  3. Execute steps in order, recording one trace event after each.
//  4. Evaluate assertions against the trace and the final state.
func Run(scenario *Scenario, defaults ...vib3.Option) (*Result, error) {
	sections, rules := scenario.Tables.Compile()
	return RunWithTables(scenario, sections, rules, defaults...)
}

// RunWithTables executes a scenario against an externally compiled
// table set instead of the scenario's inline tables. The CLI uses this
// to drive scenarios against CUE-compiled tables. Scope validation at
// load time still binds to the inline tables, so assertions can only
// address scopes both table sets declare.
func RunWithTables(scenario *Scenario, sections []param.SectionConfig, rules []param.CascadeRule, defaults ...vib3.Option) (*Result, error) {
	clock := testutil.NewManualClock()
	token := scenario.Token
	if token == "" {
		token = DefaultToken
	}

	opts := []vib3.Option{
		vib3.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
		vib3.WithNow(clock.Now),
		vib3.WithTokenSource(cascade.NewFixedSource(token)),
	}
	opts = append(opts, defaults...) // scenario tunables below take precedence
	if len(scenario.Home) > 0 {
		home := param.DefaultHome()
		partial := make(param.Partial, len(scenario.Home))
		for name, value := range scenario.Home {
			partial[param.Name(name)] = value
		}
		partial.Apply(&home)
		opts = append(opts, vib3.WithHome(home))
	}
	if scenario.IdleThresholdMs > 0 {
		opts = append(opts, vib3.WithIdleThreshold(scenario.IdleThresholdMs))
	}
	if scenario.DecayTauMs > 0 {
		opts = append(opts, vib3.WithDecayTau(scenario.DecayTauMs))
	}

	sys, err := vib3.New(sections, rules, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build system: %w", err)
	}

	// Enable stepping without the coordinator's poll goroutine. The
	// poll would consume idle windows between scripted steps and the
	// trace would depend on wall-clock timing.
	sys.Cascade().Start()
	defer sys.Cascade().Stop()

	h := &Harness{
		sys:     sys,
		clock:   clock,
		observe: scenario.Observe,
		unregs:  make(map[string]func()),
	}

	result := NewResult()
	if err := h.executeSteps(scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	// Evaluate assertions against the result
	actx := &AssertionContext{System: sys}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// executeSteps runs all scripted steps in order. One trace event is
// appended per step, after the step's effect.
func (h *Harness) executeSteps(steps []Step, result *Result) error {
	for i, step := range steps {
		event := TraceEvent{Step: i, Kind: step.Do}

		switch step.Do {
		case StepRegister:
			id := param.NormalizeID(step.ID)
			if _, exists := h.unregs[id]; exists {
				return fmt.Errorf("step %d (register): element %q already registered", i, step.ID)
			}
			h.unregs[id] = h.sys.Interaction().RegisterVisualizer(interact.Registration{
				ID:        step.ID,
				SectionID: step.Section,
				Layer:     step.Layer,
			})

		case StepUnregister:
			id := param.NormalizeID(step.ID)
			unreg, ok := h.unregs[id]
			if !ok {
				return fmt.Errorf("step %d (unregister): unknown element %q", i, step.ID)
			}
			unreg()
			delete(h.unregs, id)

		case StepHoverStart:
			h.sys.Interaction().HandleHoverStart(step.ID, interact.HoverMeta{
				Index: step.Index,
				Total: step.Total,
			})

		case StepHoverEnd:
			h.sys.Interaction().HandleHoverEnd(step.ID)

		case StepFocus:
			h.sys.Interaction().HandleFocus(step.ID)

		case StepBlur:
			h.sys.Interaction().HandleBlur(step.ID)

		case StepClick:
			h.sys.Interaction().HandleClick(step.ID)

		case StepHome:
			partial := make(param.Partial, len(step.Params))
			for name, value := range step.Params {
				partial[param.Name(name)] = value
			}
			h.sys.Cascade().UpdateHomeParams(partial)

		case StepTrigger:
			magnitude := step.Magnitude
			if magnitude == 0 {
				magnitude = 1
			}
			polarity := step.Polarity
			if polarity == 0 {
				polarity = 1
			}
			h.sys.Cascade().TriggerParameterCascade(step.Trigger, param.CascadeContext{
				SectionID: step.Section,
				LayerType: step.Layer,
				Magnitude: magnitude,
				Polarity:  polarity,
			})

		case StepTick:
			repeat := step.Repeat
			if repeat <= 0 {
				repeat = 1
			}
			for r := 0; r < repeat; r++ {
				h.clock.Advance(time.Duration(step.Ms * float64(time.Millisecond)))
				h.sys.Tick(step.Ms)
			}

		case StepCheckIdle:
			fired := h.sys.Interaction().CheckIdle()
			if fired {
				result.IdleFired++
			}
			event.IdleFired = &fired

		default:
			return fmt.Errorf("step %d: unknown step kind %q", i, step.Do)
		}

		h.capture(&event)
		result.AddTrace(event)
	}
	return nil
}

// capture records the engine state after a step. Observed vectors are
// derived fresh so triggers show up before the next publish.
func (h *Harness) capture(event *TraceEvent) {
	event.Revision = h.sys.Cascade().Revision()

	state := h.sys.Mind().Snapshot()
	event.MindRevision = state.Revision
	event.Mind = MindScalars{
		Awareness: state.Awareness,
		Emergence: state.Emergence,
		Coherence: state.Coherence,
		Flux:      state.Flux,
	}

	if len(h.observe) == 0 {
		return
	}
	event.Observed = make(map[string]param.Vector, len(h.observe))
	for _, scope := range h.observe {
		section, layer := splitScope(scope)
		var vec param.Vector
		var ok bool
		if layer == "" {
			vec, ok = h.sys.Cascade().DeriveSection(section)
		} else {
			vec, ok = h.sys.Cascade().DeriveLayer(section, layer)
		}
		if ok {
			event.Observed[scope] = vec
		}
	}
}
