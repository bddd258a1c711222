// Package harness provides scenario-driven conformance testing for the
// visual parameter engine.
//
// A scenario builds a real engine from inline tables, drives it through
// a scripted sequence of interaction and tick steps, records a trace
// record after every step, and validates assertions against the trace
// and the live engine.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	token: fixed-instance-token
//	idle_threshold_ms: 2000
//	tables:
//	  sections:
//	    - id: hero
//	    - id: tech
//	      hue_shift: 0.15
//	      layers: [background, content]
//	  rules:
//	    - trigger: cardHoverTarget
//	      mode: section
//	      parameter: density
//	      kind: linear
//	      intensity: 0.25
//	home:
//	  density: 0.8
//	observe:
//	  - hero
//	  - hero/background
//	steps:
//	  - do: register
//	    id: card-a
//	    section: hero
//	    layer: content
//	  - do: hover_start
//	    id: card-a
//	    index: 0
//	    total: 4
//	  - do: tick
//	    ms: 500
//	    repeat: 3
//	assertions:
//	  - type: param_eq
//	    scope: hero
//	    parameter: density
//	    value: 0.75
//
// # Steps
//
// The following step kinds are supported:
//
//   - register: add a visual element (id, section, layer)
//   - unregister: remove a previously registered element (id)
//   - hover_start: hover onto an element (id, index, total)
//   - hover_end, focus, blur, click: element events (id)
//   - home: merge values into the home vector (params)
//   - trigger: fire a named cascade trigger directly (trigger, section,
//     layer, magnitude, polarity); magnitude defaults to 1 and polarity
//     to +1
//   - tick: advance the clock and the engine by ms, repeat times
//   - check_idle: run one idle poll
//
// Element events naming an unknown id keep the engine's silent no-op
// semantics, so a scenario can assert that a stale event changes
// nothing. Unregister is harness bookkeeping and fails on an unknown
// id.
//
// # Trace
//
// One trace record is captured after each step (a tick with repeat
// folds into a single record taken after the last repetition): the
// step index and kind, the cascade and mind revisions, the four
// consciousness scalars, fresh derived vectors for every observe
// scope, and the idle poll outcome on check_idle steps.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - param_eq: a derived parameter equals a value within tolerance
//     (default 1e-6)
//   - param_between: a derived parameter lies in [min, max]
//   - conscious_between: a consciousness scalar lies in [min, max]
//   - revision_min: the cascade revision reached at least a value
//   - memory_contains: some memory entry starts with a prefix
//   - attention_eq: an attention key equals a value within tolerance
//   - idle_fired: check_idle fired exactly count times
//
// # Deterministic Testing
//
// Scenarios run against a real engine with every nondeterminism pinned:
// a manual clock that only moves on tick steps, a fixed instance token,
// and stepping enabled without the background idle poll so idle fires
// only at explicit check_idle steps. The same scenario always produces
// a byte-identical trace, which golden tests compare via goldie
// (run with -update to regenerate fixtures).
package harness
