// Package cascade implements the home-master parameter store: one home
// vector, per-section derivation configs, and a table of trigger-driven
// cascade rules whose effects accumulate as decaying scoped deltas.
//
// # Architecture
//
// The Store owns four pieces of state:
//
//   - the home parameter vector, edited through UpdateHomeParams
//   - static section configs, fixed at construction
//   - cascade rules indexed by trigger name, fixed at construction
//   - live scoped deltas, written by TriggerParameterCascade and
//     decayed by Step
//
// Derivation is a pure function of (home, section config, live
// deltas). A derived vector is never an input to later derivation, so
// cascades cannot feed back into themselves. Every parameter accepts
// live deltas, hue included: hue sums home, section shift, and deltas
// first and wraps once, so a rule targeting hue shifts the final
// angle instead of a pre-wrapped one.
//
// # Mutation and notification
//
// Triggers apply synchronously: the very next DeriveSection call sees
// their deltas, before any Step runs. Listeners are notified on two
// occasions only: a home edit that changed the home vector, and a Step
// whose decay moved some derived output by more than the change
// epsilon. The revision counter advances exactly when listeners fire,
// so a revision uniquely names a notified state.
//
// # Decay
//
// Step multiplies every live delta by exp(-deltaMs/tau) and prunes
// magnitudes below 1e-4. The time constant is a tunable, not a
// contract; WithDecayTau overrides the default.
//
// # Thread-safety
//
// The host is expected to serialize calls (one event/tick stream per
// Store), but all methods take the internal lock anyway. Listener
// callbacks run outside the lock on the mutating goroutine, so a
// listener may re-enter the Store.
package cascade
