// Package param defines the shared vocabulary of the visual engine: the
// fixed parameter vector, section derivation configs, cascade rules, and
// the canonical byte form used for table fingerprints.
//
// # Parameter vector
//
// Every visual surface is described by the same ten-field Vector. The
// field set is closed: renderers key uniforms off the Name strings, so
// adding a field is a schema change (bump TablesVersion), never a
// runtime registration.
//
// Each field carries a declared Range. Cyclic fields (hue, beatPhase)
// wrap into [Min, Max); open fields (glitch) clamp at Min only; the
// rest clamp at both ends. Conform is the single choke point for range
// enforcement. Non-finite values collapse to 0 before bounding, so a
// NaN can never propagate past a package boundary.
//
// # Determinism
//
// Iteration over a Vector MUST go through Names, never a map, so that
// derived output, notifications, and trace lines are byte-stable from
// run to run. MarshalCanonical fixes float formatting (six decimal
// places) and NFC-normalizes strings for the same reason.
package param
