package cascade

import (
	"math"
)

// Step advances time by deltaMs: every live delta decays by
// exp(-deltaMs/tau), magnitudes below the prune epsilon drop, and if
// any derived output materially moved the revision advances and
// listeners fire. The downstream integrator receives the same elapsed
// time, in seconds, whether or not cascade state changed.
//
// Step is a no-op when the store is stopped or deltaMs is zero,
// negative, or non-finite. Correctness does not depend on cadence;
// all math is parameterized by the elapsed delta.
func (s *Store) Step(deltaMs float64) {
	if deltaMs <= 0 || math.IsNaN(deltaMs) || math.IsInf(deltaMs, 0) {
		return
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	if s.deltas.len() > 0 {
		factor := math.Exp(-deltaMs / s.tauMs)
		s.deltas.decay(factor)
	}

	next := s.deriveAllLocked()
	changed := materiallyDifferent(next, s.derived)
	s.derived = next

	var snap Snapshot
	if changed {
		s.clock.Next()
		snap = s.snapshotLocked()
	}
	integrator := s.integrator
	s.mu.Unlock()

	if changed {
		s.hub.Publish(snap)
	}
	if integrator != nil {
		integrator.Integrate(deltaMs / 1000)
	}
}
