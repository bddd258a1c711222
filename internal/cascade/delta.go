package cascade

import (
	"math"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// pruneEpsilon is the magnitude below which a decayed delta is dropped.
const pruneEpsilon = 1e-4

// ScopedDelta is one live additive contribution to derived output.
// Deltas with the same scope and parameter merge; the Trigger field
// records the most recent trigger that wrote into the entry.
type ScopedDelta struct {
	Scope     param.Scope `json:"scope"`
	Parameter param.Name  `json:"parameter"`
	Value     float64     `json:"value"`
	Trigger   string      `json:"trigger"`
}

type deltaKey struct {
	scope param.Scope
	name  param.Name
}

// deltaSet owns the live deltas. Insertion order is preserved so that
// snapshots and traces list deltas deterministically.
type deltaSet struct {
	order []deltaKey
	byKey map[deltaKey]*ScopedDelta
}

func newDeltaSet() *deltaSet {
	return &deltaSet{byKey: make(map[deltaKey]*ScopedDelta)}
}

func (s *deltaSet) len() int {
	return len(s.order)
}

// has reports whether a live entry exists for (scope, parameter).
func (s *deltaSet) has(scope param.Scope, name param.Name) bool {
	_, ok := s.byKey[deltaKey{scope: scope, name: name}]
	return ok
}

// merge adds value into the live entry for (scope, parameter),
// creating it when absent. Returns true when a new entry was created.
func (s *deltaSet) merge(scope param.Scope, name param.Name, value float64, trigger string) bool {
	key := deltaKey{scope: scope, name: name}
	if d, ok := s.byKey[key]; ok {
		d.Value += value
		d.Trigger = trigger
		return false
	}
	d := &ScopedDelta{Scope: scope, Parameter: name, Value: value, Trigger: trigger}
	s.byKey[key] = d
	s.order = append(s.order, key)
	return true
}

// decay multiplies every live delta by factor and prunes entries whose
// magnitude falls below pruneEpsilon. Returns the number pruned.
func (s *deltaSet) decay(factor float64) int {
	if len(s.order) == 0 {
		return 0
	}
	kept := s.order[:0]
	pruned := 0
	for _, key := range s.order {
		d := s.byKey[key]
		d.Value *= factor
		if math.Abs(d.Value) < pruneEpsilon {
			delete(s.byKey, key)
			pruned++
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
	return pruned
}

// evictSmallest removes the live delta with the smallest magnitude,
// breaking ties toward the oldest. Reports what was removed.
func (s *deltaSet) evictSmallest() (ScopedDelta, bool) {
	if len(s.order) == 0 {
		return ScopedDelta{}, false
	}
	best := 0
	bestMag := math.Inf(1)
	for i, key := range s.order {
		mag := math.Abs(s.byKey[key].Value)
		if mag < bestMag {
			best = i
			bestMag = mag
		}
	}
	key := s.order[best]
	victim := *s.byKey[key]
	delete(s.byKey, key)
	s.order = append(s.order[:best:best], s.order[best+1:]...)
	return victim, true
}

// sumSection totals live deltas reaching the section-level vector of
// sectionID for one parameter. Layer-pinned deltas are excluded.
func (s *deltaSet) sumSection(sectionID string, name param.Name) float64 {
	total := 0.0
	for _, key := range s.order {
		if key.name != name {
			continue
		}
		if key.scope.MatchesSection(sectionID) {
			total += s.byKey[key].Value
		}
	}
	return total
}

// sumLayer totals live deltas reaching one layer of one section for
// one parameter. Section-wide and global deltas count too.
func (s *deltaSet) sumLayer(sectionID, layer string, name param.Name) float64 {
	total := 0.0
	for _, key := range s.order {
		if key.name != name {
			continue
		}
		if key.scope.MatchesLayer(sectionID, layer) {
			total += s.byKey[key].Value
		}
	}
	return total
}

// snapshot copies the live deltas in insertion order.
func (s *deltaSet) snapshot() []ScopedDelta {
	out := make([]ScopedDelta, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.byKey[key])
	}
	return out
}
