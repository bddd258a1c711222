package cascade

import (
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// DeriveSection computes the section-level vector for sectionID.
// Pure function of (home, section config, live deltas); the result is
// never stored back, so cascades cannot feed into later derivations.
// Unknown sections return ok=false.
func (s *Store) DeriveSection(sectionID string) (param.Vector, bool) {
	sectionID = param.NormalizeID(sectionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.sectionIdx[sectionID]
	if !ok {
		return param.Vector{}, false
	}
	cfg := s.sections[idx]
	return s.deriveLocked(cfg, func(name param.Name) float64 {
		return s.deltas.sumSection(cfg.ID, name)
	}), true
}

// DeriveLayer computes the vector for one declared layer of a section.
// Layer-scoped deltas apply on top of everything the section-level
// vector receives. Unknown sections or undeclared layers return
// ok=false.
func (s *Store) DeriveLayer(sectionID, layer string) (param.Vector, bool) {
	sectionID = param.NormalizeID(sectionID)
	layer = param.NormalizeID(layer)
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.sectionIdx[sectionID]
	if !ok {
		return param.Vector{}, false
	}
	cfg := s.sections[idx]
	if !hasLayer(cfg, layer) {
		return param.Vector{}, false
	}
	return s.deriveLocked(cfg, func(name param.Name) float64 {
		return s.deltas.sumLayer(cfg.ID, layer, name)
	}), true
}

func hasLayer(cfg param.SectionConfig, layer string) bool {
	for _, l := range cfg.Layers {
		if l == layer {
			return true
		}
	}
	return false
}

// deriveLocked applies the derivation formulas. Deltas for one
// parameter are summed before conforming, so simultaneous cascades
// combine linearly and bounding happens exactly once, last. That
// holds for the cyclic fields too: rules may target hue, so its
// deltas join the home value and section shift inside the single
// wrap rather than wrapping separately.
func (s *Store) deriveLocked(cfg param.SectionConfig, sum func(param.Name) float64) param.Vector {
	home := s.home
	out := param.Vector{}

	out.Hue = param.Conform(param.Hue,
		home.Hue+cfg.HueShift+sum(param.Hue))
	out.Density = param.Conform(param.Density,
		home.Density*cfg.DensityMultiplier+cfg.DensityAdd+sum(param.Density))
	out.Morph = param.Conform(param.Morph,
		home.Morph*cfg.MorphMultiplier+cfg.MorphAdd+sum(param.Morph))
	out.Chaos = param.Conform(param.Chaos,
		home.Chaos*cfg.ChaosMultiplier+cfg.ChaosAdd+sum(param.Chaos))
	out.Glitch = param.Conform(param.Glitch,
		home.Glitch+cfg.GlitchBias+sum(param.Glitch))

	// Fields without section terms pass through home plus deltas.
	out.NoiseFrequency = param.Conform(param.NoiseFrequency,
		home.NoiseFrequency+sum(param.NoiseFrequency))
	out.Displacement = param.Conform(param.Displacement,
		home.Displacement+sum(param.Displacement))
	out.ChromaShift = param.Conform(param.ChromaShift,
		home.ChromaShift+sum(param.ChromaShift))
	out.TimeScale = param.Conform(param.TimeScale,
		home.TimeScale+sum(param.TimeScale))
	out.BeatPhase = param.Conform(param.BeatPhase,
		home.BeatPhase+sum(param.BeatPhase))

	return out
}

// deriveAllLocked recomputes every section in registration order with
// layers in declaration order.
func (s *Store) deriveAllLocked() []SectionState {
	out := make([]SectionState, len(s.sections))
	for i, cfg := range s.sections {
		state := SectionState{
			ID: cfg.ID,
			Params: s.deriveLocked(cfg, func(name param.Name) float64 {
				return s.deltas.sumSection(cfg.ID, name)
			}),
			Layers: make([]LayerState, len(cfg.Layers)),
		}
		for j, layer := range cfg.Layers {
			state.Layers[j] = LayerState{
				Type: layer,
				Params: s.deriveLocked(cfg, func(name param.Name) float64 {
					return s.deltas.sumLayer(cfg.ID, layer, name)
				}),
			}
		}
		out[i] = state
	}
	return out
}

// materiallyDifferent compares two derived states field by field
// against changeEpsilon.
func materiallyDifferent(a, b []SectionState) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if vectorsDiffer(a[i].Params, b[i].Params) {
			return true
		}
		if len(a[i].Layers) != len(b[i].Layers) {
			return true
		}
		for j := range a[i].Layers {
			if vectorsDiffer(a[i].Layers[j].Params, b[i].Layers[j].Params) {
				return true
			}
		}
	}
	return false
}

func vectorsDiffer(a, b param.Vector) bool {
	for _, name := range param.Names {
		d := a.Get(name) - b.Get(name)
		if d > changeEpsilon || d < -changeEpsilon {
			return true
		}
	}
	return false
}
