package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

func TestTriggerAppliesSynchronously(t *testing.T) {
	s := newTestStore(t)

	before, _ := s.DeriveLayer("hero", "content")
	s.TriggerParameterCascade("cardHoverTarget", param.CascadeContext{
		SectionID: "hero", LayerType: "content", Magnitude: 1, Polarity: 1,
	})
	after, _ := s.DeriveLayer("hero", "content")

	assert.Greater(t, after.Density, before.Density,
		"effect visible before any Step")
	assert.Equal(t, int64(0), s.Revision(),
		"triggers do not advance the revision; the next step does")
}

func TestTriggerFiresEveryRuleForName(t *testing.T) {
	s := newTestStore(t)
	s.TriggerParameterCascade("cardHoverTarget", param.CascadeContext{
		SectionID: "hero", LayerType: "content", Magnitude: 1, Polarity: 1,
	})

	deltas := s.Deltas()
	require.Len(t, deltas, 2, "both cardHoverTarget rules fire")
	assert.Equal(t, param.Density, deltas[0].Parameter)
	assert.InDelta(t, 0.25, deltas[0].Value, 1e-12)
	assert.Equal(t, param.Chaos, deltas[1].Parameter)
	assert.InDelta(t, 0.15, deltas[1].Value, 1e-12, "exponential: 1² × 0.15")
}

func TestTriggerMagnitudeAndPolarity(t *testing.T) {
	s := newTestStore(t)
	s.TriggerParameterCascade("cardHoverTarget", param.CascadeContext{
		SectionID: "hero", LayerType: "content", Magnitude: 0.5, Polarity: -1,
	})

	deltas := s.Deltas()
	require.Len(t, deltas, 2)
	assert.InDelta(t, -0.125, deltas[0].Value, 1e-12, "linear: -0.5 × 0.25")
	assert.InDelta(t, -0.0375, deltas[1].Value, 1e-12, "exponential: -0.25 × 0.15")
}

func TestTriggerMergesIdenticalScopeParameter(t *testing.T) {
	s := newTestStore(t)
	ctx := param.CascadeContext{SectionID: "hero", LayerType: "content", Magnitude: 1, Polarity: 1}

	s.TriggerParameterCascade("cardHoverTarget", ctx)
	s.TriggerParameterCascade("cardHoverTarget", ctx)

	deltas := s.Deltas()
	require.Len(t, deltas, 2, "merged, not duplicated")
	assert.InDelta(t, 0.5, deltas[0].Value, 1e-12)

	// Opposite polarity cancels through the same entries.
	ctx.Polarity = -1
	s.TriggerParameterCascade("cardHoverTarget", ctx)
	deltas = s.Deltas()
	require.Len(t, deltas, 2)
	assert.InDelta(t, 0.25, deltas[0].Value, 1e-12)
}

func TestTriggerUnknownIsSilentNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NotPanics(t, func() {
		s.TriggerParameterCascade("doesNotExist", param.CascadeContext{Magnitude: 1, Polarity: 1})
	})
	assert.Empty(t, s.Deltas())
}

func TestTriggerSkipsRulesLackingAddressing(t *testing.T) {
	s := newTestStore(t)

	// cardHoverTarget rules are layer-mode; a context with no layer
	// cannot resolve them.
	s.TriggerParameterCascade("cardHoverTarget", param.CascadeContext{Magnitude: 1, Polarity: 1})
	assert.Empty(t, s.Deltas())

	// idleFlux pins its layer, so a bare context still resolves.
	s.TriggerParameterCascade("idleFlux", param.CascadeContext{Magnitude: 1, Polarity: 1})
	deltas := s.Deltas()
	require.Len(t, deltas, 1)
	assert.Equal(t, param.Scope{Layer: "background"}, deltas[0].Scope)
}

func TestTriggerPinnedLayerScopeSpansSections(t *testing.T) {
	s := newTestStore(t)
	s.TriggerParameterCascade("idleFlux", param.CascadeContext{Magnitude: 1, Polarity: 1})

	heroBg, _ := s.DeriveLayer("hero", "background")
	techBg, _ := s.DeriveLayer("tech", "background")
	heroContent, _ := s.DeriveLayer("hero", "content")

	assert.InDelta(t, 0.3+0.3, heroBg.Morph, 1e-12)
	assert.InDelta(t, 0.3*1.1+0.3, techBg.Morph, 1e-12)
	assert.InDelta(t, 0.3, heroContent.Morph, 1e-12, "content layers untouched")
}

func TestTriggerSkipsNegligibleNewDeltas(t *testing.T) {
	sections, _ := testTables()
	rules := []param.CascadeRule{{
		Trigger:      "tiny",
		Mode:         param.ScopeGlobal,
		Parameter:    param.Density,
		Relationship: param.Relationship{Kind: param.KindLinear, Intensity: 1e-6},
	}}
	s, err := New(sections, rules)
	require.NoError(t, err)
	s.Start()

	s.TriggerParameterCascade("tiny", param.CascadeContext{Magnitude: 1, Polarity: 1})
	assert.Empty(t, s.Deltas(), "sub-epsilon deltas never occupy budget")
}

func TestTriggerEvictsAtBudget(t *testing.T) {
	s := newTestStore(t, WithMaxDeltas(2))

	// Three distinct scope+parameter entries; budget holds two.
	s.TriggerParameterCascade("realityInversion", param.CascadeContext{Magnitude: 0.1, Polarity: 1})
	s.TriggerParameterCascade("cardHoverTarget", param.CascadeContext{
		SectionID: "hero", LayerType: "content", Magnitude: 1, Polarity: 1,
	})

	deltas := s.Deltas()
	require.Len(t, deltas, 2)
	// The 0.06 glitch delta was smallest and lost its slot to the
	// second hover rule's chaos delta.
	assert.Equal(t, param.Density, deltas[0].Parameter)
	assert.Equal(t, param.Chaos, deltas[1].Parameter)
}

func TestTriggerMergeBypassesBudget(t *testing.T) {
	s := newTestStore(t, WithMaxDeltas(2))
	ctx := param.CascadeContext{SectionID: "hero", LayerType: "content", Magnitude: 1, Polarity: 1}

	s.TriggerParameterCascade("cardHoverTarget", ctx)
	require.Len(t, s.Deltas(), 2)

	// Re-firing merges in place; no eviction, no growth.
	s.TriggerParameterCascade("cardHoverTarget", ctx)
	deltas := s.Deltas()
	require.Len(t, deltas, 2)
	assert.InDelta(t, 0.5, deltas[0].Value, 1e-12)
}

func TestTriggerCustomCurveRule(t *testing.T) {
	rules := []param.CascadeRule{{
		Trigger:   "boost",
		Mode:      param.ScopeGlobal,
		Parameter: param.Density,
		Relationship: param.Relationship{
			Kind:      param.KindCustom,
			Intensity: 1,
			Curve:     func(v float64) float64 { return v * v * v },
		},
	}}
	s, err := New(nil, rules)
	require.NoError(t, err)
	s.Start()

	s.TriggerParameterCascade("boost", param.CascadeContext{Magnitude: 0.5, Polarity: 1})
	deltas := s.Deltas()
	require.Len(t, deltas, 1)
	assert.InDelta(t, 0.125, deltas[0].Value, 1e-12)
}

func TestTriggerWorksWhileStopped(t *testing.T) {
	sections, rules := testTables()
	s, err := New(sections, rules)
	require.NoError(t, err)
	// Never started.

	s.TriggerParameterCascade("realityInversion", param.CascadeContext{Magnitude: 1, Polarity: 1})
	assert.Len(t, s.Deltas(), 1, "triggers apply regardless of lifecycle")
}
