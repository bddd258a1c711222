package mind

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

func fixedNow() func() time.Time {
	return func() time.Time { return time.UnixMilli(1700000000000) }
}

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	return NewEstimator(WithNow(fixedNow()))
}

func TestNewEstimatorRestingState(t *testing.T) {
	e := newTestEstimator(t)
	snap := e.Snapshot()

	assert.Equal(t, int64(0), snap.Revision)
	assert.Equal(t, 0.5, snap.Awareness)
	assert.Equal(t, 0.5, snap.Emergence)
	assert.Equal(t, 0.85, snap.Coherence)
	assert.Equal(t, 0.5, snap.Flux)
	assert.Empty(t, snap.Attention)
	assert.Empty(t, snap.Memory)
}

func TestRegisterElementSeedsAttention(t *testing.T) {
	e := newTestEstimator(t)

	var states []State
	cancel := e.Subscribe(func(s State) { states = append(states, s) })
	defer cancel()

	unregister := e.RegisterElement("hero", "content", "ref-1")

	require.Len(t, states, 1, "registration emits synchronously")
	assert.Equal(t, int64(1), states[0].Revision)
	assert.Equal(t, seedAttention, states[0].Attention["hero:content"])
	require.Len(t, states[0].Memory, 1)
	assert.Equal(t, "register:hero:content:1700000000000", states[0].Memory[0])

	unregister()
	require.Len(t, states, 2)
	_, present := states[1].Attention["hero:content"]
	assert.False(t, present, "unregister removes the key")
	assert.Equal(t, "unregister:hero:content:1700000000000", states[1].Memory[0])
}

func TestUnregisterIdempotent(t *testing.T) {
	e := newTestEstimator(t)
	unregister := e.RegisterElement("hero", "content", nil)

	unregister()
	rev := e.Revision()
	memLen := len(e.Snapshot().Memory)

	unregister()
	assert.Equal(t, rev, e.Revision(), "second call is a no-op")
	assert.Equal(t, memLen, len(e.Snapshot().Memory))
}

func TestSharedKeyRefCounting(t *testing.T) {
	e := newTestEstimator(t)
	un1 := e.RegisterElement("hero", "content", "card-1")
	un2 := e.RegisterElement("hero", "content", "card-2")

	// Observation sticks while any element holds the key.
	e.Observe("hero", "content", param.Vector{Density: 1})
	un1()
	snap := e.Snapshot()
	assert.InDelta(t, 0.8, snap.Attention["hero:content"], 1e-12,
		"key survives while a second element holds it")

	un2()
	_, present := e.Snapshot().Attention["hero:content"]
	assert.False(t, present)
}

func TestObserveFormula(t *testing.T) {
	e := newTestEstimator(t)
	defer e.RegisterElement("hero", "content", nil)()

	tests := []struct {
		name     string
		density  float64
		chaos    float64
		expected float64
	}{
		{"neutral", 0, 0, 0.35},
		{"busy", 1, 1, 1.0}, // 0.35+0.45+0.2
		{"mixed", 0.5, 0.5, 0.675},
		{"clamped", 1, 5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.Observe("hero", "content", param.Vector{Density: tt.density, Chaos: tt.chaos})
			assert.InDelta(t, tt.expected, e.Snapshot().Attention["hero:content"], 1e-12)
		})
	}
}

func TestObserveUnknownKeyIsNoop(t *testing.T) {
	e := newTestEstimator(t)
	rev := e.Revision()

	e.Observe("ghost", "content", param.Vector{Density: 1})

	assert.Empty(t, e.Snapshot().Attention)
	assert.Equal(t, rev, e.Revision())
}

func TestObserveDoesNotNotify(t *testing.T) {
	e := newTestEstimator(t)
	defer e.RegisterElement("hero", "content", nil)()

	notified := 0
	cancel := e.Subscribe(func(State) { notified++ })
	defer cancel()

	e.Observe("hero", "content", param.Vector{Density: 1})
	assert.Equal(t, 0, notified, "observation feeds the next integrate, it does not emit")
}

func TestSignalInteraction(t *testing.T) {
	e := newTestEstimator(t)

	var states []State
	cancel := e.Subscribe(func(s State) { states = append(states, s) })
	defer cancel()

	e.SignalInteraction("hover")

	require.Len(t, states, 1)
	assert.InDelta(t, 0.55, states[0].Awareness, 1e-12)
	assert.InDelta(t, 0.58, states[0].Flux, 1e-12)
	assert.Equal(t, "interaction:hover:1700000000000", states[0].Memory[0])
}

func TestSignalInteractionClamps(t *testing.T) {
	e := newTestEstimator(t)
	for i := 0; i < 20; i++ {
		e.SignalInteraction("reality-inversion")
	}
	snap := e.Snapshot()
	assert.Equal(t, 1.0, snap.Awareness)
	assert.Equal(t, 1.0, snap.Flux)
}

func TestIntegrateSmoothingLaw(t *testing.T) {
	e := newTestEstimator(t)
	defer e.RegisterElement("hero", "content", nil)()
	e.Observe("hero", "content", param.Vector{Density: 1}) // attention 0.8

	e.Integrate(0.1)

	snap := e.Snapshot()
	wantAwareness := 0.5 + (0.4+0.6*0.8-0.5)*(1-math.Exp(-2.2*0.1))
	wantEmergence := 0.5 + (0.3+0.7*0.8-0.5)*(1-math.Exp(-1.5*0.1))
	wantCoherence := 0.85 + (0.85+0.2*(0.8-0.5)-0.85)*(1-math.Exp(-1.1*0.1))
	assert.InDelta(t, wantAwareness, snap.Awareness, 1e-12)
	assert.InDelta(t, wantEmergence, snap.Emergence, 1e-12)
	assert.InDelta(t, wantCoherence, snap.Coherence, 1e-12)
	assert.InDelta(t, 0.5+(snap.Emergence-0.5)*0.1*0.3, snap.Flux, 1e-12,
		"flux integrates the freshly advanced emergence")
}

func TestIntegrateConvergesMonotonically(t *testing.T) {
	e := newTestEstimator(t)
	defer e.RegisterElement("hero", "content", nil)()
	e.Observe("hero", "content", param.Vector{Density: 1}) // attention 0.8

	awarenessTarget := 0.4 + 0.6*0.8
	emergenceTarget := 0.3 + 0.7*0.8
	coherenceTarget := 0.85 + 0.2*(0.8-0.5)

	prev := e.Snapshot()
	for i := 0; i < 200; i++ {
		e.Integrate(0.05)
		cur := e.Snapshot()
		assert.GreaterOrEqual(t, cur.Awareness, prev.Awareness, "monotone approach")
		assert.LessOrEqual(t, cur.Awareness, awarenessTarget+1e-9, "no overshoot")
		assert.GreaterOrEqual(t, cur.Emergence, prev.Emergence)
		assert.LessOrEqual(t, cur.Emergence, emergenceTarget+1e-9)
		assert.GreaterOrEqual(t, cur.Coherence, prev.Coherence)
		assert.LessOrEqual(t, cur.Coherence, coherenceTarget+1e-9)
		for _, v := range []float64{cur.Awareness, cur.Emergence, cur.Coherence, cur.Flux} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		prev = cur
	}

	assert.InDelta(t, awarenessTarget, prev.Awareness, 1e-4)
	assert.InDelta(t, emergenceTarget, prev.Emergence, 1e-4)
	assert.InDelta(t, coherenceTarget, prev.Coherence, 1e-4)
}

func TestIntegrateCadenceFree(t *testing.T) {
	a := newTestEstimator(t)
	b := newTestEstimator(t)
	for _, e := range []*Estimator{a, b} {
		e.RegisterElement("hero", "content", nil)
		e.Observe("hero", "content", param.Vector{Density: 1})
	}

	a.Integrate(1.0)
	b.Integrate(0.5)
	b.Integrate(0.5)

	// Exponential approach to a fixed target composes exactly.
	assert.InDelta(t, a.Snapshot().Awareness, b.Snapshot().Awareness, 1e-12)
	assert.InDelta(t, a.Snapshot().Emergence, b.Snapshot().Emergence, 1e-12)
	assert.InDelta(t, a.Snapshot().Coherence, b.Snapshot().Coherence, 1e-12)
}

func TestIntegrateNoElementsUsesNeutralMean(t *testing.T) {
	e := newTestEstimator(t)
	for i := 0; i < 100; i++ {
		e.Integrate(0.1)
	}
	snap := e.Snapshot()
	assert.InDelta(t, 0.7, snap.Awareness, 1e-3, "mean 0.5 target")
	assert.InDelta(t, 0.65, snap.Emergence, 1e-3)
	assert.InDelta(t, 0.85, snap.Coherence, 1e-9, "already at target")
}

func TestIntegrateZeroIsNoop(t *testing.T) {
	e := newTestEstimator(t)
	before := e.Snapshot()

	e.Integrate(0)
	e.Integrate(-1)
	e.Integrate(math.NaN())

	assert.Equal(t, before, e.Snapshot())
}

func TestIntegrateBelowThresholdStaysQuiet(t *testing.T) {
	e := newTestEstimator(t)
	notified := 0
	cancel := e.Subscribe(func(State) { notified++ })
	defer cancel()

	e.Integrate(1e-9)

	assert.Equal(t, 0, notified, "sub-epsilon movement must not notify")
	assert.Equal(t, int64(0), e.Revision())
}

func TestSnapshotIsACopy(t *testing.T) {
	e := newTestEstimator(t)
	defer e.RegisterElement("hero", "content", nil)()

	snap := e.Snapshot()
	snap.Attention["hero:content"] = 99
	require.NotEmpty(t, snap.Memory)
	snap.Memory[0] = "mutated"

	fresh := e.Snapshot()
	assert.Equal(t, seedAttention, fresh.Attention["hero:content"])
	assert.Equal(t, "register:hero:content:1700000000000", fresh.Memory[0])
}

func TestMemoryCapAcrossEvents(t *testing.T) {
	e := newTestEstimator(t)
	for i := 0; i < MemoryLimit+10; i++ {
		e.SignalInteraction("hover")
	}
	assert.Len(t, e.Snapshot().Memory, MemoryLimit)
}
