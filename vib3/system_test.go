package vib3

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domusgpt/vib3code-0-sub002/internal/cascade"
	"github.com/Domusgpt/vib3code-0-sub002/internal/interact"
	"github.com/Domusgpt/vib3code-0-sub002/internal/mind"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
	"github.com/Domusgpt/vib3code-0-sub002/internal/testutil"
)

// testTables builds one default section plus the two triggers the
// facade tests exercise end to end.
func testTables() ([]param.SectionConfig, []param.CascadeRule) {
	sections := []param.SectionConfig{param.DefaultSection("hero")}
	rules := []param.CascadeRule{
		{
			Trigger:      "cardHoverTarget",
			Mode:         param.ScopeSection,
			Parameter:    param.Density,
			Relationship: param.Relationship{Kind: param.KindLinear, Intensity: 0.5},
		},
		{
			Trigger:      "idleFlux",
			Mode:         param.ScopeLayer,
			Parameter:    param.Chaos,
			Relationship: param.Relationship{Kind: param.KindLinear, Intensity: 0.3},
		},
	}
	return sections, rules
}

func newTestSystem(t *testing.T, opts ...Option) *System {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTokenSource(cascade.NewFixedSource(testutil.Tokens("sys", 1)...)),
	}
	sections, rules := testTables()
	sys, err := New(sections, rules, append(base, opts...)...)
	require.NoError(t, err)
	return sys
}

func registerCard(t *testing.T, sys *System) func() {
	t.Helper()
	unregister := sys.Interaction().RegisterVisualizer(interact.Registration{
		ID:        "card-1",
		SectionID: "hero",
		Layer:     "content",
	})
	t.Cleanup(unregister)
	return unregister
}

func TestNewWiresComponents(t *testing.T) {
	sys := newTestSystem(t)

	require.NotNil(t, sys.Cascade())
	require.NotNil(t, sys.Mind())
	require.NotNil(t, sys.Interaction())
	assert.False(t, sys.Running())
	assert.Equal(t, "sys-000001", sys.Cascade().Token())

	snap := sys.Snapshot()
	require.Len(t, snap.Cascade.Sections, 1)
	assert.Equal(t, "hero", snap.Cascade.Sections[0].ID)
	assert.Len(t, snap.Cascade.Sections[0].Layers, 3)
	assert.Equal(t, int64(0), snap.Cascade.Revision)
	assert.Equal(t, int64(0), snap.Mind.Revision)
}

func TestNewRejectsInvalidTables(t *testing.T) {
	rules := []param.CascadeRule{{
		Trigger:      "cardHoverTarget",
		Mode:         "diagonal",
		Parameter:    param.Density,
		Relationship: param.Relationship{Kind: param.KindLinear, Intensity: 0.5},
	}}
	sys, err := New([]param.SectionConfig{param.DefaultSection("hero")}, rules)
	require.Error(t, err)
	assert.Nil(t, sys)
}

func TestRegisterSeedsAttention(t *testing.T) {
	sys := newTestSystem(t)
	registerCard(t, sys)

	state := sys.Mind().Snapshot()
	assert.Equal(t, 0.5, state.Attention[mind.Key("hero", "content")])
}

func TestHoverReachesCascadeAndMind(t *testing.T) {
	clock := testutil.NewManualClock()
	sys := newTestSystem(t, WithNow(clock.Now))
	registerCard(t, sys)
	revBefore := sys.Mind().Revision()

	sys.Interaction().HandleHoverStart("card-1", interact.HoverMeta{Index: 0, Total: 3})

	// The trigger lands synchronously; the very next derivation sees
	// it even though no tick has run.
	derived, ok := sys.Cascade().DeriveSection("hero")
	require.True(t, ok)
	assert.InDelta(t, 1.0, derived.Density, 1e-12)
	assert.Equal(t, int64(0), sys.Cascade().Revision(), "triggers do not advance the revision")

	state := sys.Mind().Snapshot()
	assert.Greater(t, state.Revision, revBefore)
	assert.Contains(t, state.Memory, "interaction:hover:1700000000000")
}

func TestTickRequiresStart(t *testing.T) {
	sys := newTestSystem(t)

	sys.Tick(600)

	assert.Equal(t, int64(0), sys.Cascade().Revision())
	state := sys.Mind().Snapshot()
	assert.Equal(t, int64(0), state.Revision)
	assert.Equal(t, 0.5, state.Awareness)
}

func TestTickIntegratesMind(t *testing.T) {
	sys := newTestSystem(t)
	sys.Start()
	defer sys.Stop()

	sys.Tick(600)

	// Nothing registered, so mean attention is 0.5 and awareness
	// chases 0.7. The elapsed 600ms must arrive as 0.6 seconds.
	want := 0.5 + (0.7-0.5)*(1-math.Exp(-2.2*0.6))
	state := sys.Mind().Snapshot()
	assert.InDelta(t, want, state.Awareness, 1e-12)
	assert.Greater(t, state.Revision, int64(0))
}

func TestTickPublishesObservations(t *testing.T) {
	sys := newTestSystem(t)
	registerCard(t, sys)
	sys.Start()
	defer sys.Stop()

	sys.Interaction().HandleHoverStart("card-1", interact.HoverMeta{Index: 0, Total: 1})
	sys.Tick(300)

	require.Greater(t, sys.Cascade().Revision(), int64(0))

	// The published snapshot fed the attention map with the derived
	// content-layer vector. Deltas only decay inside ticks, so a fresh
	// derivation reproduces the observed values exactly.
	derived, ok := sys.Cascade().DeriveLayer("hero", "content")
	require.True(t, ok)
	want := param.Clamp01(0.35 + 0.45*derived.Density + 0.2*derived.Chaos)
	got := sys.Mind().Snapshot().Attention[mind.Key("hero", "content")]
	assert.InDelta(t, want, got, 1e-12)
	assert.NotEqual(t, 0.5, got, "observation replaced the seed")
}

func TestStartStopLifecycle(t *testing.T) {
	sys := newTestSystem(t, WithPollInterval(time.Hour))

	assert.False(t, sys.Running())
	assert.False(t, sys.Interaction().Running())

	sys.Start()
	assert.True(t, sys.Running())
	assert.True(t, sys.Interaction().Running())
	sys.Start()
	assert.True(t, sys.Running())

	sys.Stop()
	assert.False(t, sys.Running())
	assert.False(t, sys.Interaction().Running())
	sys.Stop()
	assert.False(t, sys.Running())
}

func TestStoppedSystemStillRoutesEvents(t *testing.T) {
	sys := newTestSystem(t)
	registerCard(t, sys)

	sys.Interaction().HandleHoverStart("card-1", interact.HoverMeta{Index: 0, Total: 1})

	derived, ok := sys.Cascade().DeriveSection("hero")
	require.True(t, ok)
	assert.InDelta(t, 1.0, derived.Density, 1e-12)

	sys.Tick(600)
	assert.Equal(t, int64(0), sys.Cascade().Revision())
}

func TestIdleCheckFiresThroughSystem(t *testing.T) {
	clock := testutil.NewManualClock()
	sys := newTestSystem(t,
		WithNow(clock.Now),
		WithIdleThreshold(2000),
	)
	registerCard(t, sys)

	clock.Advance(2500 * time.Millisecond)
	require.True(t, sys.Interaction().CheckIdle())

	assert.Len(t, sys.Cascade().Deltas(), 1)
	assert.Contains(t, sys.Mind().Snapshot().Memory, "interaction:idle:1700000002500")

	// magnitude 2500/16000 through the 0.3 linear rule, on the
	// background layer only.
	background, ok := sys.Cascade().DeriveLayer("hero", "background")
	require.True(t, ok)
	assert.InDelta(t, 0.2+0.046875, background.Chaos, 1e-12)
	section, ok := sys.Cascade().DeriveSection("hero")
	require.True(t, ok)
	assert.InDelta(t, 0.2, section.Chaos, 1e-12)

	assert.False(t, sys.Interaction().CheckIdle(), "activity stamp resets per window")
}

func TestSnapshotCombined(t *testing.T) {
	sys := newTestSystem(t)
	registerCard(t, sys)

	snap := sys.Snapshot()
	assert.Equal(t, sys.Cascade().Revision(), snap.Cascade.Revision)
	assert.Equal(t, "sys-000001", snap.Cascade.Token)
	assert.Equal(t, sys.Mind().Revision(), snap.Mind.Revision)
	assert.Contains(t, snap.Mind.Attention, mind.Key("hero", "content"))
}
