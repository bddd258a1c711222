package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

func TestDeltaSetMerge(t *testing.T) {
	set := newDeltaSet()
	scope := param.Scope{Section: "hero"}

	created := set.merge(scope, param.Density, 0.3, "a")
	assert.True(t, created)
	assert.Equal(t, 1, set.len())

	created = set.merge(scope, param.Density, 0.2, "b")
	assert.False(t, created, "identical scope+parameter must merge")
	assert.Equal(t, 1, set.len())

	snap := set.snapshot()
	require.Len(t, snap, 1)
	assert.InDelta(t, 0.5, snap[0].Value, 1e-12)
	assert.Equal(t, "b", snap[0].Trigger, "latest trigger wins the label")

	// Different parameter under the same scope is a separate entry.
	set.merge(scope, param.Chaos, 0.1, "c")
	assert.Equal(t, 2, set.len())
}

func TestDeltaSetSnapshotInsertionOrder(t *testing.T) {
	set := newDeltaSet()
	set.merge(param.Scope{}, param.Glitch, 0.5, "g")
	set.merge(param.Scope{Section: "hero"}, param.Density, 0.4, "d")
	set.merge(param.Scope{Layer: "background"}, param.Chaos, 0.3, "c")

	snap := set.snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, param.Glitch, snap[0].Parameter)
	assert.Equal(t, param.Density, snap[1].Parameter)
	assert.Equal(t, param.Chaos, snap[2].Parameter)
}

func TestDeltaSetDecayAndPrune(t *testing.T) {
	set := newDeltaSet()
	set.merge(param.Scope{}, param.Density, 0.4, "a")
	set.merge(param.Scope{}, param.Chaos, 2e-4, "b")

	pruned := set.decay(0.5)
	assert.Equal(t, 1, pruned, "1e-4 after halving falls below the epsilon")
	assert.Equal(t, 1, set.len())

	snap := set.snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, param.Density, snap[0].Parameter)
	assert.InDelta(t, 0.2, snap[0].Value, 1e-12)
}

func TestDeltaSetDecayNegativeValues(t *testing.T) {
	set := newDeltaSet()
	set.merge(param.Scope{}, param.Density, -0.4, "a")

	set.decay(0.5)
	snap := set.snapshot()
	require.Len(t, snap, 1)
	assert.InDelta(t, -0.2, snap[0].Value, 1e-12)

	// Magnitude pruning is symmetric.
	set.merge(param.Scope{}, param.Chaos, -2e-4, "b")
	pruned := set.decay(0.5)
	assert.Equal(t, 1, pruned)
}

func TestDeltaSetEvictSmallest(t *testing.T) {
	set := newDeltaSet()
	set.merge(param.Scope{Section: "a"}, param.Density, 0.5, "t")
	set.merge(param.Scope{Section: "b"}, param.Density, -0.01, "t")
	set.merge(param.Scope{Section: "c"}, param.Density, 0.3, "t")

	victim, ok := set.evictSmallest()
	require.True(t, ok)
	assert.Equal(t, "b", victim.Scope.Section)
	assert.Equal(t, 2, set.len())

	// Ties break toward the oldest entry: c and d both sit at 0.3.
	set.merge(param.Scope{Section: "d"}, param.Density, 0.3, "t")
	victim, ok = set.evictSmallest()
	require.True(t, ok)
	assert.Equal(t, "c", victim.Scope.Section)
}

func TestDeltaSetEvictEmpty(t *testing.T) {
	set := newDeltaSet()
	_, ok := set.evictSmallest()
	assert.False(t, ok)
}

func TestDeltaSetScopeSums(t *testing.T) {
	set := newDeltaSet()
	set.merge(param.Scope{}, param.Density, 0.1, "global")
	set.merge(param.Scope{Section: "hero"}, param.Density, 0.2, "sec")
	set.merge(param.Scope{Section: "hero", Layer: "content"}, param.Density, 0.4, "lay")
	set.merge(param.Scope{Layer: "background"}, param.Density, 0.8, "bg")
	set.merge(param.Scope{Section: "hero"}, param.Chaos, 1.6, "other-param")

	// Section level: global + section, never layer-pinned.
	assert.InDelta(t, 0.3, set.sumSection("hero", param.Density), 1e-12)
	assert.InDelta(t, 0.1, set.sumSection("about", param.Density), 1e-12)

	// Layer level: global + section + matching layer scopes.
	assert.InDelta(t, 0.7, set.sumLayer("hero", "content", param.Density), 1e-12)
	assert.InDelta(t, 1.1, set.sumLayer("hero", "background", param.Density), 1e-12)
	assert.InDelta(t, 0.9, set.sumLayer("about", "background", param.Density), 1e-12)

	// Parameter filter.
	assert.InDelta(t, 1.6, set.sumSection("hero", param.Chaos), 1e-12)
}
