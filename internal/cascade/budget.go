package cascade

// DefaultMaxDeltas bounds live deltas per Store unless WithMaxDeltas
// overrides it. A UI burst that outruns decay hits this long before
// memory matters.
const DefaultMaxDeltas = 1024

// Budget enforces the live-delta ceiling.
//
// Unlike a hard quota, exceeding the budget is not an error: the
// smallest-magnitude live delta is evicted to make room, the eviction
// is logged, and the trigger proceeds. Triggered feedback stays
// visible; the almost-decayed tail pays for it.
type Budget struct {
	maxLive int
	evicted int64
}

// NewBudget creates a budget with the given ceiling. Non-positive
// ceilings fall back to DefaultMaxDeltas.
func NewBudget(maxLive int) *Budget {
	if maxLive <= 0 {
		maxLive = DefaultMaxDeltas
	}
	return &Budget{maxLive: maxLive}
}

// MaxLive returns the ceiling.
func (b *Budget) MaxLive() int {
	return b.maxLive
}

// NeedsEviction reports whether inserting a new delta at the given
// live count requires evicting first.
func (b *Budget) NeedsEviction(live int) bool {
	return live >= b.maxLive
}

// RecordEviction counts one eviction and returns the running total.
// Used for logging and diagnostics.
func (b *Budget) RecordEviction() int64 {
	b.evicted++
	return b.evicted
}

// Evictions returns the total evictions so far.
func (b *Budget) Evictions() int64 {
	return b.evicted
}
