// Package mind maintains the consciousness estimate: a smoothed,
// bounded summary of how much attention the visual system commands,
// plus a short event history.
//
// The estimate is four scalars. Awareness, emergence, and coherence
// chase targets derived from mean attention across registered
// elements; flux integrates emergence pressure over time. All four
// stay in [0, 1]. Smoothing is rate-parameterized and cadence-free:
// two half-ticks land exactly where one full tick does.
package mind

import (
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/Domusgpt/vib3code-0-sub002/internal/cascade"
	"github.com/Domusgpt/vib3code-0-sub002/internal/notify"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// Smoothing rates per second. Awareness reacts fastest, coherence
// slowest; flux is a pure integral with its own gain.
const (
	awarenessRate = 2.2
	emergenceRate = 1.5
	coherenceRate = 1.1
	fluxGain      = 0.3
)

// seedAttention is the weight a freshly registered element starts at.
const seedAttention = 0.5

// notifyEpsilon is the minimum movement in any estimate value that
// warrants a notification. Keeps idle ticks from storming listeners.
const notifyEpsilon = 1e-4

// Interaction nudges applied by SignalInteraction.
const (
	interactionAwarenessNudge = 0.05
	interactionFluxNudge      = 0.08
)

// State is an immutable copy of the estimator's observable state.
// Memory is newest-first and holds at most MemoryLimit entries.
type State struct {
	Revision  int64              `json:"revision"`
	Awareness float64            `json:"awareness"`
	Emergence float64            `json:"emergence"`
	Coherence float64            `json:"coherence"`
	Flux      float64            `json:"flux"`
	Attention map[string]float64 `json:"attention"`
	Memory    []string           `json:"memory"`
}

// Estimator tracks attention and integrates the consciousness
// estimate. One Estimator serves one engine instance.
//
// Thread-safety: all methods take the internal lock; listener
// callbacks run outside it on the mutating goroutine.
type Estimator struct {
	logger *slog.Logger
	now    func() time.Time
	clock  *cascade.Clock
	hub    notify.Hub[State]

	mu        sync.Mutex
	awareness float64
	emergence float64
	coherence float64
	flux      float64
	attention map[string]float64
	refs      map[string]int
	memory    memoryRing
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Estimator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNow sets the wall-clock source used to timestamp memory
// entries. Tests pass a manual clock so traces stay byte-stable.
func WithNow(now func() time.Time) Option {
	return func(e *Estimator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEstimator creates an estimator at the neutral resting state:
// awareness and emergence midway, coherence at its mean-attention
// target, flux neutral.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		logger:    slog.Default(),
		now:       time.Now,
		clock:     cascade.NewClock(),
		awareness: 0.5,
		emergence: 0.5,
		coherence: 0.85,
		flux:      0.5,
		attention: make(map[string]float64),
		refs:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key builds the attention-map key for a section and layer.
func Key(sectionID, layer string) string {
	return param.NormalizeID(sectionID) + ":" + param.NormalizeID(layer)
}

// RegisterElement adds an element under sectionID:layer, seeding the
// key's attention at 0.5 on first registration, and returns an
// idempotent unregister closure. Several elements may share a key;
// the key's attention entry lives until the last of them unregisters.
func (e *Estimator) RegisterElement(sectionID, layer string, ref any) func() {
	key := Key(sectionID, layer)
	_ = ref // opaque host data; identity only matters to the host

	e.mu.Lock()
	if e.refs[key] == 0 {
		e.attention[key] = seedAttention
	}
	e.refs[key]++
	e.memory.append("register:" + key + ":" + e.timestampLocked())
	e.logger.Debug("element registered",
		slog.String("key", key),
		slog.Int("refs", e.refs[key]))
	snap := e.emitLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.unregister(key)
		})
	}
}

func (e *Estimator) unregister(key string) {
	e.mu.Lock()
	n, ok := e.refs[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	if n <= 1 {
		delete(e.refs, key)
		delete(e.attention, key)
	} else {
		e.refs[key] = n - 1
	}
	e.memory.append("unregister:" + key + ":" + e.timestampLocked())
	e.logger.Debug("element unregistered",
		slog.String("key", key),
		slog.Int("refs", e.refs[key]))
	snap := e.emitLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
}

// Observe recomputes the key's attention from a derived parameter
// snapshot: busier surfaces command more attention. Unregistered keys
// are silent no-ops. Observation feeds the next Integrate; it does
// not notify by itself.
func (e *Estimator) Observe(sectionID, layer string, snapshot param.Vector) {
	key := Key(sectionID, layer)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.attention[key]; !ok {
		return
	}
	e.attention[key] = param.Clamp01(0.35 + 0.45*snapshot.Density + 0.2*snapshot.Chaos)
}

// SignalInteraction records a named interaction: a memory entry plus
// an immediate awareness and flux nudge. Notifies synchronously.
func (e *Estimator) SignalInteraction(event string) {
	event = param.NormalizeID(event)

	e.mu.Lock()
	e.memory.append("interaction:" + event + ":" + e.timestampLocked())
	e.awareness = param.Clamp01(e.awareness + interactionAwarenessNudge)
	e.flux = param.Clamp01(e.flux + interactionFluxNudge)
	snap := e.emitLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
}

// Integrate advances the estimate by deltaSeconds. Mean attention
// (0.5 when nothing is registered) sets the targets:
//
//	awareness → 0.4 + 0.6·mean
//	emergence → 0.3 + 0.7·mean
//	coherence → 0.85 + 0.2·(mean − 0.5)
//
// Each value closes the gap by 1−e^(−rate·dt), so convergence is
// monotonic and overshoot-free at any cadence. Flux integrates
// (emergence − 0.5)·dt·gain. Listeners are notified only when some
// value moved more than notifyEpsilon.
func (e *Estimator) Integrate(deltaSeconds float64) {
	if deltaSeconds <= 0 || math.IsNaN(deltaSeconds) || math.IsInf(deltaSeconds, 0) {
		return
	}

	e.mu.Lock()
	mean := e.meanAttentionLocked()
	awarenessTarget := 0.4 + 0.6*mean
	emergenceTarget := 0.3 + 0.7*mean
	coherenceTarget := 0.85 + 0.2*(mean-0.5)

	before := [4]float64{e.awareness, e.emergence, e.coherence, e.flux}

	e.awareness = approach(e.awareness, awarenessTarget, awarenessRate, deltaSeconds)
	e.emergence = approach(e.emergence, emergenceTarget, emergenceRate, deltaSeconds)
	e.coherence = approach(e.coherence, coherenceTarget, coherenceRate, deltaSeconds)
	e.flux = param.Clamp01(e.flux + (e.emergence-0.5)*deltaSeconds*fluxGain)

	after := [4]float64{e.awareness, e.emergence, e.coherence, e.flux}
	changed := false
	for i := range before {
		if math.Abs(after[i]-before[i]) > notifyEpsilon {
			changed = true
			break
		}
	}
	if !changed {
		e.mu.Unlock()
		return
	}
	snap := e.emitLocked()
	e.mu.Unlock()
	e.hub.Publish(snap)
}

// approach moves value toward target by the rate-parameterized blend.
func approach(value, target, rate, dt float64) float64 {
	blend := 1 - math.Exp(-rate*dt)
	return param.Clamp01(value + (target-value)*blend)
}

func (e *Estimator) meanAttentionLocked() float64 {
	if len(e.attention) == 0 {
		return 0.5
	}
	total := 0.0
	for _, v := range e.attention {
		total += v
	}
	return total / float64(len(e.attention))
}

// Snapshot returns an immutable copy of the observable state.
func (e *Estimator) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Estimator) snapshotLocked() State {
	attention := make(map[string]float64, len(e.attention))
	for k, v := range e.attention {
		attention[k] = v
	}
	return State{
		Revision:  e.clock.Current(),
		Awareness: e.awareness,
		Emergence: e.emergence,
		Coherence: e.coherence,
		Flux:      e.flux,
		Attention: attention,
		Memory:    e.memory.newestFirst(),
	}
}

// emitLocked advances the revision and builds the snapshot to publish.
func (e *Estimator) emitLocked() State {
	e.clock.Next()
	return e.snapshotLocked()
}

// Subscribe registers a listener and returns its cancel function.
// Identical observer contract to the cascade store.
func (e *Estimator) Subscribe(fn func(State)) func() {
	return e.hub.Subscribe(fn)
}

// Revision returns the latest notified revision.
func (e *Estimator) Revision() int64 {
	return e.clock.Current()
}

func (e *Estimator) timestampLocked() string {
	return strconv.FormatInt(e.now().UnixMilli(), 10)
}
