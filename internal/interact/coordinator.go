// Package interact converts discrete interaction events into cascade
// triggers and owns the registry of addressable visual elements.
//
// Handlers are synchronous: a hover lands its triggers before the
// handler returns. Events naming an unknown element id are silent
// no-ops; registration and unregistration race against UI events by
// design, and a stale event must not error.
package interact

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// Trigger names fired into the cascade store.
const (
	TriggerHoverTarget  = "cardHoverTarget"
	TriggerHoverSibling = "cardHoverSibling"
	TriggerFocus        = "cardFocus"
	TriggerFocusRelease = "cardFocusRelease"
	TriggerInversion    = "realityInversion"
	TriggerIdleFlux     = "idleFlux"
)

// Interaction names signaled to the consciousness estimator.
const (
	SignalHover     = "hover"
	SignalFocus     = "focus"
	SignalInversion = "reality-inversion"
	SignalIdle      = "idle"
)

// siblingFloor is the minimum sibling compensation magnitude.
const siblingFloor = 0.2

// TriggerSink receives cascade triggers. *cascade.Store satisfies it.
type TriggerSink interface {
	TriggerParameterCascade(trigger string, ctx param.CascadeContext)
}

// AttentionSink receives element registrations and interaction
// signals. *mind.Estimator satisfies it. A nil sink disables the
// consciousness side without disabling triggers.
type AttentionSink interface {
	RegisterElement(sectionID, layer string, ref any) func()
	SignalInteraction(event string)
}

// HoverMeta carries the hovered element's position among its
// siblings. Total at or below zero is treated as one.
type HoverMeta struct {
	Index int
	Total int
}

// Coordinator routes interaction events to the cascade store and the
// consciousness estimator.
//
// Thread-safety: all methods take the internal lock; triggers and
// signals fire outside it so sinks may call back in.
type Coordinator struct {
	logger *slog.Logger
	sink   TriggerSink
	mind   AttentionSink
	now    func() time.Time
	poll   time.Duration

	mu           sync.Mutex
	regs         *registry
	thresholdMs  float64
	lastActivity time.Time
	running      bool
	stop         chan struct{}
	wg           sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNow sets the wall-clock source for activity tracking. Tests
// pass a manual clock to drive idle windows deterministically.
func WithNow(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPollInterval sets the internal idle-poll cadence used by Start.
// Default: one second.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.poll = d
		}
	}
}

// NewCoordinator creates a coordinator over the given sinks. The
// trigger sink is required; the attention sink may be nil.
func NewCoordinator(sink TriggerSink, attention AttentionSink, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:      slog.Default(),
		sink:        sink,
		mind:        attention,
		now:         time.Now,
		poll:        time.Second,
		regs:        newRegistry(),
		thresholdMs: DefaultIdleThresholdMs,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastActivity = c.now()
	return c
}

// RegisterVisualizer stores the registration, forwards it to the
// attention map, and returns an idempotent unregister closure that
// removes both. Re-registering an id displaces the old registration
// and releases its attention entry.
func (c *Coordinator) RegisterVisualizer(reg Registration) func() {
	reg.ID = param.NormalizeID(reg.ID)
	reg.SectionID = param.NormalizeID(reg.SectionID)
	reg.Layer = param.NormalizeID(reg.Layer)
	if reg.ID == "" {
		c.logger.Debug("visualizer registration with empty id ignored")
		return func() {}
	}

	var mindUnreg func()
	if c.mind != nil {
		mindUnreg = c.mind.RegisterElement(reg.SectionID, reg.Layer, reg.Ref)
	}

	c.mu.Lock()
	installed, displaced := c.regs.put(reg, mindUnreg)
	gen := installed.gen
	c.mu.Unlock()

	if displaced != nil && displaced.mindUnreg != nil {
		displaced.mindUnreg()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			removed, ok := c.regs.remove(reg.ID, gen)
			c.mu.Unlock()
			if ok && removed.mindUnreg != nil {
				removed.mindUnreg()
			}
		})
	}
}

// Registered reports whether an element id is currently registered.
func (c *Coordinator) Registered(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.regs.get(param.NormalizeID(id))
	return ok
}

// ElementIDs lists registered element ids in sorted order.
func (c *Coordinator) ElementIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs.ids()
}

// HandleHoverStart fires the hover pair for id: the target intensifies
// at full magnitude while its siblings receive an inverse,
// magnitude-bounded compensation of max(0.2, 1 − 0.1·total).
func (c *Coordinator) HandleHoverStart(id string, meta HoverMeta) {
	reg, ok := c.touch(id)
	if !ok {
		return
	}

	total := meta.Total
	if total <= 0 {
		total = 1
	}
	sibling := math.Max(siblingFloor, 1-0.1*float64(total))

	c.sink.TriggerParameterCascade(TriggerHoverTarget, param.CascadeContext{
		SectionID:   reg.SectionID,
		LayerType:   reg.Layer,
		TargetID:    reg.ID,
		TargetIndex: meta.Index,
		Magnitude:   1,
		Polarity:    1,
	})
	c.sink.TriggerParameterCascade(TriggerHoverSibling, param.CascadeContext{
		SectionID:   reg.SectionID,
		LayerType:   reg.Layer,
		TargetID:    reg.ID,
		TargetIndex: meta.Index,
		Magnitude:   sibling,
		Polarity:    -1,
	})
	c.signal(SignalHover)
}

// HandleHoverEnd mirrors HandleHoverStart with polarities reversed and
// full magnitude on both triggers. No consciousness signal.
func (c *Coordinator) HandleHoverEnd(id string) {
	reg, ok := c.touch(id)
	if !ok {
		return
	}

	c.sink.TriggerParameterCascade(TriggerHoverTarget, param.CascadeContext{
		SectionID: reg.SectionID,
		LayerType: reg.Layer,
		TargetID:  reg.ID,
		Magnitude: 1,
		Polarity:  -1,
	})
	c.sink.TriggerParameterCascade(TriggerHoverSibling, param.CascadeContext{
		SectionID: reg.SectionID,
		LayerType: reg.Layer,
		TargetID:  reg.ID,
		Magnitude: 1,
		Polarity:  1,
	})
}

// HandleFocus fires cardFocus and signals focus.
func (c *Coordinator) HandleFocus(id string) {
	reg, ok := c.touch(id)
	if !ok {
		return
	}
	c.sink.TriggerParameterCascade(TriggerFocus, param.CascadeContext{
		SectionID: reg.SectionID,
		LayerType: reg.Layer,
		TargetID:  reg.ID,
		Magnitude: 1,
		Polarity:  1,
	})
	c.signal(SignalFocus)
}

// HandleBlur fires cardFocusRelease. No consciousness signal.
func (c *Coordinator) HandleBlur(id string) {
	reg, ok := c.touch(id)
	if !ok {
		return
	}
	c.sink.TriggerParameterCascade(TriggerFocusRelease, param.CascadeContext{
		SectionID: reg.SectionID,
		LayerType: reg.Layer,
		TargetID:  reg.ID,
		Magnitude: 1,
		Polarity:  -1,
	})
}

// HandleClick fires realityInversion and signals reality-inversion.
func (c *Coordinator) HandleClick(id string) {
	reg, ok := c.touch(id)
	if !ok {
		return
	}
	c.sink.TriggerParameterCascade(TriggerInversion, param.CascadeContext{
		SectionID: reg.SectionID,
		LayerType: reg.Layer,
		TargetID:  reg.ID,
		Magnitude: 1,
		Polarity:  1,
	})
	c.signal(SignalInversion)
}

// touch resolves id and stamps activity. Unknown ids are silent
// no-ops and do not count as activity.
func (c *Coordinator) touch(id string) (Registration, bool) {
	id = param.NormalizeID(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.regs.get(id)
	if !ok {
		c.logger.Debug("event for unknown element", slog.String("id", id))
		return Registration{}, false
	}
	c.lastActivity = c.now()
	return reg, true
}

func (c *Coordinator) signal(event string) {
	if c.mind != nil {
		c.mind.SignalInteraction(event)
	}
}
