// Package vib3 is the composition root for the visual parameter
// engine. It builds the cascade store, consciousness estimator, and
// interaction coordinator from compiled tables and wires them the way
// an embedding application needs them:
//
//	host UI events  → Interaction() handlers → cascade triggers + mind signals
//	host tick       → Tick(deltaMs)          → decay, derive, notify, integrate
//	renderers       → Subscribe on Cascade() and Mind(), or Snapshot()
//
// The host owns the cadence: nothing here spawns timers except the
// coordinator's optional idle poll, started by Start.
package vib3

import (
	"log/slog"
	"time"

	"github.com/Domusgpt/vib3code-0-sub002/internal/cascade"
	"github.com/Domusgpt/vib3code-0-sub002/internal/interact"
	"github.com/Domusgpt/vib3code-0-sub002/internal/mind"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// System owns one engine instance: a cascade store, a consciousness
// estimator, and the interaction coordinator joining them.
//
// Thread-safety: every component guards its own state, so System
// methods are safe to call concurrently, though a single writer is
// the intended shape.
type System struct {
	logger *slog.Logger
	store  *cascade.Store
	est    *mind.Estimator
	coord  *interact.Coordinator
}

type config struct {
	logger          *slog.Logger
	now             func() time.Time
	home            *param.Vector
	decayTauMs      float64
	idleThresholdMs float64
	poll            time.Duration
	maxDeltas       int
	tokens          cascade.TokenSource
}

// Option configures a System during New.
type Option func(*config)

// WithLogger sets the structured logger shared by all components.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNow sets the wall-clock source used for idle detection and
// memory timestamps. Tests pass a manual clock.
func WithNow(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithHome seeds the home vector.
func WithHome(home param.Vector) Option {
	return func(c *config) {
		h := home
		c.home = &h
	}
}

// WithDecayTau sets the delta decay time constant in milliseconds.
func WithDecayTau(tauMs float64) Option {
	return func(c *config) {
		c.decayTauMs = tauMs
	}
}

// WithIdleThreshold sets the idle window in milliseconds.
func WithIdleThreshold(ms float64) Option {
	return func(c *config) {
		c.idleThresholdMs = ms
	}
}

// WithPollInterval sets the idle poll cadence used by Start.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.poll = d
	}
}

// WithMaxDeltas caps the live delta set.
func WithMaxDeltas(maxLive int) Option {
	return func(c *config) {
		c.maxDeltas = maxLive
	}
}

// WithTokenSource sets the instance token source. Tests pass a fixed
// source so traces stay byte-stable.
func WithTokenSource(src cascade.TokenSource) Option {
	return func(c *config) {
		c.tokens = src
	}
}

// New builds a System over compiled tables.
//
// The wiring is fixed: the estimator integrates on every effective
// cascade step, every published snapshot feeds the attention map, and
// the coordinator drives both components. Invalid tables fail
// construction.
func New(sections []param.SectionConfig, rules []param.CascadeRule, opts ...Option) (*System, error) {
	cfg := &config{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	est := mind.NewEstimator(
		mind.WithLogger(cfg.logger),
		mind.WithNow(cfg.now),
	)

	storeOpts := []cascade.Option{
		cascade.WithLogger(cfg.logger),
		cascade.WithIntegrator(est),
	}
	if cfg.home != nil {
		storeOpts = append(storeOpts, cascade.WithHome(*cfg.home))
	}
	if cfg.decayTauMs > 0 {
		storeOpts = append(storeOpts, cascade.WithDecayTau(cfg.decayTauMs))
	}
	if cfg.maxDeltas > 0 {
		storeOpts = append(storeOpts, cascade.WithMaxDeltas(cfg.maxDeltas))
	}
	if cfg.tokens != nil {
		storeOpts = append(storeOpts, cascade.WithTokenSource(cfg.tokens))
	}
	store, err := cascade.New(sections, rules, storeOpts...)
	if err != nil {
		return nil, err
	}

	coordOpts := []interact.Option{
		interact.WithLogger(cfg.logger),
		interact.WithNow(cfg.now),
	}
	if cfg.poll > 0 {
		coordOpts = append(coordOpts, interact.WithPollInterval(cfg.poll))
	}
	coord := interact.NewCoordinator(store, est, coordOpts...)
	if cfg.idleThresholdMs > 0 {
		coord.SetIdleThreshold(cfg.idleThresholdMs)
	}

	sys := &System{
		logger: cfg.logger,
		store:  store,
		est:    est,
		coord:  coord,
	}

	// Every published snapshot maps derived layer vectors onto the
	// estimator's registered keys. The subscription lives as long as
	// the system; both sides share its lifetime.
	store.Subscribe(sys.observe)

	return sys, nil
}

func (s *System) observe(snap cascade.Snapshot) {
	for _, sec := range snap.Sections {
		for _, layer := range sec.Layers {
			s.est.Observe(sec.ID, layer.Type, layer.Params)
		}
	}
}

// Tick advances the engine by deltaMs of host time: delta decay and
// derived recomputation first, then consciousness integration on the
// same cadence. Ignored while stopped; non-positive or non-finite
// deltas are ignored always.
func (s *System) Tick(deltaMs float64) {
	s.store.Step(deltaMs)
}

// Start enables stepping and begins idle polling. Idempotent.
func (s *System) Start() {
	s.store.Start()
	s.coord.Start()
}

// Stop halts idle polling and freezes stepping. Interaction handlers
// and home edits still apply while stopped; only decay, integration,
// and idle polling pause. Idempotent.
func (s *System) Stop() {
	s.coord.Stop()
	s.store.Stop()
}

// Running reports whether ticks currently advance state.
func (s *System) Running() bool {
	return s.store.Running()
}

// Cascade returns the parameter store.
func (s *System) Cascade() *cascade.Store {
	return s.store
}

// Mind returns the consciousness estimator.
func (s *System) Mind() *mind.Estimator {
	return s.est
}

// Interaction returns the interaction coordinator.
func (s *System) Interaction() *interact.Coordinator {
	return s.coord
}

// Snapshot captures both stateful components at one instant.
type Snapshot struct {
	Cascade cascade.Snapshot `json:"cascade"`
	Mind    mind.State       `json:"mind"`
}

// Snapshot samples the combined observable state. The two components
// are read in sequence; under a single writer the pair is coherent.
func (s *System) Snapshot() Snapshot {
	return Snapshot{
		Cascade: s.store.Snapshot(),
		Mind:    s.est.Snapshot(),
	}
}
