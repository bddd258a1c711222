package cascade

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Domusgpt/vib3code-0-sub002/internal/notify"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
	"github.com/Domusgpt/vib3code-0-sub002/internal/relation"
)

// DefaultDecayTauMs is the decay time constant unless WithDecayTau
// overrides it. The exact value is a tunable, not a contract.
const DefaultDecayTauMs = 1200.0

// changeEpsilon is the per-field threshold below which a derived
// difference does not count as a state change.
const changeEpsilon = 1e-9

// Integrator receives the elapsed tick downstream of delta decay.
// The consciousness estimator implements it; Step forwards every
// effective tick so smoothing advances on the same cadence as decay.
type Integrator interface {
	Integrate(deltaSeconds float64)
}

// LayerState is one derived layer vector.
type LayerState struct {
	Type   string       `json:"type"`
	Params param.Vector `json:"params"`
}

// SectionState is the derived output for one section: the
// section-level vector plus every declared layer, in declaration
// order.
type SectionState struct {
	ID     string       `json:"id"`
	Params param.Vector `json:"params"`
	Layers []LayerState `json:"layers"`
}

// Snapshot is an immutable copy of the store's observable state.
type Snapshot struct {
	Revision   int64          `json:"revision"`
	Token      string         `json:"token"`
	TableHash  string         `json:"table_hash"`
	Home       param.Vector   `json:"home"`
	Sections   []SectionState `json:"sections"`
	LiveDeltas int            `json:"live_deltas"`
}

// Store owns the home vector and derives per-section state.
//
// INVARIANTS:
//   - section order and per-trigger rule order NEVER change after
//     construction
//   - the revision counter advances exactly when listeners fire
//   - derived output is a pure function of (home, config, live deltas)
type Store struct {
	logger *slog.Logger
	eval   *relation.Evaluator
	tokens TokenSource
	budget *Budget
	clock  *Clock
	hub    notify.Hub[Snapshot]

	tauMs      float64
	integrator Integrator

	token     string
	tableHash string

	mu         sync.Mutex
	home       param.Vector
	sections   []param.SectionConfig
	sectionIdx map[string]int
	rules      map[string][]param.CascadeRule
	deltas     *deltaSet
	derived    []SectionState
	running    bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDecayTau sets the decay time constant in milliseconds.
// Non-positive or non-finite values keep the default.
func WithDecayTau(tauMs float64) Option {
	return func(s *Store) {
		if tauMs > 0 && tauMs == tauMs {
			s.tauMs = tauMs
		}
	}
}

// WithMaxDeltas sets the live-delta ceiling.
// Use WithMaxDeltas(4) for testing eviction.
func WithMaxDeltas(maxLive int) Option {
	return func(s *Store) {
		s.budget = NewBudget(maxLive)
	}
}

// WithTokenSource sets the instance token source. Tests pass a
// FixedSource so traces stay byte-stable.
func WithTokenSource(src TokenSource) Option {
	return func(s *Store) {
		if src != nil {
			s.tokens = src
		}
	}
}

// WithIntegrator wires the downstream consciousness integration step.
func WithIntegrator(i Integrator) Option {
	return func(s *Store) {
		s.integrator = i
	}
}

// WithHome seeds the home vector. Fields are conformed to their
// declared ranges. Default: param.DefaultHome().
func WithHome(home param.Vector) Option {
	return func(s *Store) {
		s.home = home.Conformed()
	}
}

// New creates a Store over the given tables.
//
// Both slices are copied; their order is semantic and preserved.
// Section IDs, layer names, and trigger names are NFC-normalized.
// Invalid tables (duplicate sections, unknown parameters, bad scope
// modes or kinds) fail construction rather than degrade at runtime.
func New(sections []param.SectionConfig, rules []param.CascadeRule, opts ...Option) (*Store, error) {
	s := &Store{
		logger: slog.Default(),
		tokens: UUIDv7Source{},
		budget: NewBudget(DefaultMaxDeltas),
		clock:  NewClock(),
		tauMs:  DefaultDecayTauMs,
		home:   param.DefaultHome(),
		deltas: newDeltaSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.eval = relation.NewEvaluator(s.logger)

	s.sections = make([]param.SectionConfig, len(sections))
	copy(s.sections, sections)
	s.sectionIdx = make(map[string]int, len(s.sections))
	for i := range s.sections {
		cfg := &s.sections[i]
		cfg.ID = param.NormalizeID(cfg.ID)
		if cfg.ID == "" {
			return nil, fmt.Errorf("cascade: section %d has empty id", i)
		}
		if _, dup := s.sectionIdx[cfg.ID]; dup {
			return nil, fmt.Errorf("cascade: duplicate section %q", cfg.ID)
		}
		if len(cfg.Layers) == 0 {
			cfg.Layers = param.DefaultLayers()
		}
		layers := make([]string, len(cfg.Layers))
		seen := make(map[string]bool, len(cfg.Layers))
		for j, layer := range cfg.Layers {
			layer = param.NormalizeID(layer)
			if layer == "" {
				return nil, fmt.Errorf("cascade: section %q layer %d is empty", cfg.ID, j)
			}
			if seen[layer] {
				return nil, fmt.Errorf("cascade: section %q duplicate layer %q", cfg.ID, layer)
			}
			seen[layer] = true
			layers[j] = layer
		}
		cfg.Layers = layers
		s.sectionIdx[cfg.ID] = i
	}

	s.rules = make(map[string][]param.CascadeRule)
	for i, rule := range rules {
		rule.Trigger = param.NormalizeID(rule.Trigger)
		rule.Section = param.NormalizeID(rule.Section)
		rule.Layer = param.NormalizeID(rule.Layer)
		if rule.Trigger == "" {
			return nil, fmt.Errorf("cascade: rule %d has empty trigger", i)
		}
		if err := param.ValidateScopeMode(rule.Mode); err != nil {
			return nil, fmt.Errorf("cascade: rule %d (%s): %w", i, rule.Trigger, err)
		}
		if !param.Known(rule.Parameter) {
			return nil, fmt.Errorf("cascade: rule %d (%s): unknown parameter %q", i, rule.Trigger, rule.Parameter)
		}
		kind := rule.Relationship.Kind
		if !param.ValidKinds[kind] && kind != param.KindCustom {
			return nil, fmt.Errorf("cascade: rule %d (%s): unknown relationship kind %q", i, rule.Trigger, kind)
		}
		s.rules[rule.Trigger] = append(s.rules[rule.Trigger], rule)
	}

	hash, err := param.TableHash(s.sections, rules)
	if err != nil {
		return nil, fmt.Errorf("cascade: %w", err)
	}
	s.tableHash = hash
	s.token = s.tokens.Generate()
	s.derived = s.deriveAllLocked()

	s.logger.Debug("cascade store constructed",
		slog.String("token", s.token),
		slog.String("table_hash", s.tableHash),
		slog.Int("sections", len(s.sections)),
		slog.Int("rules", len(rules)))
	return s, nil
}

// Token returns the instance token minted at construction.
func (s *Store) Token() string {
	return s.token
}

// TableHash returns the fingerprint of the tables this store runs.
func (s *Store) TableHash() string {
	return s.tableHash
}

// Revision returns the latest notified revision.
func (s *Store) Revision() int64 {
	return s.clock.Current()
}

// SectionIDs lists the known sections in registration order.
func (s *Store) SectionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.sections))
	for i, cfg := range s.sections {
		ids[i] = cfg.ID
	}
	return ids
}

// Home returns a copy of the current home vector.
func (s *Store) Home() param.Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.home
}

// Deltas copies the live deltas in insertion order. Intended for
// traces and diagnostics; derived math never leaves the store.
func (s *Store) Deltas() []ScopedDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deltas.snapshot()
}

// Snapshot returns an immutable copy of the observable state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	sections := make([]SectionState, len(s.derived))
	for i, sec := range s.derived {
		layers := make([]LayerState, len(sec.Layers))
		copy(layers, sec.Layers)
		sections[i] = SectionState{ID: sec.ID, Params: sec.Params, Layers: layers}
	}
	return Snapshot{
		Revision:   s.clock.Current(),
		Token:      s.token,
		TableHash:  s.tableHash,
		Home:       s.home,
		Sections:   sections,
		LiveDeltas: s.deltas.len(),
	}
}

// Subscribe registers a listener and returns its cancel function.
// Listeners run synchronously after each effective mutation: a home
// edit that changed the home vector, or a Step whose decay moved
// derived output.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	return s.hub.Subscribe(fn)
}

// UpdateHomeParams merges the partial into the home vector, conforming
// each field to its declared range. A merge that changes the home
// vector notifies listeners immediately and synchronously; a merge
// that lands on identical values is a no-op. Unknown names are skipped
// and logged, never fatal.
func (s *Store) UpdateHomeParams(p param.Partial) {
	s.mu.Lock()
	before := s.home
	if unknown := p.Apply(&s.home); unknown != "" {
		s.logger.Debug("home update carries unknown parameter",
			slog.String("parameter", string(unknown)))
	}
	if s.home == before {
		s.mu.Unlock()
		return
	}
	s.derived = s.deriveAllLocked()
	s.clock.Next()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Publish(snap)
}

// Start enables stepping. Idempotent.
func (s *Store) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.logger.Debug("cascade store started", slog.String("token", s.token))
}

// Stop freezes stepping. Triggers and home edits still apply while
// stopped; only decay and downstream integration pause. Idempotent.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.logger.Debug("cascade store stopped", slog.String("token", s.token))
}

// Running reports whether Step currently advances state.
func (s *Store) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
