package param

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeID canonicalizes a section, layer, or trigger identifier:
// surrounding whitespace is trimmed and the result is NFC-normalized.
// Two identifiers that normalize equal address the same thing.
func NormalizeID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// ScopeMode selects how a cascade rule resolves its target scope.
type ScopeMode string

const (
	// ScopeGlobal targets every derived surface.
	ScopeGlobal ScopeMode = "global"

	// ScopeSection targets one section and all its layers.
	ScopeSection ScopeMode = "section"

	// ScopeLayer targets one layer type, in one section or across all.
	ScopeLayer ScopeMode = "layer"
)

// ValidScopeModes defines allowed scope modes.
var ValidScopeModes = map[ScopeMode]bool{
	ScopeGlobal:  true,
	ScopeSection: true,
	ScopeLayer:   true,
}

// ValidateScopeMode rejects unknown scope modes with the allowed set
// spelled out, matching compile-time error texture.
func ValidateScopeMode(mode ScopeMode) error {
	if !ValidScopeModes[mode] {
		return fmt.Errorf("invalid scope mode %q (must be global, section, or layer)", mode)
	}
	return nil
}

// Scope addresses a set of derived surfaces. An empty Section matches
// every section; an empty Layer matches the section-level vector and
// every layer. The zero value is the global scope.
type Scope struct {
	Section string `json:"section,omitempty"`
	Layer   string `json:"layer,omitempty"`
}

// IsGlobal reports whether the scope matches everything.
func (s Scope) IsGlobal() bool {
	return s.Section == "" && s.Layer == ""
}

// MatchesSection reports whether deltas in this scope reach the
// section-level vector for sectionID. Layer-pinned scopes never do.
func (s Scope) MatchesSection(sectionID string) bool {
	if s.Layer != "" {
		return false
	}
	return s.Section == "" || s.Section == sectionID
}

// MatchesLayer reports whether deltas in this scope reach the given
// layer of the given section.
func (s Scope) MatchesLayer(sectionID, layer string) bool {
	if s.Section != "" && s.Section != sectionID {
		return false
	}
	return s.Layer == "" || s.Layer == layer
}

// String renders the scope for logs and traces: "global", "hero",
// "hero/content", or "*/background" for a section-wildcard layer scope.
func (s Scope) String() string {
	switch {
	case s.Section == "" && s.Layer == "":
		return "global"
	case s.Layer == "":
		return s.Section
	case s.Section == "":
		return "*/" + s.Layer
	default:
		return s.Section + "/" + s.Layer
	}
}

// RelationshipKind names a delta conversion family.
type RelationshipKind string

const (
	KindLinear      RelationshipKind = "linear"
	KindInverse     RelationshipKind = "inverse"
	KindExponential RelationshipKind = "exponential"
	KindLogarithmic RelationshipKind = "logarithmic"

	// KindCustom marks a host-supplied curve. Custom relationships are
	// registered through the Go API only; rule tables cannot name them.
	KindCustom RelationshipKind = "custom"
)

// ValidKinds defines the relationship kinds rule tables may declare.
// KindCustom is deliberately absent: a table cannot smuggle arbitrary
// code.
var ValidKinds = map[RelationshipKind]bool{
	KindLinear:      true,
	KindInverse:     true,
	KindExponential: true,
	KindLogarithmic: true,
}

// Curve converts a signed source value into a raw delta. Host-supplied
// curves are untrusted until probed; see the relation package.
type Curve func(float64) float64

// Relationship converts a signed source value into a parameter delta.
type Relationship struct {
	Kind      RelationshipKind `json:"kind"`
	Intensity float64          `json:"intensity"`

	// Curve is consulted only when Kind is KindCustom. Never part of
	// the canonical table form.
	Curve Curve `json:"-"`
}

// CascadeRule maps one named trigger to one parameter delta. Rules
// fire in declaration order within their table.
type CascadeRule struct {
	Trigger string    `json:"trigger"`
	Mode    ScopeMode `json:"mode"`

	// Section and Layer pin the resolved scope. When empty the rule
	// takes the value from the trigger's CascadeContext instead.
	Section string `json:"section,omitempty"`
	Layer   string `json:"layer,omitempty"`

	Parameter    Name         `json:"parameter"`
	Relationship Relationship `json:"relationship"`
}

// ResolveScope combines the rule's pins with the trigger context.
// ok is false when the rule needs addressing the context does not
// carry (a section-mode rule fired with no section, a layer-mode rule
// with no layer); such rules are skipped, never widened.
func (r CascadeRule) ResolveScope(ctx CascadeContext) (Scope, bool) {
	switch r.Mode {
	case ScopeGlobal:
		return Scope{}, true
	case ScopeSection:
		section := r.Section
		if section == "" {
			section = ctx.SectionID
		}
		if section == "" {
			return Scope{}, false
		}
		return Scope{Section: section}, true
	case ScopeLayer:
		section := r.Section
		if section == "" {
			section = ctx.SectionID
		}
		layer := r.Layer
		if layer == "" {
			layer = ctx.LayerType
		}
		if layer == "" {
			return Scope{}, false
		}
		return Scope{Section: section, Layer: layer}, true
	default:
		return Scope{}, false
	}
}

// CascadeContext carries the addressing and strength of one trigger
// firing. Magnitude is non-negative; Polarity is +1 or -1 and flips
// the direction of every delta the firing produces.
type CascadeContext struct {
	SectionID   string  `json:"sectionId,omitempty"`
	LayerType   string  `json:"layerType,omitempty"`
	TargetID    string  `json:"targetId,omitempty"`
	TargetIndex int     `json:"targetIndex,omitempty"`
	Magnitude   float64 `json:"magnitude"`
	Polarity    float64 `json:"polarity"`
}

// Source collapses the context into the signed value fed to the
// relationship. A zero polarity is treated as +1 so that a context
// built from its zero value still pushes forward.
func (c CascadeContext) Source() float64 {
	p := c.Polarity
	if p == 0 {
		p = 1
	} else if p > 0 {
		p = 1
	} else {
		p = -1
	}
	m := c.Magnitude
	if m < 0 {
		m = 0
	}
	return m * p
}

// SectionConfig is the static derivation rule for one section: how its
// vectors diverge from the home state before live deltas apply.
type SectionConfig struct {
	ID string `json:"id"`

	HueShift float64 `json:"hue_shift"`

	DensityMultiplier float64 `json:"density_multiplier"`
	DensityAdd        float64 `json:"density_add"`

	MorphMultiplier float64 `json:"morph_multiplier"`
	MorphAdd        float64 `json:"morph_add"`

	ChaosMultiplier float64 `json:"chaos_multiplier"`
	ChaosAdd        float64 `json:"chaos_add"`

	GlitchBias float64 `json:"glitch_bias"`

	// Layers lists the derived layer types in declaration order.
	Layers []string `json:"layers,omitempty"`
}

// DefaultSection returns a config that derives the section unchanged
// from home: multipliers one, shifts zero, the standard layer stack.
func DefaultSection(id string) SectionConfig {
	return SectionConfig{
		ID:                id,
		DensityMultiplier: 1,
		MorphMultiplier:   1,
		ChaosMultiplier:   1,
		Layers:            DefaultLayers(),
	}
}

// DefaultLayers is the standard layer stack, back to front.
func DefaultLayers() []string {
	return []string{"background", "content", "accent"}
}
