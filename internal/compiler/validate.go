package compiler

import (
	"fmt"
	"math"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// Validation error codes (E100-E199)
const (
	// Section errors (E101-E109)
	ErrSectionIDEmpty   = "E101" // section id is required
	ErrDuplicateSection = "E102" // duplicate section id
	ErrLayerNameEmpty   = "E103" // layer name must be non-empty
	ErrDuplicateLayer   = "E104" // duplicate layer within a section
	ErrFieldNotFinite   = "E105" // non-finite shift/multiplier/add/bias

	// Rule errors (E110-E119)
	ErrTriggerEmpty       = "E110" // rule trigger is required
	ErrUnknownParameter   = "E111" // parameter does not name a vector field
	ErrInvalidKind        = "E112" // unknown relationship kind
	ErrCustomKindInTables = "E113" // custom curves are Go-API-only
	ErrIntensityNotFinite = "E114" // non-finite intensity
	ErrInvalidScopeMode   = "E115" // invalid scope mode
	ErrScopePinMisuse     = "E116" // pin not meaningful for the mode
	ErrUnknownSectionPin  = "E117" // pinned section not declared
	ErrUnknownLayerPin    = "E118" // pinned layer not declared
)

// ValidationError represents a table validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled tables against semantic rules.
// Returns all errors found (does not fail-fast).
//
// Compilation already rejects most of these; Validate exists for
// tables built as Go literals and as the single gate the CLI runs
// before constructing an engine.
func Validate(t *Tables) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateSections(t.Sections)...)
	errs = append(errs, validateRules(t.Rules, t.Sections)...)
	return errs
}

// validateSections checks section configs for id and layer collisions
// and non-finite derivation fields.
func validateSections(sections []param.SectionConfig) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool)
	for i, s := range sections {
		id := param.NormalizeID(s.ID)

		// E101: section id is required
		if id == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sections[%d].id", i),
				Message: "section id is required and must be non-empty",
				Code:    ErrSectionIDEmpty,
			})
			continue
		}

		// E102: duplicate section id
		if seen[id] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sections[%d].id", i),
				Message: fmt.Sprintf("duplicate section id: %q", id),
				Code:    ErrDuplicateSection,
			})
		}
		seen[id] = true

		// E103/E104: layer names non-empty and unique per section
		layerSeen := make(map[string]bool)
		for j, layer := range s.Layers {
			name := param.NormalizeID(layer)
			if name == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("sections[%d].layers[%d]", i, j),
					Message: fmt.Sprintf("layer name must be non-empty in section %q", id),
					Code:    ErrLayerNameEmpty,
				})
				continue
			}
			if layerSeen[name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("sections[%d].layers[%d]", i, j),
					Message: fmt.Sprintf("duplicate layer %q in section %q", name, id),
					Code:    ErrDuplicateLayer,
				})
			}
			layerSeen[name] = true
		}

		// E105: derivation fields must be finite
		numericFields := []struct {
			name  string
			value float64
		}{
			{"hue_shift", s.HueShift},
			{"density_multiplier", s.DensityMultiplier},
			{"density_add", s.DensityAdd},
			{"morph_multiplier", s.MorphMultiplier},
			{"morph_add", s.MorphAdd},
			{"chaos_multiplier", s.ChaosMultiplier},
			{"chaos_add", s.ChaosAdd},
			{"glitch_bias", s.GlitchBias},
		}
		for _, f := range numericFields {
			if !isFinite(f.value) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("sections[%d].%s", i, f.name),
					Message: fmt.Sprintf("%s must be finite in section %q", f.name, id),
					Code:    ErrFieldNotFinite,
				})
			}
		}
	}

	return errs
}

// validateRules checks cascade rules and cross-references their scope
// pins against the declared sections.
func validateRules(rules []param.CascadeRule, sections []param.SectionConfig) []ValidationError {
	var errs []ValidationError

	// Index declared sections and their layers for pin lookups
	sectionLayers := make(map[string]map[string]bool)
	anyLayer := make(map[string]bool)
	for _, s := range sections {
		id := param.NormalizeID(s.ID)
		layers := make(map[string]bool)
		for _, layer := range s.Layers {
			name := param.NormalizeID(layer)
			layers[name] = true
			anyLayer[name] = true
		}
		sectionLayers[id] = layers
	}

	for i, r := range rules {
		// E110: trigger is required
		if param.NormalizeID(r.Trigger) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].trigger", i),
				Message: "rule trigger is required and must be non-empty",
				Code:    ErrTriggerEmpty,
			})
		}

		// E111: parameter must name a vector field
		if !param.Known(r.Parameter) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].parameter", i),
				Message: fmt.Sprintf("unknown parameter %q", r.Parameter),
				Code:    ErrUnknownParameter,
			})
		}

		// E112/E113: relationship kind
		switch {
		case r.Relationship.Kind == param.KindCustom:
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].relationship.kind", i),
				Message: "custom curves cannot be declared in tables, attach them through the Go API",
				Code:    ErrCustomKindInTables,
			})
		case !param.ValidKinds[r.Relationship.Kind]:
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].relationship.kind", i),
				Message: fmt.Sprintf("invalid relationship kind %q", r.Relationship.Kind),
				Code:    ErrInvalidKind,
			})
		}

		// E114: intensity must be finite
		if !isFinite(r.Relationship.Intensity) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].relationship.intensity", i),
				Message: "intensity must be finite",
				Code:    ErrIntensityNotFinite,
			})
		}

		// E115: scope mode
		if !param.ValidScopeModes[r.Mode] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].mode", i),
				Message: fmt.Sprintf("invalid scope mode %q, must be \"global\", \"section\", or \"layer\"", r.Mode),
				Code:    ErrInvalidScopeMode,
			})
			continue
		}

		// E116: pins that the mode never reads
		if r.Mode == param.ScopeGlobal && (r.Section != "" || r.Layer != "") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d]", i),
				Message: "global rules cannot pin a section or layer",
				Code:    ErrScopePinMisuse,
			})
			continue
		}
		if r.Mode == param.ScopeSection && r.Layer != "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].layer", i),
				Message: "section rules cannot pin a layer, use a layer scope",
				Code:    ErrScopePinMisuse,
			})
			continue
		}

		// E117: pinned section must be declared
		sectionPin := param.NormalizeID(r.Section)
		if sectionPin != "" {
			if _, ok := sectionLayers[sectionPin]; !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("rules[%d].section", i),
					Message: fmt.Sprintf("pinned section %q is not declared", sectionPin),
					Code:    ErrUnknownSectionPin,
				})
				continue
			}
		}

		// E118: pinned layer must exist in the pinned section, or in
		// at least one section when the rule floats across sections
		layerPin := param.NormalizeID(r.Layer)
		if r.Mode == param.ScopeLayer && layerPin != "" {
			if sectionPin != "" {
				if !sectionLayers[sectionPin][layerPin] {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("rules[%d].layer", i),
						Message: fmt.Sprintf("section %q has no layer %q", sectionPin, layerPin),
						Code:    ErrUnknownLayerPin,
					})
				}
			} else if !anyLayer[layerPin] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("rules[%d].layer", i),
					Message: fmt.Sprintf("no section declares layer %q", layerPin),
					Code:    ErrUnknownLayerPin,
				})
			}
		}
	}

	return errs
}

// isFinite reports whether f is neither NaN nor infinite.
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
