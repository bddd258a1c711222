package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// Scenario defines a conformance test scenario. Scenarios build a real
// engine from inline tables, drive it through scripted steps, and
// assert on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden
	// fixture name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Token is an optional fixed instance token for deterministic
	// traces. If empty, the runner uses "test-token-000001".
	// Scenarios kept as golden fixtures should set an explicit token.
	Token string `yaml:"token,omitempty"`

	// Tables declares the sections and cascade rules the engine is
	// built from.
	Tables *TableSpec `yaml:"tables"`

	// Home holds optional overrides merged over the default home
	// vector before the engine starts. Keys are parameter names.
	Home map[string]float64 `yaml:"home,omitempty"`

	// IdleThresholdMs overrides the idle window. Zero keeps the
	// engine default.
	IdleThresholdMs float64 `yaml:"idle_threshold_ms,omitempty"`

	// DecayTauMs overrides the delta decay time constant. Zero keeps
	// the engine default.
	DecayTauMs float64 `yaml:"decay_tau_ms,omitempty"`

	// Observe lists the scopes recorded in every trace record:
	// "section" for a section vector, "section/layer" for a layer.
	Observe []string `yaml:"observe,omitempty"`

	// Steps is the scripted sequence driven against the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final engine state.
	Assertions []Assertion `yaml:"assertions"`
}

// TableSpec declares the engine tables inline.
type TableSpec struct {
	Sections []SectionSpec `yaml:"sections"`
	Rules    []RuleSpec    `yaml:"rules,omitempty"`
}

// SectionSpec is the YAML form of one section config. Multipliers are
// pointers so that an absent field defaults to 1 while an explicit 0
// stays 0.
type SectionSpec struct {
	ID                string   `yaml:"id"`
	HueShift          float64  `yaml:"hue_shift,omitempty"`
	DensityMultiplier *float64 `yaml:"density_multiplier,omitempty"`
	DensityAdd        float64  `yaml:"density_add,omitempty"`
	MorphMultiplier   *float64 `yaml:"morph_multiplier,omitempty"`
	MorphAdd          float64  `yaml:"morph_add,omitempty"`
	ChaosMultiplier   *float64 `yaml:"chaos_multiplier,omitempty"`
	ChaosAdd          float64  `yaml:"chaos_add,omitempty"`
	GlitchBias        float64  `yaml:"glitch_bias,omitempty"`
	Layers            []string `yaml:"layers,omitempty"`
}

// RuleSpec is the YAML form of one cascade rule.
type RuleSpec struct {
	Trigger   string  `yaml:"trigger"`
	Mode      string  `yaml:"mode"`
	Section   string  `yaml:"section,omitempty"`
	Layer     string  `yaml:"layer,omitempty"`
	Parameter string  `yaml:"parameter"`
	Kind      string  `yaml:"kind"`
	Intensity float64 `yaml:"intensity"`
}

// Step is one scripted action. Do selects the kind; the other fields
// are read per kind as documented in the package comment.
type Step struct {
	Do string `yaml:"do"`

	// Element addressing for register, unregister, and element events.
	ID      string `yaml:"id,omitempty"`
	Section string `yaml:"section,omitempty"`
	Layer   string `yaml:"layer,omitempty"`

	// Hover position among siblings (hover_start).
	Index int `yaml:"index,omitempty"`
	Total int `yaml:"total,omitempty"`

	// Home overrides (home). Keys are parameter names.
	Params map[string]float64 `yaml:"params,omitempty"`

	// Direct trigger fields (trigger). Magnitude defaults to 1;
	// polarity defaults to +1.
	Trigger   string  `yaml:"trigger,omitempty"`
	Magnitude float64 `yaml:"magnitude,omitempty"`
	Polarity  float64 `yaml:"polarity,omitempty"`

	// Clock and engine advance (tick). Repeat defaults to 1.
	Ms     float64 `yaml:"ms,omitempty"`
	Repeat int     `yaml:"repeat,omitempty"`
}

// Step kind constants.
const (
	StepRegister   = "register"
	StepUnregister = "unregister"
	StepHoverStart = "hover_start"
	StepHoverEnd   = "hover_end"
	StepFocus      = "focus"
	StepBlur       = "blur"
	StepClick      = "click"
	StepHome       = "home"
	StepTrigger    = "trigger"
	StepTick       = "tick"
	StepCheckIdle  = "check_idle"
)

// Assertion validates the trace or final state.
type Assertion struct {
	// Type selects the assertion kind; see the package comment for
	// the type catalog.
	Type string `yaml:"type"`

	// Scope addresses a derived vector (param_eq, param_between):
	// "section" or "section/layer".
	Scope string `yaml:"scope,omitempty"`

	// Parameter names the vector field (param_eq, param_between).
	Parameter string `yaml:"parameter,omitempty"`

	// Value is the expected value (param_eq, attention_eq).
	Value float64 `yaml:"value,omitempty"`

	// Tolerance widens equality checks. Zero means the default 1e-6.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Min and Max bound range checks (param_between,
	// conscious_between). Both are required for those types.
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`

	// Field names a consciousness scalar (conscious_between):
	// awareness, emergence, coherence, or flux.
	Field string `yaml:"field,omitempty"`

	// Revision is the minimum cascade revision (revision_min).
	Revision int64 `yaml:"revision,omitempty"`

	// Entry is the memory entry prefix (memory_contains).
	Entry string `yaml:"entry,omitempty"`

	// Key is the attention map key (attention_eq), "section:layer".
	Key string `yaml:"key,omitempty"`

	// Count is the expected number of idle firings (idle_fired).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertParamEq          = "param_eq"
	AssertParamBetween     = "param_between"
	AssertConsciousBetween = "conscious_between"
	AssertRevisionMin      = "revision_min"
	AssertMemoryContains   = "memory_contains"
	AssertAttentionEq      = "attention_eq"
	AssertIdleFired        = "idle_fired"
)

// consciousFields lists the valid conscious_between field names.
var consciousFields = map[string]bool{
	"awareness": true,
	"emergence": true,
	"coherence": true,
	"flux":      true,
}

// LoadScenario reads and parses a scenario YAML file. Returns an error
// if the file doesn't exist, is malformed, contains unknown fields
// (typos), or fails structural validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Compile converts the inline table spec into engine configuration.
func (ts *TableSpec) Compile() ([]param.SectionConfig, []param.CascadeRule) {
	sections := make([]param.SectionConfig, len(ts.Sections))
	for i, spec := range ts.Sections {
		cfg := param.SectionConfig{
			ID:                spec.ID,
			HueShift:          spec.HueShift,
			DensityMultiplier: 1,
			DensityAdd:        spec.DensityAdd,
			MorphMultiplier:   1,
			MorphAdd:          spec.MorphAdd,
			ChaosMultiplier:   1,
			ChaosAdd:          spec.ChaosAdd,
			GlitchBias:        spec.GlitchBias,
			Layers:            spec.Layers,
		}
		if spec.DensityMultiplier != nil {
			cfg.DensityMultiplier = *spec.DensityMultiplier
		}
		if spec.MorphMultiplier != nil {
			cfg.MorphMultiplier = *spec.MorphMultiplier
		}
		if spec.ChaosMultiplier != nil {
			cfg.ChaosMultiplier = *spec.ChaosMultiplier
		}
		sections[i] = cfg
	}

	rules := make([]param.CascadeRule, len(ts.Rules))
	for i, spec := range ts.Rules {
		rules[i] = param.CascadeRule{
			Trigger:   spec.Trigger,
			Mode:      param.ScopeMode(spec.Mode),
			Section:   spec.Section,
			Layer:     spec.Layer,
			Parameter: param.Name(spec.Parameter),
			Relationship: param.Relationship{
				Kind:      param.RelationshipKind(spec.Kind),
				Intensity: spec.Intensity,
			},
		}
	}
	return sections, rules
}

// layerSets resolves the declared layer stack per section, applying
// the engine default where a section declares none.
func (ts *TableSpec) layerSets() map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(ts.Sections))
	for _, spec := range ts.Sections {
		layers := spec.Layers
		if len(layers) == 0 {
			layers = param.DefaultLayers()
		}
		set := make(map[string]bool, len(layers))
		for _, layer := range layers {
			set[param.NormalizeID(layer)] = true
		}
		out[param.NormalizeID(spec.ID)] = set
	}
	return out
}

// splitScope breaks "section" or "section/layer" into its parts.
func splitScope(scope string) (section, layer string) {
	parts := strings.SplitN(scope, "/", 2)
	section = parts[0]
	if len(parts) == 2 {
		layer = parts[1]
	}
	return section, layer
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Tables == nil || len(s.Tables.Sections) == 0 {
		return fmt.Errorf("tables.sections list is required and must be non-empty")
	}
	for i, section := range s.Tables.Sections {
		if strings.TrimSpace(section.ID) == "" {
			return fmt.Errorf("tables.sections[%d]: id is required", i)
		}
	}
	for i, rule := range s.Tables.Rules {
		if rule.Trigger == "" {
			return fmt.Errorf("tables.rules[%d]: trigger is required", i)
		}
		if err := param.ValidateScopeMode(param.ScopeMode(rule.Mode)); err != nil {
			return fmt.Errorf("tables.rules[%d]: %v", i, err)
		}
		if !param.Known(param.Name(rule.Parameter)) {
			return fmt.Errorf("tables.rules[%d]: unknown parameter %q", i, rule.Parameter)
		}
		if !param.ValidKinds[param.RelationshipKind(rule.Kind)] {
			return fmt.Errorf("tables.rules[%d]: unknown relationship kind %q", i, rule.Kind)
		}
	}

	for name := range s.Home {
		if !param.Known(param.Name(name)) {
			return fmt.Errorf("home: unknown parameter %q", name)
		}
	}

	layers := s.Tables.layerSets()
	for i, scope := range s.Observe {
		if err := validateScope(layers, scope); err != nil {
			return fmt.Errorf("observe[%d]: %v", i, err)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, layers); err != nil {
			return err
		}
	}

	return nil
}

// validateScope checks a "section" or "section/layer" scope against
// the declared tables.
func validateScope(layers map[string]map[string]bool, scope string) error {
	section, layer := splitScope(scope)
	if section == "" {
		return fmt.Errorf("scope %q: section is required", scope)
	}
	declared, ok := layers[param.NormalizeID(section)]
	if !ok {
		return fmt.Errorf("scope %q: unknown section %q", scope, section)
	}
	if layer != "" && !declared[param.NormalizeID(layer)] {
		return fmt.Errorf("scope %q: section %q has no layer %q", scope, section, layer)
	}
	return nil
}

// validateStep validates a single step based on its kind.
func validateStep(index int, s *Step) error {
	if s.Do == "" {
		return fmt.Errorf("steps[%d]: do is required", index)
	}

	switch s.Do {
	case StepRegister:
		if s.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for register", index)
		}
		if s.Section == "" || s.Layer == "" {
			return fmt.Errorf("steps[%d]: section and layer are required for register", index)
		}
	case StepUnregister, StepHoverEnd, StepFocus, StepBlur, StepClick:
		if s.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for %s", index, s.Do)
		}
	case StepHoverStart:
		if s.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for hover_start", index)
		}
		if s.Total < 0 {
			return fmt.Errorf("steps[%d]: total must be non-negative for hover_start", index)
		}
	case StepHome:
		if len(s.Params) == 0 {
			return fmt.Errorf("steps[%d]: params is required for home", index)
		}
		for name := range s.Params {
			if !param.Known(param.Name(name)) {
				return fmt.Errorf("steps[%d]: unknown parameter %q", index, name)
			}
		}
	case StepTrigger:
		if s.Trigger == "" {
			return fmt.Errorf("steps[%d]: trigger is required for trigger", index)
		}
	case StepTick:
		if !(s.Ms > 0) {
			return fmt.Errorf("steps[%d]: ms must be positive for tick", index)
		}
		if s.Repeat < 0 {
			return fmt.Errorf("steps[%d]: repeat must be non-negative for tick", index)
		}
	case StepCheckIdle:
		// No fields.
	default:
		return fmt.Errorf("steps[%d]: unknown step kind %q", index, s.Do)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, layers map[string]map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Tolerance < 0 {
		return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
	}

	switch a.Type {
	case AssertParamEq, AssertParamBetween:
		if a.Scope == "" {
			return fmt.Errorf("assertions[%d]: scope is required for %s", index, a.Type)
		}
		if err := validateScope(layers, a.Scope); err != nil {
			return fmt.Errorf("assertions[%d]: %v", index, err)
		}
		if a.Parameter == "" {
			return fmt.Errorf("assertions[%d]: parameter is required for %s", index, a.Type)
		}
		if !param.Known(param.Name(a.Parameter)) {
			return fmt.Errorf("assertions[%d]: unknown parameter %q", index, a.Parameter)
		}
		if a.Type == AssertParamBetween {
			if err := validateBounds(index, a); err != nil {
				return err
			}
		}
	case AssertConsciousBetween:
		if !consciousFields[a.Field] {
			return fmt.Errorf("assertions[%d]: field must be awareness, emergence, coherence, or flux", index)
		}
		if err := validateBounds(index, a); err != nil {
			return err
		}
	case AssertRevisionMin:
		if a.Revision <= 0 {
			return fmt.Errorf("assertions[%d]: revision must be positive for revision_min", index)
		}
	case AssertMemoryContains:
		if a.Entry == "" {
			return fmt.Errorf("assertions[%d]: entry is required for memory_contains", index)
		}
	case AssertAttentionEq:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for attention_eq", index)
		}
	case AssertIdleFired:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for idle_fired", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validateBounds(index int, a *Assertion) error {
	if a.Min == nil || a.Max == nil {
		return fmt.Errorf("assertions[%d]: min and max are required for %s", index, a.Type)
	}
	if *a.Min > *a.Max {
		return fmt.Errorf("assertions[%d]: min must not exceed max", index)
	}
	return nil
}
