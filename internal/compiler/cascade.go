package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"cuelang.org/go/cue"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// Scope pin patterns: section("home") and layer("home","background").
// The layer form accepts an empty section to pin the layer type alone.
var (
	sectionPinPattern = regexp.MustCompile(`^section\("([^"]+)"\)$`)
	layerPinPattern   = regexp.MustCompile(`^layer\("([^"]*)"\s*,\s*"([^"]+)"\)$`)
)

// CompileCascade parses a CUE value into the cascade's rules.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the cascade struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`cascade: "cardHoverTarget": { rules: [...] }`)
//	rules, err := CompileCascade(v.LookupPath(cue.ParsePath(`cascade."cardHoverTarget"`)))
//
// Every rule carries the cascade's trigger name. Custom relationship
// kinds are rejected: curves attach through the Go API, never through
// tables.
func CompileCascade(v cue.Value) ([]param.CascadeRule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	// Parse trigger name from struct label
	// e.g., `cascade: "cardHoverTarget": { ... }` → trigger is "cardHoverTarget"
	var trigger string
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		trigger = strings.Trim(labels[len(labels)-1].String(), `"`)
	}
	trigger = param.NormalizeID(trigger)
	if trigger == "" {
		return nil, &CompileError{
			Field:   "cascade",
			Message: "cascade trigger must be non-empty",
			Pos:     v.Pos(),
		}
	}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, &CompileError{
			Field:   "rules",
			Message: "cascade requires a rules list",
			Pos:     v.Pos(),
		}
	}

	iter, err := rulesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []param.CascadeRule
	for iter.Next() {
		rule, err := compileRule(trigger, iter.Value())
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if len(rules) == 0 {
		return nil, &CompileError{
			Field:   "rules",
			Message: "cascade requires at least one rule",
			Pos:     rulesVal.Pos(),
		}
	}

	return rules, nil
}

// compileRule parses a single rule entry.
func compileRule(trigger string, v cue.Value) (param.CascadeRule, error) {
	rule := param.CascadeRule{Trigger: trigger}

	// Parse scope (required)
	mode, section, layer, err := parseRuleScope(v)
	if err != nil {
		return rule, err
	}
	rule.Mode, rule.Section, rule.Layer = mode, section, layer

	// Parse parameter (required, must name a known field)
	paramVal := v.LookupPath(cue.ParsePath("parameter"))
	if !paramVal.Exists() {
		return rule, &CompileError{
			Field:   "parameter",
			Message: "rule requires a parameter",
			Pos:     v.Pos(),
		}
	}
	name, err := paramVal.String()
	if err != nil {
		return rule, formatCUEError(err)
	}
	rule.Parameter = param.Name(name)
	if !param.Known(rule.Parameter) {
		return rule, &CompileError{
			Field:   "parameter",
			Message: fmt.Sprintf("unknown parameter %q", name),
			Pos:     paramVal.Pos(),
		}
	}

	// Parse relationship (required)
	relVal := v.LookupPath(cue.ParsePath("relationship"))
	if !relVal.Exists() {
		return rule, &CompileError{
			Field:   "relationship",
			Message: "rule requires a relationship",
			Pos:     v.Pos(),
		}
	}

	kindVal := relVal.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return rule, &CompileError{
			Field:   "relationship.kind",
			Message: "relationship requires a kind",
			Pos:     relVal.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return rule, formatCUEError(err)
	}
	if param.RelationshipKind(kind) == param.KindCustom {
		return rule, &CompileError{
			Field:   "relationship.kind",
			Message: "custom curves cannot be declared in tables, attach them through the Go API",
			Pos:     kindVal.Pos(),
		}
	}
	if !param.ValidKinds[param.RelationshipKind(kind)] {
		return rule, &CompileError{
			Field:   "relationship.kind",
			Message: fmt.Sprintf("invalid relationship kind %q, must be \"linear\", \"inverse\", \"exponential\", or \"logarithmic\"", kind),
			Pos:     kindVal.Pos(),
		}
	}
	rule.Relationship.Kind = param.RelationshipKind(kind)

	intensityVal := relVal.LookupPath(cue.ParsePath("intensity"))
	if !intensityVal.Exists() {
		return rule, &CompileError{
			Field:   "relationship.intensity",
			Message: "relationship requires an intensity",
			Pos:     relVal.Pos(),
		}
	}
	intensity, err := intensityVal.Float64()
	if err != nil {
		return rule, &CompileError{
			Field:   "relationship.intensity",
			Message: "intensity must be a number",
			Pos:     intensityVal.Pos(),
		}
	}
	rule.Relationship.Intensity = intensity

	return rule, nil
}

// parseRuleScope extracts and validates the scope string.
func parseRuleScope(v cue.Value) (param.ScopeMode, string, string, error) {
	scopeVal := v.LookupPath(cue.ParsePath("scope"))
	if !scopeVal.Exists() {
		return "", "", "", &CompileError{
			Field:   "scope",
			Message: "rule requires a scope",
			Pos:     v.Pos(),
		}
	}

	scopeStr, err := scopeVal.String()
	if err != nil {
		return "", "", "", formatCUEError(err)
	}

	// Check for pinned forms: section("id"), layer("section","layer")
	if matches := sectionPinPattern.FindStringSubmatch(scopeStr); matches != nil {
		return param.ScopeSection, param.NormalizeID(matches[1]), "", nil
	}
	if matches := layerPinPattern.FindStringSubmatch(scopeStr); matches != nil {
		return param.ScopeLayer, param.NormalizeID(matches[1]), param.NormalizeID(matches[2]), nil
	}

	// Check for bare modes: global, section, layer (resolved from the
	// trigger context at fire time)
	mode := param.ScopeMode(scopeStr)
	if !param.ValidScopeModes[mode] {
		return "", "", "", &CompileError{
			Field:   "scope",
			Message: fmt.Sprintf("invalid scope %q, must be \"global\", \"section\", \"layer\", section(\"<id>\"), or layer(\"<section>\",\"<layer>\")", scopeStr),
			Pos:     scopeVal.Pos(),
		}
	}

	return mode, "", "", nil
}
