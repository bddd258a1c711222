package compiler

import (
	"fmt"
	"math"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// LintWarning represents a suspicious but legal table construct.
//
// Findings are warnings, not errors, because they may be intentional:
//   - Saturating triggers used as deliberate hard slams (reality inversion)
//   - Split rules tuned independently before consolidation
//   - Zero-intensity rules parked during tuning
type LintWarning struct {
	Trigger   string `json:"trigger"`
	Parameter string `json:"parameter,omitempty"`
	Message   string `json:"message"`
	Level     string `json:"level"` // "warning" or "info"
}

// Worst-case evaluator gain per kind for |source| ≤ 1. Inverse sees
// |1-v| up to 2; logarithmic sees |ln(0.01)|·0.5 at the clamp floor.
var worstGains = map[param.RelationshipKind]float64{
	param.KindLinear:      1,
	param.KindInverse:     2,
	param.KindExponential: 1,
	param.KindLogarithmic: math.Log(100) / 2,
}

// AnalyzeTables performs static analysis on compiled tables.
//
// Checks:
//  1. Trigger saturation: one full-strength firing can push a clamped
//     parameter across its whole declared range (warning). Cyclic and
//     open-ended parameters never saturate and are skipped.
//  2. Additive merges: two rules of one trigger addressing the same
//     scope and parameter fold into a single delta (info).
//  3. Dead rules: zero intensity never survives delta pruning (info).
//
// Clean tables return an empty warning list.
func AnalyzeTables(t *Tables) []LintWarning {
	if len(t.Rules) == 0 {
		return []LintWarning{}
	}

	var warnings []LintWarning
	warnings = append(warnings, saturationWarnings(t.Rules)...)
	warnings = append(warnings, mergeWarnings(t.Rules)...)
	warnings = append(warnings, deadRuleWarnings(t.Rules)...)
	return warnings
}

// satKey groups rules whose deltas can stack on one surface.
type satKey struct {
	trigger   string
	parameter param.Name
}

// saturationWarnings sums worst-case magnitudes per trigger and
// parameter, in first-appearance order for stable output.
func saturationWarnings(rules []param.CascadeRule) []LintWarning {
	totals := make(map[satKey]float64)
	var order []satKey

	for _, r := range rules {
		rng, ok := param.RangeOf(r.Parameter)
		if !ok || rng.Cyclic || rng.Open {
			continue
		}
		key := satKey{trigger: param.NormalizeID(r.Trigger), parameter: r.Parameter}
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		totals[key] += worstGains[r.Relationship.Kind] * math.Abs(r.Relationship.Intensity)
	}

	var warnings []LintWarning
	for _, key := range order {
		rng, _ := param.RangeOf(key.parameter)
		span := rng.Max - rng.Min
		if total := totals[key]; total > span {
			warnings = append(warnings, LintWarning{
				Trigger:   key.trigger,
				Parameter: string(key.parameter),
				Message: fmt.Sprintf(
					"one full-strength %s firing can move %s by up to %.2f, covering its whole [%g, %g] range",
					key.trigger, key.parameter, total, rng.Min, rng.Max),
				Level: "warning",
			})
		}
	}
	return warnings
}

// mergeKey identifies the exact delta slot a rule writes.
type mergeKey struct {
	trigger   string
	mode      param.ScopeMode
	section   string
	layer     string
	parameter param.Name
}

// mergeWarnings flags rules that write the same delta slot. Their
// values merge additively at fire time, which is usually one rule
// split in two by accident.
func mergeWarnings(rules []param.CascadeRule) []LintWarning {
	firstIndex := make(map[mergeKey]int)
	var warnings []LintWarning

	for i, r := range rules {
		key := mergeKey{
			trigger:   param.NormalizeID(r.Trigger),
			mode:      r.Mode,
			section:   param.NormalizeID(r.Section),
			layer:     param.NormalizeID(r.Layer),
			parameter: r.Parameter,
		}
		if j, seen := firstIndex[key]; seen {
			warnings = append(warnings, LintWarning{
				Trigger:   key.trigger,
				Parameter: string(key.parameter),
				Message: fmt.Sprintf(
					"rules %d and %d of trigger %q merge additively on %s, consider a single rule",
					j, i, key.trigger, key.parameter),
				Level: "info",
			})
			continue
		}
		firstIndex[key] = i
	}
	return warnings
}

// deadRuleWarnings flags rules whose output is pruned before it is
// ever visible.
func deadRuleWarnings(rules []param.CascadeRule) []LintWarning {
	var warnings []LintWarning
	for i, r := range rules {
		if r.Relationship.Intensity == 0 {
			warnings = append(warnings, LintWarning{
				Trigger:   param.NormalizeID(r.Trigger),
				Parameter: string(r.Parameter),
				Message:   fmt.Sprintf("rule %d of trigger %q has zero intensity and can never produce a visible delta", i, r.Trigger),
				Level:     "info",
			})
		}
	}
	return warnings
}
