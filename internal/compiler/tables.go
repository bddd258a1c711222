// Package compiler turns CUE table declarations into the section and
// cascade tables the engine is constructed from.
//
// A table file declares sections and cascades:
//
//	section: "hero": {
//		hue_shift:          0.07
//		density_multiplier: 0.9
//		layers: ["background", "content", "accent"]
//	}
//
//	cascade: "cardHoverTarget": {
//		rules: [
//			{scope: "layer", parameter: "density", relationship: {kind: "linear", intensity: 0.25}},
//		]
//	}
//
// Compilation is structural: it resolves defaults, normalizes ids, and
// rejects malformed declarations with positioned errors. Semantic
// checks across the whole table set live in Validate.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// Tables is the compiled form of a table set: section configs and
// cascade rules, both in declaration order. Declaration order is
// load-bearing: rules fire and sections derive in this order.
type Tables struct {
	Sections []param.SectionConfig `json:"sections"`
	Rules    []param.CascadeRule   `json:"rules"`
}

// Hash returns the canonical fingerprint of the compiled tables.
func (t *Tables) Hash() (string, error) {
	return param.TableHash(t.Sections, t.Rules)
}

// CompileTables parses a CUE value holding section and cascade
// declarations into Tables.
//
// The CUE value should be the root of the evaluated table set, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	tables, err := CompileTables(v)
//
// At least one section is required. Cascades are optional: a table set
// with no rules derives sections from home alone.
func CompileTables(v cue.Value) (*Tables, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tables := &Tables{}

	sectionsVal := v.LookupPath(cue.ParsePath("section"))
	if sectionsVal.Exists() {
		iter, err := sectionsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			cfg, err := CompileSection(iter.Value())
			if err != nil {
				return nil, err
			}
			tables.Sections = append(tables.Sections, *cfg)
		}
	}

	cascadesVal := v.LookupPath(cue.ParsePath("cascade"))
	if cascadesVal.Exists() {
		iter, err := cascadesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			rules, err := CompileCascade(iter.Value())
			if err != nil {
				return nil, err
			}
			tables.Rules = append(tables.Rules, rules...)
		}
	}

	if len(tables.Sections) == 0 {
		return nil, &CompileError{
			Field:   "section",
			Message: "at least one section is required",
			Pos:     v.Pos(),
		}
	}

	return tables, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
