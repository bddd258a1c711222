package compiler

import (
	"strings"

	"cuelang.org/go/cue"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// CompileSection parses a CUE value into a SectionConfig.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the section struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`section: "hero": {hue_shift: 0.07}`)
//	cfg, err := CompileSection(v.LookupPath(cue.ParsePath(`section."hero"`)))
//
// Absent multipliers default to 1, absent shifts and adds to 0, and an
// absent layer list to the standard background/content/accent stack.
func CompileSection(v cue.Value) (*param.SectionConfig, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	// Parse section id from struct label (the path selector)
	var id string
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		// The id may be quoted in CUE, extract it
		id = strings.Trim(labels[len(labels)-1].String(), `"`)
	}
	id = param.NormalizeID(id)
	if id == "" {
		return nil, &CompileError{
			Field:   "section",
			Message: "section id must be non-empty",
			Pos:     v.Pos(),
		}
	}

	cfg := param.DefaultSection(id)

	numericFields := []struct {
		path string
		dst  *float64
	}{
		{"hue_shift", &cfg.HueShift},
		{"density_multiplier", &cfg.DensityMultiplier},
		{"density_add", &cfg.DensityAdd},
		{"morph_multiplier", &cfg.MorphMultiplier},
		{"morph_add", &cfg.MorphAdd},
		{"chaos_multiplier", &cfg.ChaosMultiplier},
		{"chaos_add", &cfg.ChaosAdd},
		{"glitch_bias", &cfg.GlitchBias},
	}
	for _, f := range numericFields {
		if err := lookupNumber(v, f.path, f.dst); err != nil {
			return nil, err
		}
	}

	layers, err := parseLayers(v)
	if err != nil {
		return nil, err
	}
	if layers != nil {
		cfg.Layers = layers
	}

	return &cfg, nil
}

// lookupNumber reads an optional numeric field into dst, leaving the
// default in place when the field is absent.
func lookupNumber(v cue.Value, path string, dst *float64) error {
	fieldVal := v.LookupPath(cue.ParsePath(path))
	if !fieldVal.Exists() {
		return nil
	}
	f, err := fieldVal.Float64()
	if err != nil {
		return &CompileError{
			Field:   path,
			Message: "must be a number",
			Pos:     fieldVal.Pos(),
		}
	}
	*dst = f
	return nil
}

// parseLayers extracts the declared layer list. Returns nil when the
// field is absent so the caller keeps the default stack.
func parseLayers(v cue.Value) ([]string, error) {
	layersVal := v.LookupPath(cue.ParsePath("layers"))
	if !layersVal.Exists() {
		return nil, nil
	}

	iter, err := layersVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "layers",
			Message: "layers must be a list of layer names",
			Pos:     layersVal.Pos(),
		}
	}

	var layers []string
	for iter.Next() {
		layer, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "layers",
				Message: "layer names must be strings",
				Pos:     iter.Value().Pos(),
			}
		}
		layers = append(layers, param.NormalizeID(layer))
	}

	if len(layers) == 0 {
		return nil, &CompileError{
			Field:   "layers",
			Message: "layers list must not be empty, omit it to use the default stack",
			Pos:     layersVal.Pos(),
		}
	}

	return layers, nil
}
