package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

func compileCascadeString(t *testing.T, src, path string) ([]param.CascadeRule, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileCascade(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileCascadeBasic(t *testing.T) {
	rules, err := compileCascadeString(t, `
		cascade: "cardHoverTarget": {
			rules: [
				{
					scope:     "layer"
					parameter: "density"
					relationship: {kind: "linear", intensity: 0.25}
				},
				{
					scope:     "layer"
					parameter: "chaos"
					relationship: {kind: "exponential", intensity: 0.15}
				},
			]
		}
	`, `cascade."cardHoverTarget"`)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "cardHoverTarget", rules[0].Trigger)
	assert.Equal(t, param.ScopeLayer, rules[0].Mode)
	assert.Empty(t, rules[0].Section)
	assert.Empty(t, rules[0].Layer)
	assert.Equal(t, param.Density, rules[0].Parameter)
	assert.Equal(t, param.KindLinear, rules[0].Relationship.Kind)
	assert.Equal(t, 0.25, rules[0].Relationship.Intensity)

	assert.Equal(t, "cardHoverTarget", rules[1].Trigger)
	assert.Equal(t, param.KindExponential, rules[1].Relationship.Kind)
}

func TestCompileCascadeScopeForms(t *testing.T) {
	tests := []struct {
		name        string
		scope       string
		wantMode    param.ScopeMode
		wantSection string
		wantLayer   string
	}{
		{"bare global", `"global"`, param.ScopeGlobal, "", ""},
		{"bare section", `"section"`, param.ScopeSection, "", ""},
		{"bare layer", `"layer"`, param.ScopeLayer, "", ""},
		{"pinned section", `"section(\"home\")"`, param.ScopeSection, "home", ""},
		{"pinned section and layer", `"layer(\"home\",\"background\")"`, param.ScopeLayer, "home", "background"},
		{"pinned layer only", `"layer(\"\",\"background\")"`, param.ScopeLayer, "", "background"},
		{"pinned layer with spaces", `"layer(\"home\", \"background\")"`, param.ScopeLayer, "home", "background"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rules, err := compileCascadeString(t, `
				cascade: "idleFlux": {
					rules: [
						{
							scope:     `+tc.scope+`
							parameter: "morph"
							relationship: {kind: "linear", intensity: 0.3}
						},
					]
				}
			`, `cascade."idleFlux"`)
			require.NoError(t, err)
			require.Len(t, rules, 1)

			assert.Equal(t, tc.wantMode, rules[0].Mode)
			assert.Equal(t, tc.wantSection, rules[0].Section)
			assert.Equal(t, tc.wantLayer, rules[0].Layer)
		})
	}
}

func TestCompileCascadeRejectsInvalidScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
	}{
		{"unknown mode", `"cosmic"`},
		{"empty pinned section", `"section(\"\")"`},
		{"layer pin missing layer", `"layer(\"home\",\"\")"`},
		{"layer pin single argument", `"layer(\"background\")"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compileCascadeString(t, `
				cascade: "idleFlux": {
					rules: [
						{
							scope:     `+tc.scope+`
							parameter: "morph"
							relationship: {kind: "linear", intensity: 0.3}
						},
					]
				}
			`, `cascade."idleFlux"`)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "scope")
		})
	}
}

func TestCompileCascadeRejectsCustomKind(t *testing.T) {
	_, err := compileCascadeString(t, `
		cascade: "cardFocus": {
			rules: [
				{
					scope:     "global"
					parameter: "glitch"
					relationship: {kind: "custom", intensity: 1.0}
				},
			]
		}
	`, `cascade."cardFocus"`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom")
	assert.Contains(t, err.Error(), "Go API")
}

func TestCompileCascadeRejectsUnknownKind(t *testing.T) {
	_, err := compileCascadeString(t, `
		cascade: "cardFocus": {
			rules: [
				{
					scope:     "global"
					parameter: "glitch"
					relationship: {kind: "quadratic", intensity: 1.0}
				},
			]
		}
	`, `cascade."cardFocus"`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quadratic")
	assert.Contains(t, err.Error(), "linear")
}

func TestCompileCascadeRejectsUnknownParameter(t *testing.T) {
	_, err := compileCascadeString(t, `
		cascade: "cardFocus": {
			rules: [
				{
					scope:     "global"
					parameter: "sparkle"
					relationship: {kind: "linear", intensity: 1.0}
				},
			]
		}
	`, `cascade."cardFocus"`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parameter")
	assert.Contains(t, err.Error(), "sparkle")
}

func TestCompileCascadeRequiresRelationshipFields(t *testing.T) {
	tests := []struct {
		name string
		rule string
		want string
	}{
		{
			name: "missing scope",
			rule: `{parameter: "morph", relationship: {kind: "linear", intensity: 1.0}}`,
			want: "scope",
		},
		{
			name: "missing parameter",
			rule: `{scope: "global", relationship: {kind: "linear", intensity: 1.0}}`,
			want: "parameter",
		},
		{
			name: "missing relationship",
			rule: `{scope: "global", parameter: "morph"}`,
			want: "relationship",
		},
		{
			name: "missing kind",
			rule: `{scope: "global", parameter: "morph", relationship: {intensity: 1.0}}`,
			want: "kind",
		},
		{
			name: "missing intensity",
			rule: `{scope: "global", parameter: "morph", relationship: {kind: "linear"}}`,
			want: "intensity",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compileCascadeString(t, `
				cascade: "cardFocus": {
					rules: [`+tc.rule+`]
				}
			`, `cascade."cardFocus"`)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCompileCascadeRequiresRules(t *testing.T) {
	_, err := compileCascadeString(t, `
		cascade: "cardFocus": {}
	`, `cascade."cardFocus"`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules")
}

func TestCompileCascadeRejectsEmptyRulesList(t *testing.T) {
	_, err := compileCascadeString(t, `
		cascade: "cardFocus": {rules: []}
	`, `cascade."cardFocus"`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one rule")
}
