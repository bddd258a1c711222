package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domusgpt/vib3code-0-sub002/internal/compiler"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

const validTablesCUE = `
package tables

section: "hero": {
	hue_shift:          0.07
	density_multiplier: 0.9
	layers: ["background", "content", "accent"]
}

section: "tech": {
	density_add: 0.1
	layers: ["background", "content"]
}

cascade: "cardHoverTarget": {
	rules: [
		{scope: "section", parameter: "density", relationship: {kind: "linear", intensity: 0.5}},
		{scope: "layer", parameter: "morph", relationship: {kind: "exponential", intensity: 0.3}},
	]
}

cascade: "realityInversion": {
	rules: [
		{scope: "global", parameter: "chaos", relationship: {kind: "linear", intensity: 0.8}},
	]
}
`

func writeTablesDir(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tables.cue"), []byte(src), 0644))
	return dir
}

func TestCompileValidTables(t *testing.T) {
	tablesDir := writeTablesDir(t, validTablesCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 2 section(s), 3 rule(s)")
	assert.Contains(t, output, "hero: 3 layers")
	assert.Contains(t, output, "tech: 2 layers")
	assert.Contains(t, output, "cardHoverTarget: 2 rule(s)")
	assert.Contains(t, output, "realityInversion: 1 rule(s)")
	assert.Contains(t, output, "Tables hash:")
}

func TestCompileValidTablesJSON(t *testing.T) {
	tablesDir := writeTablesDir(t, validTablesCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	dataMap, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	sections, ok := dataMap["sections"].([]interface{})
	require.True(t, ok)
	assert.Len(t, sections, 2)
	rules, ok := dataMap["rules"].([]interface{})
	require.True(t, ok)
	assert.Len(t, rules, 3)
	assert.NotEmpty(t, dataMap["hash"])
}

func TestCompileOutputToFile(t *testing.T) {
	tablesDir := writeTablesDir(t, validTablesCUE)

	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "compiled.json")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir, "--output", outputFile})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Wrote compiled tables to")

	// Verify file was written
	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	err = json.Unmarshal(data, &result)
	require.NoError(t, err)
	assert.Len(t, result.Sections, 2)
	assert.Len(t, result.Rules, 3)
	assert.NotEmpty(t, result.Hash)
}

func TestCompileHashMatchesTables(t *testing.T) {
	tablesDir := writeTablesDir(t, validTablesCUE)

	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "compiled.json")

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{tablesDir, "-o", outputFile})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))

	tables := &compiler.Tables{Sections: result.Sections, Rules: result.Rules}
	want, err := tables.Hash()
	require.NoError(t, err)
	assert.Equal(t, want, result.Hash)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, buf.String(), "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileEmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestCompileInvalidTables(t *testing.T) {
	// Rule names a parameter the vector does not carry
	tablesDir := writeTablesDir(t, `
package tables

section: "hero": {
	layers: ["background"]
}

cascade: "cardHoverTarget": {
	rules: [
		{scope: "section", parameter: "luminosity", relationship: {kind: "linear", intensity: 0.5}},
	]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation failed")
	assert.Contains(t, buf.String(), "Compilation failed")
	assert.Contains(t, buf.String(), "luminosity")
	assert.Contains(t, buf.String(), compiler.ErrUnknownParameter)
}

func TestCompileInvalidTablesJSON(t *testing.T) {
	tablesDir := writeTablesDir(t, `
package tables

section: "hero": {
	layers: ["background"]
}

cascade: "cardHoverTarget": {
	rules: [
		{scope: "section", parameter: "density", relationship: {kind: "polynomial", intensity: 0.5}},
	]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.Error(t, err)

	var resp CLIResponse
	jsonErr := json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, jsonErr)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrInvalidKind, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "polynomial")
}

func TestCompileCollectsAllErrors(t *testing.T) {
	// Two independently bad cascades surface together
	tablesDir := writeTablesDir(t, `
package tables

section: "hero": {
	layers: ["background"]
}

cascade: "first": {
	rules: [
		{scope: "warp", parameter: "density", relationship: {kind: "linear", intensity: 0.5}},
	]
}

cascade: "second": {
	rules: [
		{scope: "global", parameter: "brightness", relationship: {kind: "linear", intensity: 0.5}},
	]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 error(s)")
	assert.Contains(t, buf.String(), compiler.ErrInvalidScopeMode)
	assert.Contains(t, buf.String(), compiler.ErrUnknownParameter)
}

func TestCompileSectionsOnly(t *testing.T) {
	tablesDir := writeTablesDir(t, `
package tables

section: "hero": {
	hue_shift: 0.07
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 1 section(s), 0 rule(s)")
	// Absent layer list falls back to the default stack
	assert.Contains(t, output, "hero: 3 layers")
}

func TestCompileVerboseOutput(t *testing.T) {
	tablesDir := writeTablesDir(t, validTablesCUE)

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf) // Verbose output goes to stderr
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.NoError(t, err)

	// Verbose logs go to stderr to avoid corrupting JSON output
	verboseOutput := stderrBuf.String()
	assert.Contains(t, verboseOutput, "Found")
	assert.Contains(t, verboseOutput, "CUE file(s)")
	assert.Contains(t, verboseOutput, "Compiling section: hero")
	assert.Contains(t, verboseOutput, "Compiling cascade: cardHoverTarget")
}

func TestFindCUEFiles(t *testing.T) {
	tmpDir := t.TempDir()

	// Create nested directories with CUE files
	subDir := filepath.Join(tmpDir, "subdir")
	err := os.MkdirAll(subDir, 0755)
	require.NoError(t, err)

	// Create files
	err = os.WriteFile(filepath.Join(tmpDir, "root.cue"), []byte("package tables"), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(tmpDir, "notcue.txt"), []byte("not a cue file"), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(subDir, "nested.cue"), []byte("package tables"), 0644)
	require.NoError(t, err)

	files, err := FindCUEFiles(tmpDir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field    string
		expected string
	}{
		{"section", compiler.ErrSectionIDEmpty},               // E101
		{"layers", compiler.ErrLayerNameEmpty},                // E103
		{"cascade", compiler.ErrTriggerEmpty},                 // E110
		{"parameter", compiler.ErrUnknownParameter},           // E111
		{"relationship.kind", compiler.ErrInvalidKind},        // E112
		{"relationship.intensity", compiler.ErrIntensityNotFinite}, // E114
		{"scope", compiler.ErrInvalidScopeMode},               // E115
		{"hue_shift", compiler.ErrFieldNotFinite},             // E105
		{"glitch_bias", compiler.ErrFieldNotFinite},           // E105
		{"unknown", ErrCodeGeneric},                           // E001
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			code := MapFieldToErrorCode(tt.field)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestCalculateStats(t *testing.T) {
	result := &CompilationResult{
		Sections: []param.SectionConfig{
			{ID: "hero", Layers: []string{"background", "content", "accent"}},
			{ID: "tech", Layers: []string{"background"}},
		},
		Rules: []param.CascadeRule{
			{Trigger: "cardHoverTarget", Mode: param.ScopeSection},
			{Trigger: "cardHoverTarget", Mode: param.ScopeLayer},
			{Trigger: "idleFlux", Mode: param.ScopeGlobal},
		},
	}

	stats := calculateStats(result)

	assert.Equal(t, 2, stats.SectionCount)
	assert.Equal(t, 3, stats.RuleCount)
	assert.Equal(t, 2, stats.TriggerCount)
	assert.Equal(t, 4, stats.LayerCount)
}
