package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domusgpt/vib3code-0-sub002/internal/compiler"
)

func TestValidateCleanTables(t *testing.T) {
	tablesDir := writeTablesDir(t, validTablesCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ All tables valid")
}

func TestValidateWarningsDoNotFail(t *testing.T) {
	// Saturating trigger (warning) plus a zero-intensity rule (info);
	// both are legal tables
	tablesDir := writeTablesDir(t, `
package tables

section: "hero": {
	layers: ["background"]
}

cascade: "realityInversion": {
	rules: [
		{scope: "global", parameter: "density", relationship: {kind: "linear", intensity: 2.0}},
		{scope: "global", parameter: "glitch", relationship: {kind: "linear", intensity: 0.0}},
	]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ All tables valid")
	assert.Contains(t, output, "finding(s):")
	assert.Contains(t, output, "[warning] realityInversion/density")
	assert.Contains(t, output, "[info] realityInversion/glitch")
	assert.Contains(t, output, "zero intensity")
}

func TestValidateUnknownSectionPin(t *testing.T) {
	tablesDir := writeTablesDir(t, `
package tables

section: "hero": {
	layers: ["background"]
}

cascade: "cardFocus": {
	rules: [
		{scope: "section(\"missing\")", parameter: "density", relationship: {kind: "linear", intensity: 0.5}},
	]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Validation failed")
	assert.Contains(t, buf.String(), compiler.ErrUnknownSectionPin)
	assert.Contains(t, buf.String(), "missing")
}

func TestValidateDuplicateLayer(t *testing.T) {
	tablesDir := writeTablesDir(t, `
package tables

section: "hero": {
	layers: ["background", "background"]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), compiler.ErrDuplicateLayer)
}

func TestValidateCompileErrorsSurface(t *testing.T) {
	// A rule with a bad kind fails compilation; validate reports it as
	// a validation error rather than aborting
	tablesDir := writeTablesDir(t, `
package tables

section: "hero": {
	layers: ["background"]
}

cascade: "cardHoverTarget": {
	rules: [
		{scope: "global", parameter: "density", relationship: {kind: "cubic", intensity: 0.5}},
	]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Validation failed")
	assert.Contains(t, buf.String(), compiler.ErrInvalidKind)
	assert.Contains(t, buf.String(), "cubic")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
}

func TestValidateCleanTablesJSON(t *testing.T) {
	tablesDir := writeTablesDir(t, validTablesCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	dataMap, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, dataMap["valid"])
}

func TestValidateErrorsJSON(t *testing.T) {
	tablesDir := writeTablesDir(t, `
package tables

section: "hero": {
	layers: ["background"]
}

cascade: "cardFocus": {
	rules: [
		{scope: "layer(\"hero\",\"missing\")", parameter: "density", relationship: {kind: "linear", intensity: 0.5}},
	]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tablesDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownLayerPin, resp.Error.Code)

	dataMap, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, dataMap["valid"])
	errsList, ok := dataMap["errors"].([]interface{})
	require.True(t, ok)
	assert.Len(t, errsList, 1)
}
