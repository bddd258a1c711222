package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Domusgpt/vib3code-0-sub002/internal/compiler"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled section and cascade tables.
type CompilationResult struct {
	Sections []param.SectionConfig `json:"sections"`
	Rules    []param.CascadeRule   `json:"rules"`
	Hash     string                `json:"hash"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	SectionCount int
	RuleCount    int
	TriggerCount int
	LayerCount   int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <tables-dir>",
		Short: "Compile CUE tables to canonical form",
		Long: `Compile CUE section and cascade declarations to canonical tables.

The compiler parses CUE files, resolves defaults, normalizes ids, and
outputs the canonical JSON form the engine is constructed from, along
with the table hash used for fingerprinting.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, tablesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadTables(tablesDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, tablesDir)

	// Log verbose output for each section/trigger
	for _, section := range loadResult.Tables.Sections {
		formatter.VerboseLog("Compiling section: %s", section.ID)
	}
	for _, trigger := range triggerOrder(loadResult.Tables.Rules) {
		formatter.VerboseLog("Compiling cascade: %s", trigger)
	}

	// Handle compilation errors
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	hash, err := loadResult.Tables.Hash()
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing tables: %v", err), nil)
	}

	// Build result
	result := &CompilationResult{
		Sections: loadResult.Tables.Sections,
		Rules:    loadResult.Tables.Rules,
		Hash:     hash,
	}

	// Calculate statistics
	stats := calculateStats(result)

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeTablesToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	// Output success
	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// triggerOrder returns distinct triggers in first-appearance order.
func triggerOrder(rules []param.CascadeRule) []string {
	seen := make(map[string]bool, len(rules))
	var order []string
	for _, rule := range rules {
		if !seen[rule.Trigger] {
			seen[rule.Trigger] = true
			order = append(order, rule.Trigger)
		}
	}
	return order
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{
		SectionCount: len(result.Sections),
		RuleCount:    len(result.Rules),
		TriggerCount: len(triggerOrder(result.Rules)),
	}

	for _, section := range result.Sections {
		stats.LayerCount += len(section.Layers)
	}

	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d section(s), %d rule(s)\n\n",
		stats.SectionCount, stats.RuleCount)

	if len(result.Sections) > 0 {
		fmt.Fprintln(formatter.Writer, "Sections:")
		for _, section := range result.Sections {
			layerCount := len(section.Layers)
			layerSuffix := "layers"
			if layerCount == 1 {
				layerSuffix = "layer"
			}
			fmt.Fprintf(formatter.Writer, "  %s: %d %s\n",
				section.ID, layerCount, layerSuffix)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if len(result.Rules) > 0 {
		counts := make(map[string]int, len(result.Rules))
		for _, rule := range result.Rules {
			counts[rule.Trigger]++
		}
		fmt.Fprintln(formatter.Writer, "Cascades:")
		for _, trigger := range triggerOrder(result.Rules) {
			fmt.Fprintf(formatter.Writer, "  %s: %d rule(s)\n", trigger, counts[trigger])
		}
		fmt.Fprintln(formatter.Writer)
	}

	fmt.Fprintf(formatter.Writer, "Tables hash: %s\n", result.Hash)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled tables to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		// JSON format - use CLIResponse with first error
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) && compileErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				compileErr.Pos.Filename(),
				compileErr.Pos.Line(),
				compileErr.Pos.Column())
		}
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := MapFieldToErrorCode(compileErr.Field)
		return code, compileErr.Message
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeTablesToFile writes the compilation result to a file in indented JSON.
func writeTablesToFile(result *CompilationResult, filename string) error {
	// Indented JSON for readability; the canonical compact form is
	// used only for hashing.
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tables: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
