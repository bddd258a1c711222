package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Domusgpt/vib3code-0-sub002/internal/config"
	"github.com/Domusgpt/vib3code-0-sub002/internal/harness"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
	"github.com/Domusgpt/vib3code-0-sub002/internal/store"
	"github.com/Domusgpt/vib3code-0-sub002/vib3"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Tables string // external CUE tables directory (optional)
	Preset string // preset name used as the home state
	DB     string // preset database path
	Replay bool   // run twice and require byte-identical traces
}

// SimulationResult is the JSON payload for simulate output.
type SimulationResult struct {
	Scenario      string               `json:"scenario"`
	Pass          bool                 `json:"pass"`
	Steps         int                  `json:"steps"`
	IdleFired     int                  `json:"idle_fired"`
	Deterministic *bool                `json:"deterministic,omitempty"`
	Errors        []string             `json:"errors,omitempty"`
	Trace         []harness.TraceEvent `json:"trace"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions, cfg config.Config) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a single interaction scenario against the engine and print the
resulting trace and assertion outcomes.

By default the scenario's inline tables drive the engine. With --tables
the engine is built from a CUE tables directory instead; the scenario's
inline tables still define the scopes its assertions may address. With
--preset the home state is loaded from the preset database before the
first step runs.

Example:
  vib3 simulate testdata/scenarios/card_hover_journey.yaml
  vib3 simulate scenario.yaml --tables ./tables --replay
  vib3 simulate scenario.yaml --preset warm-start --db vib3.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, cfg, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tables, "tables", "", "CUE tables directory (replaces the scenario's inline tables)")
	cmd.Flags().StringVar(&opts.Preset, "preset", "", "preset name loaded as the home state")
	cmd.Flags().StringVar(&opts.DB, "db", cfg.DBPath, "path to the preset database")
	cmd.Flags().BoolVar(&opts.Replay, "replay", false, "run the scenario twice and require identical traces")

	return cmd
}

// engineDefaults maps the VIB3_* tunables onto engine options. They
// sit between the built-in defaults and each scenario's own settings:
// a scenario that names idle_threshold_ms or decay_tau_ms wins.
func engineDefaults(cfg config.Config) []vib3.Option {
	var opts []vib3.Option
	if cfg.IdleThresholdMs > 0 {
		opts = append(opts, vib3.WithIdleThreshold(cfg.IdleThresholdMs))
	}
	if cfg.DecayTauMs > 0 {
		opts = append(opts, vib3.WithDecayTau(cfg.DecayTauMs))
	}
	return opts
}

func runSimulate(opts *SimulateOptions, cfg config.Config, scenarioPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("loading scenario: %v", err), nil)
		return WrapExitError(ExitCommandError, "loading scenario", err)
	}
	slog.Debug("scenario loaded", "name", scenario.Name, "steps", len(scenario.Steps))

	if opts.Preset != "" {
		home, err := loadPresetHome(commandContext(cmd), opts.DB, opts.Preset)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("loading preset %q: %v", opts.Preset, err), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("loading preset %q", opts.Preset), err)
		}
		scenario.Home = home
		slog.Debug("home overridden from preset", "preset", opts.Preset)
	}

	defaults := engineDefaults(cfg)
	run := func() (*harness.Result, error) { return harness.Run(scenario, defaults...) }
	if opts.Tables != "" {
		loadResult, loadErrors := LoadTables(opts.Tables, LoadModeFailFast)
		if len(loadErrors) > 0 {
			code := ErrCodeGeneric
			var loadErr *LoadError
			if errors.As(loadErrors[0], &loadErr) {
				code = loadErr.Code
			}
			_ = formatter.Error(code, loadErrors[0].Error(), nil)
			return WrapExitError(ExitCommandError, "loading tables", loadErrors[0])
		}
		sections, rules := loadResult.Tables.Sections, loadResult.Tables.Rules
		slog.Debug("engine tables from CUE", "dir", opts.Tables, "sections", len(sections), "rules", len(rules))
		run = func() (*harness.Result, error) { return harness.RunWithTables(scenario, sections, rules, defaults...) }
	}

	result, err := run()
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("running scenario: %v", err), nil)
		return WrapExitError(ExitCommandError, "running scenario", err)
	}

	simResult := SimulationResult{
		Scenario:  scenario.Name,
		Pass:      result.Pass,
		Steps:     len(result.Trace),
		IdleFired: result.IdleFired,
		Errors:    result.Errors,
		Trace:     result.Trace,
	}

	if opts.Replay {
		second, err := run()
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("replaying scenario: %v", err), nil)
			return WrapExitError(ExitCommandError, "replaying scenario", err)
		}
		deterministic, err := tracesEqual(scenario, result, second)
		if err != nil {
			return WrapExitError(ExitCommandError, "comparing traces", err)
		}
		simResult.Deterministic = &deterministic
	}

	if opts.Format == "json" {
		if err := formatter.Success(simResult); err != nil {
			return err
		}
		return simulateExitError(simResult)
	}

	outputSimulationText(formatter.Writer, simResult, opts.Verbose)
	return simulateExitError(simResult)
}

// simulateExitError maps the simulation outcome to the process exit code.
func simulateExitError(result SimulationResult) error {
	if result.Deterministic != nil && !*result.Deterministic {
		return NewExitError(ExitFailure, "trace diverged between runs")
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

// tracesEqual compares two runs through their canonical byte form.
func tracesEqual(scenario *harness.Scenario, first, second *harness.Result) (bool, error) {
	a, err := (&harness.TraceSnapshot{
		ScenarioName: scenario.Name,
		Token:        scenario.Token,
		Trace:        first.Trace,
	}).MarshalCanonical()
	if err != nil {
		return false, err
	}
	b, err := (&harness.TraceSnapshot{
		ScenarioName: scenario.Name,
		Token:        scenario.Token,
		Trace:        second.Trace,
	}).MarshalCanonical()
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

// loadPresetHome loads a preset's vector as a scenario home override.
func loadPresetHome(ctx context.Context, dbPath, name string) (map[string]float64, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	preset, err := st.LoadPreset(ctx, name)
	if err != nil {
		return nil, err
	}

	home := make(map[string]float64, len(param.Names))
	for _, n := range param.Names {
		home[string(n)] = preset.Params.Get(n)
	}
	return home, nil
}

// commandContext returns the command's context, or a background one for
// commands constructed outside Execute (tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// outputSimulationText prints the human-readable trace and outcome.
func outputSimulationText(w io.Writer, result SimulationResult, verbose bool) {
	fmt.Fprintf(w, "Scenario: %s\n", result.Scenario)
	fmt.Fprintf(w, "Status: %s\n", passStatus(result.Pass))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Trace) == 0 {
		fmt.Fprintln(w, "  (no steps)")
	} else {
		for _, event := range result.Trace {
			idleMark := ""
			if event.IdleFired != nil && *event.IdleFired {
				idleMark = " idle!"
			}
			fmt.Fprintf(w, "  [%d] %s rev=%d mind=%d%s\n",
				event.Step, event.Kind, event.Revision, event.MindRevision, idleMark)
			if verbose {
				fmt.Fprintf(w, "       awareness=%.4f emergence=%.4f coherence=%.4f flux=%.4f\n",
					event.Mind.Awareness, event.Mind.Emergence, event.Mind.Coherence, event.Mind.Flux)
			}
		}
	}
	fmt.Fprintln(w)

	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "=== Failures ===")
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  %s\n", msg)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Steps:      %d\n", result.Steps)
	fmt.Fprintf(w, "  Idle Fired: %d\n", result.IdleFired)
	if result.Deterministic != nil {
		fmt.Fprintf(w, "  Replay:     %s\n", deterministicStatus(*result.Deterministic))
	}
}

func passStatus(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func deterministicStatus(deterministic bool) string {
	if deterministic {
		return "deterministic"
	}
	return "DIVERGED"
}
