package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Domusgpt/vib3code-0-sub002/internal/config"
	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
	"github.com/Domusgpt/vib3code-0-sub002/internal/store"
)

// PresetOptions holds flags shared by the preset subcommands.
type PresetOptions struct {
	*RootOptions
	DB string // preset database path
}

// PresetView is the JSON shape of a stored preset.
type PresetView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Params    param.Vector `json:"params"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
}

func presetView(p store.Preset) PresetView {
	return PresetView{
		ID:        p.ID,
		Name:      p.Name,
		Params:    p.Params,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

// NewPresetCommand creates the preset command group.
func NewPresetCommand(rootOpts *RootOptions, cfg config.Config) *cobra.Command {
	opts := &PresetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage stored home parameter presets",
		Long: `Manage the preset library: named home parameter vectors stored in
SQLite. Presets seed the home state of a simulation via
"simulate --preset".

Examples:
  vib3 preset save warm-start --file params.yaml
  vib3 preset list
  vib3 preset show warm-start
  vib3 preset delete warm-start`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", cfg.DBPath, "path to the preset database")

	cmd.AddCommand(newPresetSaveCommand(opts))
	cmd.AddCommand(newPresetListCommand(opts))
	cmd.AddCommand(newPresetShowCommand(opts))
	cmd.AddCommand(newPresetDeleteCommand(opts))

	return cmd
}

func newPresetSaveCommand(opts *PresetOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a preset from a parameter file",
		Long: `Save a named preset. The parameter file is a YAML map of parameter
names to values; unset parameters keep their home defaults. Saving an
existing name replaces its vector and keeps its id.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPresetSave(opts, args[0], file, cmd)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML parameter file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runPresetSave(opts *PresetOptions, name, file string, cmd *cobra.Command) error {
	formatter := presetFormatter(opts, cmd)

	vec, err := readParamsFile(file)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading parameter file", err)
	}

	st, err := openPresetStore(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	preset, err := st.SavePreset(commandContext(cmd), name, vec)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("saving preset: %v", err), nil)
		return WrapExitError(ExitCommandError, "saving preset", err)
	}

	if opts.Format == "json" {
		return formatter.Success(presetView(preset))
	}

	fmt.Fprintf(formatter.Writer, "✓ Saved preset %q (id %s)\n", preset.Name, preset.ID)
	printVector(formatter.Writer, preset.Params)
	return nil
}

// readParamsFile parses a YAML parameter map and merges it over the
// default home vector. Unknown parameter names are rejected.
func readParamsFile(file string) (param.Vector, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return param.Vector{}, fmt.Errorf("reading %s: %w", file, err)
	}

	raw := map[string]float64{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return param.Vector{}, fmt.Errorf("parsing %s: %w", file, err)
	}

	partial := make(param.Partial, len(raw))
	for name, value := range raw {
		partial[param.Name(name)] = value
	}

	vec := param.DefaultHome()
	if unknown := partial.Apply(&vec); unknown != "" {
		return param.Vector{}, fmt.Errorf("unknown parameter %q in %s", unknown, file)
	}
	return vec, nil
}

func newPresetListCommand(opts *PresetOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored presets",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPresetList(opts, cmd)
		},
	}
}

func runPresetList(opts *PresetOptions, cmd *cobra.Command) error {
	formatter := presetFormatter(opts, cmd)

	st, err := openPresetStore(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	presets, err := st.ListPresets(commandContext(cmd))
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("listing presets: %v", err), nil)
		return WrapExitError(ExitCommandError, "listing presets", err)
	}

	if opts.Format == "json" {
		views := make([]PresetView, len(presets))
		for i, p := range presets {
			views[i] = presetView(p)
		}
		return formatter.Success(views)
	}

	if len(presets) == 0 {
		fmt.Fprintln(formatter.Writer, "No presets stored.")
		return nil
	}

	for _, p := range presets {
		fmt.Fprintf(formatter.Writer, "  %-24s updated %s\n", p.Name, p.UpdatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(formatter.Writer, "%d preset(s)\n", len(presets))
	return nil
}

func newPresetShowCommand(opts *PresetOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <name>",
		Short:         "Show one preset's vector",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPresetShow(opts, args[0], cmd)
		},
	}
}

func runPresetShow(opts *PresetOptions, name string, cmd *cobra.Command) error {
	formatter := presetFormatter(opts, cmd)

	st, err := openPresetStore(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	preset, err := st.LoadPreset(commandContext(cmd), name)
	if err != nil {
		code := ErrCodeGeneric
		if errors.Is(err, store.ErrPresetNotFound) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading preset", err)
	}

	if opts.Format == "json" {
		return formatter.Success(presetView(preset))
	}

	fmt.Fprintf(formatter.Writer, "Preset: %s\n", preset.Name)
	fmt.Fprintf(formatter.Writer, "ID: %s\n", preset.ID)
	fmt.Fprintf(formatter.Writer, "Created: %s\n", preset.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(formatter.Writer, "Updated: %s\n", preset.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintln(formatter.Writer)
	printVector(formatter.Writer, preset.Params)
	return nil
}

func newPresetDeleteCommand(opts *PresetOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a preset",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPresetDelete(opts, args[0], cmd)
		},
	}
}

func runPresetDelete(opts *PresetOptions, name string, cmd *cobra.Command) error {
	formatter := presetFormatter(opts, cmd)

	st, err := openPresetStore(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeletePreset(commandContext(cmd), name); err != nil {
		code := ErrCodeGeneric
		if errors.Is(err, store.ErrPresetNotFound) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "deleting preset", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]string{"deleted": name})
	}

	fmt.Fprintf(formatter.Writer, "✓ Deleted preset %q\n", name)
	return nil
}

// openPresetStore opens the preset database, wrapping failures as
// command errors.
func openPresetStore(dbPath string) (*store.Store, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening database", err)
	}
	return st, nil
}

func presetFormatter(opts *PresetOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// printVector writes the vector one parameter per line in canonical
// field order.
func printVector(w io.Writer, vec param.Vector) {
	for _, name := range param.Names {
		fmt.Fprintf(w, "  %-22s %g\n", name, vec.Get(name))
	}
}
