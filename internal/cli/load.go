package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/waypath/internal/workspace"
)

// LoadResult is the JSON payload of the load command.
type LoadResult struct {
	File    string            `json:"file"`
	Owner   string            `json:"owner"`
	Summary workspace.Summary `json:"summary"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <workspace-file>",
		Short: "Validate a workspace file and write it to the database",
		Long: `Load definitions, aliases, variables, secrets and gateways from a
workspace file (.cue, .yaml, .yml or .json). The file is validated first
and nothing is written when it is invalid.

Examples:
  waypath load ./site.cue
  waypath load ./site.yaml --owner alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runLoad(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	ws, err := workspace.LoadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalid, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load workspace", err)
	}
	if errs := workspace.Validate(ws); len(errs) > 0 {
		return reportInvalid(formatter, path, errs)
	}

	rt, err := openRuntime(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	owner := rt.cfg.Owner
	if ws.Owner != "" && opts.Owner == "" {
		owner = ws.Owner
	}
	formatter.VerboseLog("Applying %s for owner %s", path, owner)

	sum, err := workspace.Apply(cmd.Context(), ws, owner, rt.store, rt.content)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to apply workspace", err)
	}

	if opts.Format == "json" {
		return formatter.Success(LoadResult{File: path, Owner: owner, Summary: sum})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s for %s: %d definitions, %d aliases, %d variables, %d secrets, %d gateways\n",
		path, owner, sum.Definitions, sum.Aliases, sum.Variables, sum.Secrets, sum.Gateways)
	return nil
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workspace-file>",
		Short: "Check a workspace file without writing it",
		Long: `Parse a workspace file and report every problem found: schema errors,
duplicate names, script syntax errors, invalid patterns and gateway config
errors.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	ws, err := workspace.LoadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalid, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to load workspace", err)
	}
	if errs := workspace.Validate(ws); len(errs) > 0 {
		return reportInvalid(formatter, path, errs)
	}

	return formatter.Success(map[string]any{"file": path, "valid": true})
}

func reportInvalid(formatter *OutputFormatter, path string, errs []workspace.ValidationError) error {
	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeInvalid, fmt.Sprintf("%s has %d errors", path, len(errs)), errs)
	} else {
		fmt.Fprintf(formatter.Writer, "%s has %d errors:\n", path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
		}
	}
	return NewExitError(ExitFailure, "workspace is invalid")
}
