package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [definition]",
		Short: "List recorded invocations, newest first",
		Long: `List invocation records for one definition, or for every definition of
the owner when none is named. Each record points at the stored result and
request details.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runHistory(opts, name, cmd)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum records to list (0 for all)")
	return cmd
}

func runHistory(opts *HistoryOptions, definition string, cmd *cobra.Command) error {
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}
	rt, err := openRuntime(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.store.Invocations(cmd.Context(), rt.cfg.Owner, definition, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read history", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No invocations recorded")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INVOKED\tDEFINITION\tRESULT\tREQUEST")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.InvokedAt.Format(time.RFC3339), r.DefinitionName, r.ResultAddress, r.RequestDetailsAddress)
	}
	return w.Flush()
}
