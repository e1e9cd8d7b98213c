package cli

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/waypath/internal/engine"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Method   string
	Data     string
	NoFollow bool
}

// ExecResult is the JSON payload of the exec command.
type ExecResult struct {
	Status      int    `json:"status"`
	Location    string `json:"location,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Address     string `json:"address,omitempty"`
	Body        string `json:"body,omitempty"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <path>",
		Short: "Dispatch one path and print the result",
		Long: `Dispatch a path through aliases, definitions and content exactly as the
server would, follow the resulting redirect and print the body.

Examples:
  waypath exec /hello/world
  waypath exec '/greet/Ada?greeting=Hi' --format json
  waypath exec /form --method POST --data 'a=1' --no-follow`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Method, "method", "X", http.MethodGet, "request method")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "request body")
	cmd.Flags().BoolVar(&opts.NoFollow, "no-follow", false, "print the redirect instead of following it")

	return cmd
}

func runExec(opts *ExecOptions, target string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if !engine.IsInternalPath(target) {
		return NewExitError(ExitCommandError, fmt.Sprintf("path must start with a single /: %s", target))
	}

	rt, err := openRuntime(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	path, query := engine.ParseTarget(target)
	req := engine.Request{
		Method: strings.ToUpper(opts.Method),
		Path:   path,
		Query:  query,
		Body:   []byte(opts.Data),
	}
	resp, err := rt.engine.Dispatch(cmd.Context(), rt.requestConfig(), req)
	if err == nil && resp.IsRedirect() && !opts.NoFollow && engine.IsInternalPath(resp.Location) {
		formatter.VerboseLog("following %s", resp.Location)
		path, query = engine.ParseTarget(resp.Location)
		resp, err = rt.engine.Dispatch(cmd.Context(), rt.requestConfig(), engine.Request{Method: http.MethodGet, Path: path, Query: query})
	}
	if err != nil {
		re := engine.AsRuntimeError(err)
		details := map[string]any{"status": engine.HTTPStatus(err), "code": string(re.Code)}
		if re.Reason != "" {
			details["reason"] = re.Reason
		}
		_ = formatter.Error(ErrCodeDispatch, err.Error(), details)
		return WrapExitError(ExitFailure, "dispatch failed", err)
	}

	result := ExecResult{
		Status:      resp.Status,
		Location:    resp.Location,
		ContentType: resp.ContentType,
		Address:     resp.Address,
		Body:        string(resp.Body),
	}
	if result.Status == 0 {
		result.Status = http.StatusOK
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	if resp.IsRedirect() {
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", result.Status, result.Location)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), result.Body)
	if !strings.HasSuffix(result.Body, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
