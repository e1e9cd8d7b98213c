package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/waypath/internal/cas"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	ContentType string
}

// ContentInfo describes one stored object.
type ContentInfo struct {
	Address     string `json:"address"`
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <file|->",
		Short: "Store a file in the content store",
		Long: `Store a file (or stdin with "-") and print its content address.

The content type comes from --type, then the file extension, then sniffing.

Examples:
  waypath put ./transform.js
  echo hello | waypath put - --type text/plain`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.ContentType, "type", "t", "", "content type")
	return cmd
}

func runPut(opts *PutOptions, source string, cmd *cobra.Command) error {
	var (
		data []byte
		err  error
	)
	if source == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}

	ct := opts.ContentType
	if ct == "" && source != "-" {
		ct, _ = cas.ContentTypeFor(strings.TrimPrefix(filepath.Ext(source), "."))
	}
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	rt, err := openRuntime(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	addr, err := rt.content.Put(cmd.Context(), data, ct)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to store content", err)
	}
	info := ContentInfo{Address: addr, Path: cas.PathFor(addr, ct), ContentType: ct, Size: len(data)}
	if opts.Format == "json" {
		return opts.formatter(cmd).Success(info)
	}
	fmt.Fprintln(cmd.OutOrStdout(), info.Path)
	return nil
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <address-or-prefix>",
		Short: "Print a stored object",
		Long: `Print the bytes stored under an address. A unique prefix is accepted.
With --format json the object's metadata and text are printed instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runGet(opts *RootOptions, ref string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	rt, err := openRuntime(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	addr, _ := cas.SplitExtension(ref)
	if !cas.IsAddress(addr) {
		matches, err := rt.content.ListByPrefix(cmd.Context(), ref)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list content", err)
		}
		switch len(matches) {
		case 0:
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no content matches %q", ref), nil)
			return NewExitError(ExitFailure, "content not found")
		case 1:
			addr = matches[0]
		default:
			_ = formatter.Error(ErrCodeAmbiguous, fmt.Sprintf("%d objects match %q", len(matches), ref), matches)
			return NewExitError(ExitFailure, "ambiguous prefix")
		}
	}

	obj, err := rt.content.Get(cmd.Context(), addr)
	if errors.Is(err, cas.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no content at %s", addr), nil)
		return NewExitError(ExitFailure, "content not found")
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read content", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"address":      obj.Address,
			"path":         cas.PathFor(obj.Address, obj.ContentType),
			"content_type": obj.ContentType,
			"size":         len(obj.Data),
			"text":         string(obj.Data),
		})
	}
	_, err = cmd.OutOrStdout().Write(obj.Data)
	return err
}

// NewLsCommand creates the ls command.
func NewLsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ls <prefix>",
		Short:         "List content addresses starting with a prefix",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runLs(opts *RootOptions, prefix string, cmd *cobra.Command) error {
	rt, err := openRuntime(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	addrs, err := rt.content.ListByPrefix(cmd.Context(), prefix)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list content", err)
	}
	if opts.Format == "json" {
		return opts.formatter(cmd).Success(map[string]any{"prefix": prefix, "addresses": addrs})
	}
	for _, a := range addrs {
		fmt.Fprintln(cmd.OutOrStdout(), a)
	}
	return nil
}
