package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/waypath/internal/config"
	"github.com/roach88/waypath/internal/httpapi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr            string
	ShutdownTimeout time.Duration

	// ready, when set, receives the bound address once listening.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve definitions and content over HTTP",
		Long: `Start the HTTP server.

Dynamic paths execute definitions and redirect to the content address of
the result. Reserved routes live under /_/ (upload, metrics, healthz,
history).

Example:
  waypath serve --db ./waypath.db --addr :8080
  WAYPATH_RATE_LIMIT=20 waypath serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides WAYPATH_ADDR)")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			rt.logger.Error("error closing runtime", "error", closeErr)
		}
	}()

	addr := opts.Addr
	if addr == "" {
		addr = rt.cfg.Addr
	}

	server := httpapi.New(rt.engine,
		httpapi.WithOwner(rt.cfg.Owner),
		httpapi.WithLogger(rt.logger),
		httpapi.WithHistory(rt.store),
		httpapi.WithPinger(rt.store),
		httpapi.WithRateLimit(rt.cfg.RateLimit, rt.cfg.RateBurst),
	)
	httpServer := newHTTPServer(server.Handler(), rt.cfg)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to listen on %s", addr), err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			rt.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	bound := listener.Addr().String()
	rt.logger.Info("server listening", "addr", bound, "owner", rt.cfg.Owner, "db", rt.cfg.DB)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", bound)
	if opts.ready != nil {
		opts.ready <- bound
	}

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown error", err)
	}
	rt.logger.Info("server stopped gracefully")
	return nil
}

// newHTTPServer applies the configured request timeouts. The header
// timeout never exceeds the read timeout.
func newHTTPServer(h http.Handler, cfg config.Config) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: min(10*time.Second, cfg.ReadTimeout),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
