package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/config"
	"github.com/roach88/waypath/internal/engine"
	"github.com/roach88/waypath/internal/gateway"
	"github.com/roach88/waypath/internal/store"
)

// runtime is the opened store, content store and engine a command uses.
type runtime struct {
	cfg     config.Config
	store   *store.Store
	content *cas.Store
	engine  *engine.Engine
	logger  *slog.Logger
	closers []io.Closer
}

// openRuntime opens the database and CAS backend named by the config.
func openRuntime(opts *RootOptions, logOut io.Writer) (*runtime, error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := opts.Logger(logOut, cfg.LogFormat)

	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	rt := &runtime{cfg: cfg, store: st, logger: logger, closers: []io.Closer{st}}

	var backend cas.Backend
	switch cfg.CASBackend {
	case config.BackendSQLite:
		backend = st
	case config.BackendBolt:
		b, err := cas.OpenBolt(cfg.BoltPath)
		if err != nil {
			_ = rt.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open bolt content store", err)
		}
		rt.closers = append(rt.closers, b)
		backend = b
	case config.BackendMemory:
		backend = cas.NewMemory()
	default:
		_ = rt.Close()
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown CAS backend %q", cfg.CASBackend))
	}

	rt.content = cas.NewStore(backend, cas.WithCompressThreshold(cfg.CompressMin))
	rt.engine = engine.New(st, rt.content, st,
		engine.WithNative(gateway.New()),
		engine.WithMaxDepth(cfg.MaxDepth),
		engine.WithMaxAliasHops(cfg.MaxAliasHops),
		engine.WithScriptTimeout(cfg.ScriptTimeout),
		engine.WithLogger(logger),
	)
	logger.Debug("runtime ready", "db", cfg.DB, "cas", cfg.CASBackend, "owner", cfg.Owner)
	return rt, nil
}

// Close releases everything in reverse order of opening.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// requestConfig is the per-request configuration for the configured owner.
func (rt *runtime) requestConfig() engine.RequestConfig {
	return engine.RequestConfig{Owner: rt.cfg.Owner}
}
