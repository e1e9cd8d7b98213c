package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/model"
	"github.com/roach88/waypath/internal/sandbox"
)

// DefaultMaxDepth bounds nested executions (and alias follows) within a
// single dispatch.
const DefaultMaxDepth = 16

// DefaultMaxAliasHops bounds alias rewrites applied to one path.
const DefaultMaxAliasHops = 8

// EntityStore is the read side of the relational entity store.
type EntityStore interface {
	AliasRules(ctx context.Context, owner string) ([]model.AliasRule, error)
	Definitions(ctx context.Context, owner string) ([]model.Definition, error)
	Variables(ctx context.Context, owner string) (map[string]string, error)
	Secrets(ctx context.Context, owner string) (map[string]string, error)
}

// History receives one record per successful execution.
type History interface {
	AppendInvocation(ctx context.Context, rec model.InvocationRecord) error
}

// Engine dispatches requests and executes definitions.
//
// Thread-safety: an Engine holds no per-request state and is safe for
// concurrent use. Each Dispatch builds its own session snapshot.
type Engine struct {
	entities EntityStore
	content  *cas.Store
	history  History
	ids      IDGenerator
	clock    Clock
	logger   *slog.Logger

	maxDepth      int
	maxAliasHops  int
	scriptTimeout time.Duration

	natives map[string]Native

	// programs caches compiled code keyed by name and code address.
	// Compiled programs are immutable.
	programs sync.Map
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxDepth sets the nested execution bound.
func WithMaxDepth(n int) EngineOption {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithMaxAliasHops sets the alias rewrite bound.
func WithMaxAliasHops(n int) EngineOption {
	return func(e *Engine) {
		e.maxAliasHops = n
	}
}

// WithIDGenerator replaces the UUIDv7 record ID generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock replaces the system clock used for record timestamps.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithScriptTimeout bounds each script run. Zero means no bound beyond
// the request context.
func WithScriptTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.scriptTimeout = d
	}
}

// WithNative registers a built-in handler under its name. Natives take
// precedence over stored definitions of the same name.
func WithNative(n Native) EngineOption {
	return func(e *Engine) {
		e.natives[n.Name()] = n
	}
}

// New creates an Engine. history may be nil, in which case no invocation
// records are written.
func New(entities EntityStore, content *cas.Store, history History, opts ...EngineOption) *Engine {
	e := &Engine{
		entities:     entities,
		content:      content,
		history:      history,
		ids:          UUIDv7Generator{},
		clock:        SystemClock{},
		logger:       slog.Default(),
		maxDepth:     DefaultMaxDepth,
		maxAliasHops: DefaultMaxAliasHops,
		natives:      make(map[string]Native),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Content returns the engine's content store.
func (e *Engine) Content() *cas.Store {
	return e.content
}

// Execute runs the named definition with the given path segments and
// query parameters and returns the stored result. Every segment must bind
// to a parameter.
func (e *Engine) Execute(ctx context.Context, cfg RequestConfig, name string, segments []string, query map[string]string) (*ExecutionResult, error) {
	s, err := e.newSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	req := Request{Path: joinPath(name, segments), Query: query}
	res, _, err := s.execute(ctx, name, segments, query, req, false)
	return res, err
}

// Dispatch routes req and returns the response the caller should see.
func (e *Engine) Dispatch(ctx context.Context, cfg RequestConfig, req Request) (Response, error) {
	s, err := e.newSession(ctx, cfg)
	if err != nil {
		return Response{}, err
	}
	return s.dispatch(ctx, req, true)
}

// program compiles code, reusing an earlier compilation of identical code
// under the same name.
func (e *Engine) program(name, code string) (*sandbox.Program, error) {
	key := name + "\x00" + cas.ComputeAddress([]byte(code))
	if p, ok := e.programs.Load(key); ok {
		return p.(*sandbox.Program), nil
	}
	p, err := sandbox.Compile(name, code)
	if err != nil {
		return nil, err
	}
	actual, _ := e.programs.LoadOrStore(key, p)
	return actual.(*sandbox.Program), nil
}

// record appends an invocation record. Failures are logged and swallowed.
func (e *Engine) record(ctx context.Context, rec model.InvocationRecord) {
	if e.history == nil {
		return
	}
	rec.ID = e.ids.Generate()
	rec.InvokedAt = e.clock.Now()
	if err := e.history.AppendInvocation(ctx, rec); err != nil {
		e.logger.Warn("invocation record failed",
			"definition", rec.DefinitionName,
			"address", rec.ResultAddress,
			"error", err)
	}
}
