package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/model"
	"github.com/roach88/waypath/internal/sandbox"
)

// ExecutionResult describes one successful, stored execution.
type ExecutionResult struct {
	Definition string
	Kind       sandbox.Kind
	Output

	// Address is where Body was stored.
	Address string

	// RequestAddress points at the stored request details.
	RequestAddress string

	// DefinitionAddress points at the code snapshot that ran.
	DefinitionAddress string
}

// Path returns "/{address}[.ext]" for the stored output.
func (r *ExecutionResult) Path() string {
	return cas.PathFor(r.Address, r.ContentType)
}

// execute runs the named definition. In partial mode the definition binds
// as many leading segments as it has parameters for and reports how many
// it consumed; otherwise every segment must bind.
func (s *session) execute(ctx context.Context, name string, segments []string, query map[string]string, req Request, partial bool) (*ExecutionResult, int, error) {
	def, ok := s.definition(name)
	if !ok {
		return nil, 0, NewNotFoundError("definition", name)
	}
	if err := s.enter(); err != nil {
		return nil, 0, withDefinition(err, name)
	}
	defer s.leave()

	log := s.e.logger.With("definition", name, "depth", s.depth)
	log.Debug("execute", "segments", segments)

	prog, err := s.e.program(name, def.Code)
	if err != nil {
		return nil, 0, scriptFailure(name, err)
	}

	details := req.Details()
	segs := make([]any, len(segments))
	for i, seg := range segments {
		segs[i] = seg
	}
	details["segments"] = segs

	var (
		args     []any
		consumed int
		extra    = map[string]string{}
	)
	switch prog.Kind() {
	case sandbox.KindAutoMain:
		args, consumed, extra, err = s.bind(ctx, prog.Params(), segments, query, partial)
		if err != nil {
			return nil, 0, withDefinition(err, name)
		}
	default:
		args = handlerArgs(prog.Params())
		consumed = len(segments)
		for k, v := range query {
			extra[k] = v
		}
	}

	value, err := s.run(ctx, prog, args, extra, details, nil)
	if err != nil {
		return nil, 0, withDefinition(err, name)
	}
	out, err := NormalizeResult(value)
	if err != nil {
		return nil, 0, withDefinition(err, name)
	}

	res := &ExecutionResult{Definition: name, Kind: prog.Kind(), Output: out}
	if err := s.persist(ctx, res, details, def); err != nil {
		return nil, 0, err
	}
	log.Debug("executed", "address", res.Address, "content_type", res.ContentType)
	return res, consumed, nil
}

// handlerArgs passes request details and context to raw handlers and
// transforms by parameter name, falling back to (request, context).
func handlerArgs(params []sandbox.Param) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, len(params))
	for i, p := range params {
		switch {
		case p.Name == "context":
			args[i] = sandbox.ContextObject{}
		case p.Name == "request":
			args[i] = sandbox.RequestObject{}
		case i == 0:
			args[i] = sandbox.RequestObject{}
		case i == 1:
			args[i] = sandbox.ContextObject{}
		}
	}
	return args
}

// bind builds the auto-main argument list. Segments bind positionally to
// parameters not named context or request; query parameters fill what is
// still unbound; path-derived values win on collision. Query parameters
// that name no parameter are returned as extra.
func (s *session) bind(ctx context.Context, params []sandbox.Param, segments []string, query map[string]string, partial bool) ([]any, int, map[string]string, error) {
	args := make([]any, len(params))
	bound := make([]bool, len(params))
	index := make(map[string]int, len(params))

	for i, p := range params {
		index[p.Name] = i
		switch p.Name {
		case "context":
			args[i], bound[i] = sandbox.ContextObject{}, true
		case "request":
			args[i], bound[i] = sandbox.RequestObject{}, true
		}
	}

	pos := 0
	for i := range params {
		if bound[i] {
			continue
		}
		if pos >= len(segments) {
			break
		}
		value, used, err := s.resolveSegment(ctx, segments[pos], segments[pos+1:], nil)
		if err != nil {
			return nil, 0, nil, err
		}
		args[i], bound[i] = value, true
		pos += used
	}
	if pos < len(segments) && !partial {
		return nil, 0, nil, &RuntimeError{
			Code:    ErrCodeValidation,
			Reason:  "UNEXPECTED_ARGUMENT",
			Message: fmt.Sprintf("%d unexpected path segment(s): %s", len(segments)-pos, strings.Join(segments[pos:], "/")),
			Details: map[string]string{"unexpected": strings.Join(segments[pos:], "/")},
		}
	}

	extra := map[string]string{}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		i, ok := index[k]
		if !ok {
			extra[k] = query[k]
			continue
		}
		if !bound[i] {
			args[i], bound[i] = query[k], true
		}
	}

	var missing []string
	for i, p := range params {
		if !bound[i] && !p.Optional {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return nil, 0, nil, &RuntimeError{
			Code:    ErrCodeValidation,
			Reason:  "MISSING_ARGUMENT",
			Message: fmt.Sprintf("missing required argument(s): %s", strings.Join(missing, ", ")),
			Details: map[string]string{"missing": strings.Join(missing, ",")},
		}
	}
	return args, pos, extra, nil
}

// resolveSegment turns one path segment into an argument value, trying a
// definition, an alias, a stored address and finally the literal string.
// It reports how many segments (including seg) were consumed.
func (s *session) resolveSegment(ctx context.Context, seg string, rest []string, query map[string]string) (any, int, error) {
	if _, ok := s.definition(seg); ok {
		req := Request{Method: http.MethodGet, Path: joinPath(seg, rest), Query: query}
		res, used, err := s.execute(ctx, seg, rest, query, req, true)
		if err != nil {
			return nil, 0, err
		}
		return string(res.Body), 1 + used, nil
	}

	if res, ok, err := s.router.ResolveName(seg); ok {
		if err != nil {
			return nil, 0, configError(err)
		}
		return s.followAlias(ctx, seg, res.RedirectTo, rest)
	}

	if addr, _ := cas.SplitExtension(seg); cas.IsAddress(addr) {
		obj, err := s.e.content.Get(ctx, addr)
		switch {
		case err == nil:
			return string(obj.Data), 1, nil
		case !errors.Is(err, cas.ErrNotFound):
			return nil, 0, err
		}
	}

	return seg, 1, nil
}

// followAlias resolves an alias used as an argument by resolving its
// target path with the remaining segments appended.
func (s *session) followAlias(ctx context.Context, name, target string, rest []string) (any, int, error) {
	if !IsInternalPath(target) {
		return nil, 0, NewUnsupportedTargetError(target)
	}
	if err := s.enter(); err != nil {
		return nil, 0, err
	}
	defer s.leave()

	path, query := ParseTarget(target)
	targetSegs := splitPath(path)
	if len(targetSegs) == 0 {
		return nil, 0, &RuntimeError{
			Code:    ErrCodeConfig,
			Message: fmt.Sprintf("alias %q has an empty target", name),
			Details: map[string]string{"rule": name},
		}
	}

	combined := append(slices.Clone(targetSegs[1:]), rest...)
	value, used, err := s.resolveSegment(ctx, targetSegs[0], combined, query)
	if err != nil {
		return nil, 0, err
	}
	fromRest := used - len(targetSegs)
	if fromRest < 0 {
		return nil, 0, &RuntimeError{
			Code:    ErrCodeValidation,
			Reason:  "UNEXPECTED_ARGUMENT",
			Message: fmt.Sprintf("alias %q target %q has unused segments", name, target),
			Details: map[string]string{"rule": name, "target": target},
		}
	}
	return value, 1 + fromRest, nil
}

// run executes prog with the session's capability snapshot.
func (s *session) run(ctx context.Context, prog *sandbox.Program, args []any, query map[string]string, request map[string]any, resolve func(context.Context, string) (sandbox.Template, error)) (any, error) {
	if s.e.scriptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.e.scriptTimeout)
		defer cancel()
	}
	value, err := prog.Run(ctx, args, sandbox.Capabilities{
		Variables:       s.variables,
		Secrets:         s.secrets,
		Servers:         s.servers,
		Query:           query,
		Request:         request,
		ResolveTemplate: resolve,
		Logger:          s.e.logger,
	})
	if err != nil {
		return nil, scriptFailure(prog.Name(), err)
	}
	return value, nil
}

// persist stores output, request details and the code snapshot, then
// appends the invocation record.
func (s *session) persist(ctx context.Context, res *ExecutionResult, details map[string]any, def model.Definition) error {
	addr, err := s.e.content.Put(ctx, res.Body, res.ContentType)
	if err != nil {
		return fmt.Errorf("store output of %s: %w", res.Definition, err)
	}
	res.Address = addr

	detailsJSON, err := model.MarshalCanonical(details)
	if err != nil {
		return fmt.Errorf("encode request details: %w", err)
	}
	res.RequestAddress, err = s.e.content.Put(ctx, detailsJSON, "application/json")
	if err != nil {
		return fmt.Errorf("store request details: %w", err)
	}

	res.DefinitionAddress = def.DefinitionAddress
	if res.DefinitionAddress == "" && def.Code != "" {
		res.DefinitionAddress, err = s.e.content.Put(ctx, []byte(def.Code), "application/javascript")
		if err != nil {
			return fmt.Errorf("store definition snapshot: %w", err)
		}
	}

	s.e.record(ctx, model.InvocationRecord{
		Owner:                 s.owner,
		DefinitionName:        res.Definition,
		ResultAddress:         res.Address,
		RequestDetailsAddress: res.RequestAddress,
		DefinitionAddress:     res.DefinitionAddress,
	})
	return nil
}

// scriptFailure maps sandbox errors onto the runtime taxonomy. Runtime
// errors raised by capabilities pass through unchanged.
func scriptFailure(name string, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	var se *sandbox.ScriptError
	if errors.As(err, &se) {
		return &RuntimeError{
			Code:       ErrCodeExecution,
			Reason:     "SCRIPT_ERROR",
			Message:    se.Message,
			Definition: name,
			Stack:      se.Stack,
			Err:        err,
		}
	}
	var ie *sandbox.InterruptedError
	if errors.As(err, &ie) {
		return &RuntimeError{
			Code:       ErrCodeExecution,
			Reason:     "INTERRUPTED",
			Message:    ie.Error(),
			Definition: name,
			Err:        err,
		}
	}
	var syn *sandbox.SyntaxError
	if errors.As(err, &syn) {
		return &RuntimeError{
			Code:       ErrCodeExecution,
			Reason:     "SYNTAX_ERROR",
			Message:    syn.Message,
			Definition: name,
			Err:        err,
		}
	}
	return &RuntimeError{Code: ErrCodeExecution, Message: err.Error(), Definition: name, Err: err}
}

// withDefinition fills in the definition name on runtime errors that do
// not carry one yet.
func withDefinition(err error, name string) error {
	var re *RuntimeError
	if !errors.As(err, &re) || re.Definition != "" {
		return err
	}
	cp := *re
	cp.Definition = name
	return &cp
}
