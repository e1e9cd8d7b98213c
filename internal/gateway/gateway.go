package gateway

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/engine"
	"github.com/roach88/waypath/internal/model"
	"github.com/roach88/waypath/internal/sandbox"
)

// Name is the path segment the gateway is served under.
const Name = "gateway"

// Pipeline stages reported on errors.
const (
	StageRequestTransform  = "request_transform"
	StageTarget            = "target"
	StageResponseTransform = "response_transform"
)

// Response provenance passed to response transforms.
const (
	SourceServer           = "server"
	SourceRequestTransform = "request_transform"
	SourceTestServer       = "test_server"
)

// Gateway is the native handler implementing the pipeline.
type Gateway struct {
	maxHops int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxRedirectHops overrides MaxRedirectHops.
func WithMaxRedirectHops(n int) Option {
	return func(g *Gateway) {
		g.maxHops = n
	}
}

// New creates a Gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{maxHops: MaxRedirectHops}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements engine.Native.
func (g *Gateway) Name() string { return Name }

// invocation is one parsed gateway request.
type invocation struct {
	target model.GatewayTarget
	path   string
	source string
}

// Serve implements engine.Native.
func (g *Gateway) Serve(ctx context.Context, call *engine.Call) (engine.Response, error) {
	cfg, err := loadConfig(call)
	if err != nil {
		return engine.Response{}, err
	}
	if len(call.Segments) == 0 {
		return listTargets(cfg)
	}

	inv, err := parseInvocation(cfg, call.Segments)
	if err != nil {
		return engine.Response{}, err
	}
	log := call.Logger().With("gateway", inv.target.Name, "path", inv.path)
	details := map[string]string{"target": inv.target.Name}

	request := call.Request.Details()
	request["path"] = inv.path
	request["target"] = inv.target.Name
	resolve := templateResolver(call, inv.target)

	var (
		result Result
		source = inv.source
	)

	direct, request, err := g.applyRequestTransform(ctx, call, inv.target, request, resolve)
	if err != nil {
		return engine.Response{}, engine.WithStage(err, StageRequestTransform, withTransform(details, inv.target.RequestTransform))
	}
	if direct != nil {
		log.Debug("direct response from request transform")
		result = *direct
		source = SourceRequestTransform
	} else {
		result, err = g.invokeTarget(ctx, call, request)
		if err != nil {
			return engine.Response{}, engine.WithStage(err, StageTarget, withPath(details, request))
		}
	}

	result, hops, err := ResolveRedirects(ctx, result, fetcher(call), g.maxHops)
	if err != nil {
		return engine.Response{}, engine.WithStage(err, StageTarget, withPath(details, request))
	}
	log.Debug("target resolved", "status", result.StatusCode, "hops", hops, "source", source)

	resp, err := g.applyResponseTransform(ctx, call, inv.target, result, source, request, resolve)
	if err != nil {
		return engine.Response{}, engine.WithStage(err, StageResponseTransform, withTransform(details, inv.target.ResponseTransform))
	}
	return resp, nil
}

// parseInvocation splits the segments after /gateway into a target and
// the internal path to invoke.
func parseInvocation(cfg model.GatewayConfig, segments []string) (invocation, error) {
	if segments[0] == "test" {
		as := slices.Index(segments, "as")
		if as < 2 || as+1 >= len(segments) {
			return invocation{}, engine.NewValidationError("INVALID_TEST_PATH",
				"test requests use /gateway/test/{path...}/as/{target}/{rest...}")
		}
		target, err := lookupTarget(cfg, segments[as+1])
		if err != nil {
			return invocation{}, err
		}
		path := "/" + strings.Join(append(slices.Clone(segments[1:as]), segments[as+2:]...), "/")
		return invocation{target: target, path: path, source: SourceTestServer}, nil
	}

	target, err := lookupTarget(cfg, segments[0])
	if err != nil {
		return invocation{}, err
	}
	path := target.Path()
	if rest := segments[1:]; len(rest) > 0 {
		path = strings.TrimSuffix(path, "/") + "/" + strings.Join(rest, "/")
	}
	return invocation{target: target, path: path, source: SourceServer}, nil
}

func lookupTarget(cfg model.GatewayConfig, name string) (model.GatewayTarget, error) {
	t, ok := cfg.Lookup(name)
	if ok {
		return t, nil
	}
	names := cfg.Names()
	return model.GatewayTarget{}, &engine.RuntimeError{
		Code:    engine.ErrCodeNotFound,
		Message: fmt.Sprintf("gateway target %q not found; configured targets: %s", name, listOrNone(names)),
		Details: map[string]string{"kind": "gateway", "name": name, "targets": strings.Join(names, ",")},
	}
}

func listTargets(cfg model.GatewayConfig) (engine.Response, error) {
	names := make([]any, 0, len(cfg))
	for _, n := range cfg.Names() {
		names = append(names, n)
	}
	body, err := model.MarshalCanonical(map[string]any{"targets": names})
	if err != nil {
		return engine.Response{}, err
	}
	return engine.RawResponse(http.StatusOK, "application/json", body, nil), nil
}

// applyRequestTransform runs the request transform, if any. A returned
// "response" key always wins and becomes a direct response; otherwise a
// returned object replaces the request details entirely; keys it omits
// are not carried over from the original request.
func (g *Gateway) applyRequestTransform(ctx context.Context, call *engine.Call, t model.GatewayTarget, request map[string]any, resolve engine.TemplateResolver) (*Result, map[string]any, error) {
	if t.RequestTransform == "" {
		return nil, request, nil
	}
	value, err := call.RunTransform(ctx, transformAddress(t.RequestTransform), request, resolve)
	if err != nil {
		return nil, nil, err
	}

	switch v := value.(type) {
	case nil:
		return nil, request, nil
	case map[string]any:
		if raw, ok := v["response"]; ok {
			out, err := engine.ParseResponseObject(raw)
			if err != nil {
				return nil, nil, err
			}
			return &Result{
				StatusCode:  statusOr(out.Status, http.StatusOK),
				Headers:     map[string]string{"Content-Type": out.ContentType},
				Content:     out.Body,
				ContentType: out.ContentType,
			}, nil, nil
		}
		next := maps.Clone(v)
		if err := checkInternal(next); err != nil {
			return nil, nil, err
		}
		return nil, next, nil
	default:
		return nil, nil, engine.NewValidationError("INVALID_REQUEST_TRANSFORM",
			"request transform must return an object or nothing")
	}
}

// checkInternal rejects url and path overrides that are not internal.
func checkInternal(request map[string]any) error {
	for _, key := range []string{"url", "path"} {
		raw, ok := request[key]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return engine.NewValidationError("INVALID_REQUEST_TRANSFORM", fmt.Sprintf("%s must be a string", key))
		}
		if !engine.IsInternalPath(s) {
			return engine.NewUnsupportedTargetError(s)
		}
	}
	return nil
}

// invokeTarget dispatches the (possibly transformed) request internally.
func (g *Gateway) invokeTarget(ctx context.Context, call *engine.Call, request map[string]any) (Result, error) {
	req := engine.Request{
		Method:  stringField(request, "method"),
		Query:   stringMap(request["query"]),
		Headers: stringMap(request["headers"]),
		Body:    []byte(stringField(request, "body")),
	}
	if u := stringField(request, "url"); u != "" {
		path, query := engine.ParseTarget(u)
		req.Path = path
		for k, v := range query {
			if req.Query == nil {
				req.Query = map[string]string{}
			}
			req.Query[k] = v
		}
	} else {
		req.Path = stringField(request, "path")
	}
	if !engine.IsInternalPath(req.Path) {
		return Result{}, engine.NewUnsupportedTargetError(req.Path)
	}

	resp, err := call.Dispatch(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return Adapt(resp), nil
}

// applyResponseTransform runs the response transform, if any. A result
// without "output" passes the underlying response through.
func (g *Gateway) applyResponseTransform(ctx context.Context, call *engine.Call, t model.GatewayTarget, r Result, source string, request map[string]any, resolve engine.TemplateResolver) (engine.Response, error) {
	if t.ResponseTransform == "" {
		return r.Response(), nil
	}
	value, err := call.RunTransform(ctx, transformAddress(t.ResponseTransform), r.Details(source, request), resolve)
	if err != nil {
		return engine.Response{}, err
	}

	var out engine.Output
	switch v := value.(type) {
	case nil:
		return r.Response(), nil
	case map[string]any:
		if _, ok := v["output"]; !ok {
			return r.Response(), nil
		}
		out, err = engine.ParseResponseObject(v)
	default:
		out, err = engine.NormalizeResult(v)
	}
	if err != nil {
		return engine.Response{}, err
	}
	return engine.RawResponse(statusOr(out.Status, http.StatusOK), out.ContentType, out.Body, nil), nil
}

// templateResolver backs resolve_template for t's transforms.
func templateResolver(call *engine.Call, t model.GatewayTarget) engine.TemplateResolver {
	return func(ctx context.Context, name string) (sandbox.Template, error) {
		ref, ok := t.Templates[name]
		if !ok {
			names := t.TemplateNames()
			return sandbox.Template{}, &engine.RuntimeError{
				Code:    engine.ErrCodeValidation,
				Reason:  "UNKNOWN_TEMPLATE",
				Message: fmt.Sprintf("template %q is not configured for gateway %q; configured templates: %s", name, t.Name, listOrNone(names)),
				Details: map[string]string{"template": name, "templates": strings.Join(names, ",")},
			}
		}
		addr := transformAddress(ref)
		obj, err := call.Content().Get(ctx, addr)
		if err != nil {
			if errors.Is(err, cas.ErrNotFound) {
				nf := engine.NewNotFoundError("template", name)
				nf.Details["address"] = addr
				return sandbox.Template{}, nf
			}
			return sandbox.Template{}, err
		}
		return sandbox.Template{Name: name, Address: addr, Source: string(obj.Data)}, nil
	}
}

func transformAddress(ref string) string {
	addr, _ := cas.SplitExtension(ref)
	return addr
}

func withTransform(details map[string]string, addr string) map[string]string {
	out := map[string]string{"target": details["target"]}
	if addr != "" {
		out["transform"] = transformAddress(addr)
	}
	return out
}

func withPath(details map[string]string, request map[string]any) map[string]string {
	out := map[string]string{"target": details["target"]}
	if p := stringField(request, "url"); p != "" {
		out["path"] = p
	} else if p := stringField(request, "path"); p != "" {
		out["path"] = p
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringMap(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, val := range m {
			if val == nil {
				continue
			}
			out[k] = fmt.Sprint(val)
		}
		return out
	default:
		return nil
	}
}

func statusOr(status, fallback int) int {
	if status == 0 {
		return fallback
	}
	return status
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
