package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/model"
	"github.com/roach88/waypath/internal/sandbox"
)

// Native is a built-in raw handler addressed by the first path segment.
type Native interface {
	Name() string
	Serve(ctx context.Context, call *Call) (Response, error)
}

// TemplateResolver backs resolve_template inside transform code.
type TemplateResolver func(ctx context.Context, name string) (sandbox.Template, error)

// Call is a native handler's view of the current dispatch. Nested
// dispatches and transform runs share the dispatch's hop counter and
// configuration snapshot.
type Call struct {
	// Request is the request as routed to the native.
	Request Request

	// Segments are the path segments after the native's name.
	Segments []string

	sess *session
}

// Owner returns the owner the dispatch runs as.
func (c *Call) Owner() string { return c.sess.owner }

// Variable returns the named variable from the snapshot.
func (c *Call) Variable(name string) (string, bool) {
	v, ok := c.sess.variables[name]
	return v, ok
}

// Variables returns a copy of the variable snapshot.
func (c *Call) Variables() map[string]string { return maps.Clone(c.sess.variables) }

// Content returns the content store.
func (c *Call) Content() *cas.Store { return c.sess.e.content }

// Logger returns the engine logger.
func (c *Call) Logger() *slog.Logger { return c.sess.e.logger }

// Dispatch routes req internally. External alias targets are rejected
// rather than returned as redirects.
func (c *Call) Dispatch(ctx context.Context, req Request) (Response, error) {
	if !IsInternalPath(req.Path) {
		return Response{}, NewUnsupportedTargetError(req.Path)
	}
	if err := c.sess.enter(); err != nil {
		return Response{}, err
	}
	defer c.sess.leave()
	return c.sess.dispatch(ctx, req, false)
}

// RunTransform loads the code stored at address and calls its entry point
// with input as the request argument. Fetch and compile failures are
// TRANSFORM_LOAD_FAILED errors.
func (c *Call) RunTransform(ctx context.Context, address string, input map[string]any, resolve TemplateResolver) (any, error) {
	name := "transform:" + address
	obj, err := c.sess.e.content.Get(ctx, address)
	if err != nil {
		return nil, NewTransformLoadError(address, err)
	}
	prog, err := c.sess.e.program(name, string(obj.Data))
	if err != nil {
		return nil, NewTransformLoadError(address, err)
	}
	if err := c.sess.enter(); err != nil {
		return nil, err
	}
	defer c.sess.leave()

	value, err := c.sess.run(ctx, prog, handlerArgs(prog.Params()), nil, input, resolve)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// runNative serves a native handler and stores its body like any other
// raw handler result.
func (s *session) runNative(ctx context.Context, n Native, req Request, segments []string) (Response, error) {
	if err := s.enter(); err != nil {
		return Response{}, withDefinition(err, n.Name())
	}
	defer s.leave()

	resp, err := n.Serve(ctx, &Call{Request: req, Segments: segments, sess: s})
	if err != nil {
		return Response{}, withDefinition(err, n.Name())
	}
	if resp.Kind == KindRedirect {
		return resp, nil
	}

	res := &ExecutionResult{
		Definition: n.Name(),
		Kind:       sandbox.KindRawHandler,
		Output:     Output{Body: resp.Body, ContentType: resp.ContentType, Status: resp.Status},
	}
	if err := s.persist(ctx, res, req.Details(), model.Definition{Name: n.Name()}); err != nil {
		return Response{}, fmt.Errorf("native %s: %w", n.Name(), err)
	}
	resp.Address = res.Address
	return resp, nil
}
