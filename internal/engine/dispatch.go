package engine

import (
	"context"
	"errors"
	"maps"
	"net/http"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/model"
	"github.com/roach88/waypath/internal/sandbox"
)

// dispatch applies alias rewrites, then serves stored content, a native,
// a definition or a unique address prefix, in that order. At the top level
// an alias pointing outside the site becomes a redirect; nested dispatches
// reject it.
func (s *session) dispatch(ctx context.Context, req Request, top bool) (Response, error) {
	path := req.Path
	if path == "" {
		path = "/"
	}
	query := maps.Clone(req.Query)
	if query == nil {
		query = map[string]string{}
	}

	for hops := 0; ; hops++ {
		res, err := s.router.Resolve(path)
		if err != nil {
			return Response{}, configError(err)
		}
		if !res.Matched {
			break
		}
		target := res.RedirectTo
		if !IsInternalPath(target) {
			if top {
				return RedirectResponse(target), nil
			}
			return Response{}, NewUnsupportedTargetError(target)
		}
		next, q := ParseTarget(target)
		if next == path && len(q) == 0 {
			break
		}
		if hops >= s.e.maxAliasHops {
			return Response{}, NewTooDeepError("alias hops", s.e.maxAliasHops)
		}
		s.e.logger.Debug("alias", "rule", res.Rule, "path", path, "target", next)
		path = next
		maps.Copy(query, q)
	}
	req.Path = path
	req.Query = query

	if addr, ok := cas.ParsePath(path); ok {
		return s.serveContent(ctx, addr, path)
	}

	segments := splitPath(path)
	if len(segments) == 0 {
		return Response{}, NewNotFoundError("path", path)
	}
	name := segments[0]

	if n, ok := s.e.natives[name]; ok {
		return s.runNative(ctx, n, req, segments[1:])
	}

	if _, ok := s.definition(name); ok {
		res, _, err := s.execute(ctx, name, segments[1:], query, req, false)
		if err != nil {
			return Response{}, err
		}
		if res.Kind == sandbox.KindAutoMain {
			return RedirectResponse(res.Path()), nil
		}
		resp := RawResponse(res.Status, res.ContentType, res.Body, nil)
		resp.Address = res.Address
		return resp, nil
	}

	if len(segments) == 1 {
		resp, ok, err := s.prefixMatch(ctx, name)
		if err != nil || ok {
			return resp, err
		}
	}
	return Response{}, NewNotFoundError("path", path)
}

// serveContent returns the object at addr. An extension in path overrides
// the stored content type.
func (s *session) serveContent(ctx context.Context, addr, path string) (Response, error) {
	obj, err := s.e.content.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, cas.ErrNotFound) {
			return Response{}, NewNotFoundError("content", addr)
		}
		return Response{}, err
	}
	ct := obj.ContentType
	if _, ext := cas.SplitExtension(path); ext != "" {
		if byExt, ok := cas.ContentTypeFor(ext); ok {
			ct = byExt
		}
	}
	return ContentResponse(addr, obj.Data, ct), nil
}

// prefixMatch redirects a unique address prefix to the full address and
// lists the candidates when the prefix is ambiguous.
func (s *session) prefixMatch(ctx context.Context, segment string) (Response, bool, error) {
	addrs, err := s.e.content.ListByPrefix(ctx, segment)
	if err != nil {
		return Response{}, false, err
	}
	switch len(addrs) {
	case 0:
		return Response{}, false, nil
	case 1:
		obj, err := s.e.content.Get(ctx, addrs[0])
		if err != nil {
			return Response{}, false, err
		}
		ct := obj.ContentType
		if _, ext := cas.SplitExtension(segment); ext != "" {
			if byExt, ok := cas.ContentTypeFor(ext); ok {
				ct = byExt
			}
		}
		return RedirectResponse(cas.PathFor(addrs[0], ct)), true, nil
	default:
		paths := make([]string, len(addrs))
		for i, a := range addrs {
			paths[i] = "/" + a
		}
		body, err := model.MarshalCanonical(map[string]any{"prefix": segment, "matches": paths})
		if err != nil {
			return Response{}, false, err
		}
		return RawResponse(http.StatusMultipleChoices, "application/json", body, nil), true, nil
	}
}
