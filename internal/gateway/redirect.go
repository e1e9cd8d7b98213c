package gateway

import (
	"context"
	"errors"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/engine"
)

// MaxRedirectHops bounds redirect resolution.
const MaxRedirectHops = 3

// Fetcher loads the resource behind an internal Location.
type Fetcher func(ctx context.Context, location string) (Result, error)

// ResolveRedirects follows redirects to bare /{address}[.ext] locations
// up to limit times. Once the limit is reached the last result is returned
// as-is, redirect or not. Any other location, internal or external, is
// returned without fetching. It returns the number of hops taken.
func ResolveRedirects(ctx context.Context, r Result, fetch Fetcher, limit int) (Result, int, error) {
	hops := 0
	for hops < limit && r.IsRedirect() && isContentLocation(r.Location) {
		next, err := fetch(ctx, r.Location)
		if err != nil {
			return Result{}, hops, err
		}
		r = next
		hops++
	}
	return r, hops, nil
}

func isContentLocation(location string) bool {
	if !engine.IsInternalPath(location) {
		return false
	}
	path, _ := engine.ParseTarget(location)
	_, ok := cas.ParsePath(path)
	return ok
}

// fetcher serves content locations straight from the CAS. The extension,
// when known, decides the content type.
func fetcher(call *engine.Call) Fetcher {
	return func(ctx context.Context, location string) (Result, error) {
		path, _ := engine.ParseTarget(location)
		addr, ok := cas.ParsePath(path)
		if !ok {
			return Result{}, engine.NewNotFoundError("content", path)
		}
		obj, err := call.Content().Get(ctx, addr)
		if err != nil {
			if errors.Is(err, cas.ErrNotFound) {
				return Result{}, engine.NewNotFoundError("content", addr)
			}
			return Result{}, err
		}
		ct := obj.ContentType
		if _, ext := cas.SplitExtension(path); ext != "" {
			if byExt, ok := cas.ContentTypeFor(ext); ok {
				ct = byExt
			}
		}
		return Adapt(engine.ContentResponse(addr, obj.Data, ct)), nil
	}
}
