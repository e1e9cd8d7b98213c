package engine

import (
	"maps"
	"net/http"
	"net/url"
	"strings"

	"github.com/roach88/waypath/internal/model"
)

// Request is an inbound (or internally synthesized) request.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    []byte
}

// RequestConfig carries per-dispatch settings.
type RequestConfig struct {
	// Owner selects whose aliases, definitions, variables and secrets
	// are visible.
	Owner string
}

// ParseTarget splits an internal target such as "/def/a?x=1" into a
// request path and query. Fragments are dropped.
func ParseTarget(target string) (string, map[string]string) {
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	path, rawQuery, _ := strings.Cut(target, "?")
	query := map[string]string{}
	if rawQuery != "" {
		values, err := url.ParseQuery(rawQuery)
		if err == nil {
			for k, v := range values {
				if len(v) > 0 {
					query[k] = v[0]
				}
			}
		}
	}
	return path, query
}

// IsInternalPath reports whether target is an internal path. External URLs
// and protocol-relative references are not.
func IsInternalPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}

// splitPath returns the non-empty segments of path, unescaped.
func splitPath(path string) []string {
	raw := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		if seg == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		out = append(out, seg)
	}
	return out
}

// redactedHeaders are never written into stored request details.
var redactedHeaders = []string{"Authorization", "Cookie", "Proxy-Authorization"}

// Details returns the canonical request-details object stored alongside
// every execution and passed to raw handlers.
func (r Request) Details() map[string]any {
	headers := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}
	for _, h := range redactedHeaders {
		delete(headers, h)
	}
	query := map[string]string{}
	maps.Copy(query, r.Query)

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return map[string]any{
		"method":  method,
		"path":    r.Path,
		"query":   query,
		"headers": headers,
		"body":    string(r.Body),
	}
}

// DetailsJSON serializes Details canonically.
func (r Request) DetailsJSON() ([]byte, error) {
	return model.MarshalCanonical(r.Details())
}
