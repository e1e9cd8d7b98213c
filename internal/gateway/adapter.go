package gateway

import (
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/roach88/waypath/internal/engine"
)

// Result is the uniform shape of whatever an internal invocation
// produced, be it stored content, a raw handler response or a redirect.
type Result struct {
	StatusCode  int
	Headers     map[string]string
	Content     []byte
	ContentType string
	Location    string

	// Address is set when Content came from the CAS.
	Address string
}

// Adapt converts a dispatch response into a Result.
func Adapt(resp engine.Response) Result {
	r := Result{
		StatusCode:  resp.Status,
		Headers:     map[string]string{},
		Content:     resp.Body,
		ContentType: resp.ContentType,
		Location:    resp.Location,
		Address:     resp.Address,
	}
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	for k, v := range resp.Headers {
		r.Headers[http.CanonicalHeaderKey(k)] = v
	}
	if r.ContentType != "" {
		r.Headers["Content-Type"] = r.ContentType
	}
	if r.Location != "" {
		r.Headers["Location"] = r.Location
	}
	if r.Address != "" && resp.Kind == engine.KindContent {
		r.Headers["Etag"] = `"` + r.Address + `"`
	}
	return r
}

// IsRedirect reports whether r is a 3xx with a Location.
func (r Result) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400 && r.Location != ""
}

// Text returns the content as a string.
func (r Result) Text() string {
	return string(r.Content)
}

// JSON returns the decoded content when it is valid JSON.
func (r Result) JSON() (any, bool) {
	if len(r.Content) == 0 || !gjson.ValidBytes(r.Content) {
		return nil, false
	}
	return gjson.ParseBytes(r.Content).Value(), true
}

// Details is the response_details object handed to response transforms.
func (r Result) Details(source string, request map[string]any) map[string]any {
	var decoded any
	if v, ok := r.JSON(); ok {
		decoded = v
	}
	headers := make(map[string]any, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	return map[string]any{
		"status_code":  r.StatusCode,
		"headers":      headers,
		"content":      r.Content,
		"text":         r.Text(),
		"json":         decoded,
		"content_type": r.ContentType,
		"source":       source,
		"request":      request,
	}
}

// Response converts r back into a dispatch response.
func (r Result) Response() engine.Response {
	if r.IsRedirect() {
		return engine.Response{Kind: engine.KindRedirect, Status: r.StatusCode, Location: r.Location}
	}
	headers := map[string]string{}
	for k, v := range r.Headers {
		switch k {
		case "Content-Type", "Location", "Etag":
			continue
		}
		headers[k] = v
	}
	if len(headers) == 0 {
		headers = nil
	}
	resp := engine.RawResponse(r.StatusCode, r.ContentType, r.Content, headers)
	resp.Address = r.Address
	return resp
}
