package engine

import (
	"net/http"

	"github.com/roach88/waypath/internal/cas"
)

// ResponseKind tags a Response.
type ResponseKind int

const (
	// KindContent is a body with a content type, possibly served from the
	// CAS (Address set).
	KindContent ResponseKind = iota

	// KindRedirect points the caller at Location.
	KindRedirect

	// KindRaw is a handler-produced response passed through as-is.
	KindRaw
)

func (k ResponseKind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindRedirect:
		return "redirect"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Response is the outcome of a dispatch.
type Response struct {
	Kind        ResponseKind
	Status      int
	ContentType string
	Body        []byte
	Headers     map[string]string

	// Location is set for redirects.
	Location string

	// Address is the CAS address of Body when known.
	Address string
}

// ContentResponse serves a stored object.
func ContentResponse(address string, body []byte, contentType string) Response {
	if contentType == "" {
		contentType = cas.DefaultContentType
	}
	return Response{
		Kind:        KindContent,
		Status:      http.StatusOK,
		ContentType: contentType,
		Body:        body,
		Address:     address,
	}
}

// RedirectResponse points at location with 302 Found.
func RedirectResponse(location string) Response {
	return Response{Kind: KindRedirect, Status: http.StatusFound, Location: location}
}

// RawResponse wraps handler output.
func RawResponse(status int, contentType string, body []byte, headers map[string]string) Response {
	if status == 0 {
		status = http.StatusOK
	}
	return Response{Kind: KindRaw, Status: status, ContentType: contentType, Body: body, Headers: headers}
}

// IsRedirect reports whether r is a redirect by kind or status.
func (r Response) IsRedirect() bool {
	if r.Kind == KindRedirect {
		return true
	}
	return r.Status >= 300 && r.Status < 400 && r.Location != ""
}
