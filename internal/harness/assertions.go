package harness

import (
	"fmt"
	"strings"
)

// checkExpect compares entry with want and returns one message per
// mismatch.
func checkExpect(entry TraceEntry, want Expect) []string {
	var errs []string
	if want.Status != 0 && entry.Status != want.Status {
		errs = append(errs, fmt.Sprintf("status: expected %d, got %d", want.Status, entry.Status))
	}
	if want.Body != "" && entry.Body != want.Body {
		errs = append(errs, fmt.Sprintf("body: expected %q, got %q", want.Body, entry.Body))
	}
	if want.BodyContains != "" && !strings.Contains(entry.Body, want.BodyContains) {
		errs = append(errs, fmt.Sprintf("body: expected to contain %q, got %q", want.BodyContains, entry.Body))
	}
	if want.LocationPrefix != "" && !strings.HasPrefix(entry.Location, want.LocationPrefix) {
		errs = append(errs, fmt.Sprintf("location: expected prefix %q, got %q", want.LocationPrefix, entry.Location))
	}
	if want.ContentType != "" && !sameMediaType(entry.ContentType, want.ContentType) {
		errs = append(errs, fmt.Sprintf("content type: expected %q, got %q", want.ContentType, entry.ContentType))
	}
	if want.Code != "" && entry.Code != want.Code {
		errs = append(errs, fmt.Sprintf("code: expected %q, got %q", want.Code, entry.Code))
	}
	return errs
}

// sameMediaType compares content types ignoring parameters and case.
func sameMediaType(got, want string) bool {
	strip := func(s string) string {
		if i := strings.IndexByte(s, ';'); i >= 0 {
			s = s[:i]
		}
		return strings.ToLower(strings.TrimSpace(s))
	}
	return strip(got) == strip(want)
}
