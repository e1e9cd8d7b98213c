package engine

import (
	"fmt"
	"math"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/model"
)

// Output is a normalized definition or transform result.
type Output struct {
	Body        []byte
	ContentType string

	// Status is zero unless the code set status_code.
	Status int
}

// NormalizeResult turns an exported script value into an Output.
//
//   - string: text/html
//   - bytes: application/octet-stream
//   - object with "output": that output, content_type and status_code
//   - anything else: canonical JSON
//
// A nil result is a validation error.
func NormalizeResult(v any) (Output, error) {
	switch x := v.(type) {
	case nil:
		return Output{}, NewValidationError("EMPTY_RESULT", "code returned no value")
	case string:
		return Output{Body: []byte(x), ContentType: "text/html"}, nil
	case []byte:
		return Output{Body: x, ContentType: cas.DefaultContentType}, nil
	case map[string]any:
		if _, ok := x["output"]; ok {
			return ParseResponseObject(x)
		}
	}
	body, err := model.MarshalCanonical(v)
	if err != nil {
		return Output{}, NewValidationError("INVALID_RESULT", fmt.Sprintf("result is not serializable: %v", err))
	}
	return Output{Body: body, ContentType: "application/json"}, nil
}

// ParseResponseObject validates {output, content_type?, status_code?}.
// output is required and must be a string or bytes.
func ParseResponseObject(v any) (Output, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Output{}, NewValidationError("INVALID_RESPONSE", fmt.Sprintf("response must be an object, got %s", typeName(v)))
	}

	var out Output
	switch body := obj["output"].(type) {
	case string:
		out.Body = []byte(body)
		out.ContentType = "text/html"
	case []byte:
		out.Body = body
		out.ContentType = cas.DefaultContentType
	case nil:
		return Output{}, NewValidationError("MISSING_OUTPUT", "response is missing output")
	default:
		return Output{}, NewValidationError("INVALID_OUTPUT", fmt.Sprintf("output must be a string or bytes, got %s", typeName(body)))
	}

	if raw, ok := obj["content_type"]; ok && raw != nil {
		ct, ok := raw.(string)
		if !ok {
			return Output{}, NewValidationError("INVALID_CONTENT_TYPE", fmt.Sprintf("content_type must be a string, got %s", typeName(raw)))
		}
		if ct != "" {
			out.ContentType = ct
		}
	}

	if raw, ok := obj["status_code"]; ok && raw != nil {
		status, ok := statusCode(raw)
		if !ok {
			return Output{}, NewValidationError("INVALID_STATUS", fmt.Sprintf("status_code must be an integer between 100 and 599, got %v", raw))
		}
		out.Status = status
	}
	return out, nil
}

func statusCode(v any) (int, bool) {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int:
		n = int64(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		n = int64(x)
	default:
		return 0, false
	}
	if n < 100 || n > 599 {
		return 0, false
	}
	return int(n), true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case []byte:
		return "bytes"
	case bool:
		return "boolean"
	case int64, int, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
