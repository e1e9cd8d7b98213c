package engine

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// ErrorCode categorizes runtime errors.
type ErrorCode string

const (
	// ErrCodeNotFound: unknown definition, alias, content or gateway target.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeValidation: malformed direct response, transform output,
	// template reference or argument list.
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"

	// ErrCodeUnsupportedTarget: an internal-only execution named an
	// external URL. Nothing is fetched.
	ErrCodeUnsupportedTarget ErrorCode = "UNSUPPORTED_TARGET"

	// ErrCodeExecution: definition code raised or was interrupted.
	ErrCodeExecution ErrorCode = "EXECUTION_FAILED"

	// ErrCodeTooDeep: the nested execution or alias hop bound was exceeded.
	ErrCodeTooDeep ErrorCode = "TOO_DEEP"

	// ErrCodeTransformLoad: a transform's code could not be fetched or
	// compiled.
	ErrCodeTransformLoad ErrorCode = "TRANSFORM_LOAD_FAILED"

	// ErrCodeConfig: alias or gateway configuration cannot be evaluated.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"
)

// RuntimeError is the single error type the engine returns. Reason
// refines Code (for example MISSING_ARGUMENT under VALIDATION_FAILED).
type RuntimeError struct {
	Code    ErrorCode
	Reason  string
	Message string

	// Definition names the definition being executed, if any.
	Definition string

	// Stage names the gateway stage that failed: request_transform,
	// target or response_transform.
	Stage string

	// Details contains additional context such as target names or
	// transform addresses.
	Details map[string]string

	// Stack is a truncated script stack excerpt for execution errors.
	Stack string

	Err error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Stage != "" {
		fmt.Fprintf(&b, " [%s]", e.Stage)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Definition != "" {
		fmt.Fprintf(&b, " (definition=%s)", e.Definition)
	}
	return b.String()
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func codeOf(err error) ErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND runtime error.
func IsNotFound(err error) bool { return codeOf(err) == ErrCodeNotFound }

// IsValidation reports whether err is a VALIDATION_FAILED runtime error.
func IsValidation(err error) bool { return codeOf(err) == ErrCodeValidation }

// IsUnsupportedTarget reports whether err is an UNSUPPORTED_TARGET error.
func IsUnsupportedTarget(err error) bool { return codeOf(err) == ErrCodeUnsupportedTarget }

// IsExecution reports whether err is an EXECUTION_FAILED runtime error.
func IsExecution(err error) bool { return codeOf(err) == ErrCodeExecution }

// IsTooDeep reports whether err is a TOO_DEEP runtime error.
func IsTooDeep(err error) bool { return codeOf(err) == ErrCodeTooDeep }

// IsTransformLoad reports whether err is a TRANSFORM_LOAD_FAILED error.
func IsTransformLoad(err error) bool { return codeOf(err) == ErrCodeTransformLoad }

// IsConfig reports whether err is a CONFIG_ERROR runtime error.
func IsConfig(err error) bool { return codeOf(err) == ErrCodeConfig }

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch codeOf(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnsupportedTarget:
		return http.StatusBadRequest
	case ErrCodeTooDeep:
		return http.StatusLoopDetected
	case ErrCodeExecution, ErrCodeTransformLoad, ErrCodeConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Title is a short human heading for err's category.
func Title(err error) string {
	switch codeOf(err) {
	case ErrCodeNotFound:
		return "Not found"
	case ErrCodeValidation:
		return "Invalid request"
	case ErrCodeUnsupportedTarget:
		return "Unsupported target"
	case ErrCodeExecution:
		return "Execution failed"
	case ErrCodeTooDeep:
		return "Resolution too deep"
	case ErrCodeTransformLoad:
		return "Transform could not be loaded"
	case ErrCodeConfig:
		return "Configuration error"
	default:
		return "Internal error"
	}
}

// NewNotFoundError reports an unknown entity of the given kind.
func NewNotFoundError(kind, name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", kind, name),
		Details: map[string]string{"kind": kind, "name": name},
	}
}

// NewValidationError reports malformed input with a reason code.
func NewValidationError(reason, message string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeValidation, Reason: reason, Message: message}
}

// NewUnsupportedTargetError rejects a non-internal target.
func NewUnsupportedTargetError(target string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnsupportedTarget,
		Message: fmt.Sprintf("target %q is not an internal path", target),
		Details: map[string]string{"target": target},
	}
}

// NewTooDeepError reports an exceeded hop bound.
func NewTooDeepError(what string, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTooDeep,
		Reason:  what,
		Message: fmt.Sprintf("%s exceeded limit of %d", what, limit),
		Details: map[string]string{"limit": fmt.Sprintf("%d", limit)},
	}
}

// NewTransformLoadError reports a transform that could not be loaded.
func NewTransformLoadError(address string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTransformLoad,
		Message: fmt.Sprintf("transform %s: %v", address, err),
		Details: map[string]string{"transform": address},
		Err:     err,
	}
}

// WithStage tags err with the gateway stage and extra details. Non-runtime
// errors are wrapped as EXECUTION_FAILED.
func WithStage(err error, stage string, details map[string]string) error {
	if err == nil {
		return nil
	}
	var re *RuntimeError
	if !errors.As(err, &re) {
		re = &RuntimeError{Code: ErrCodeExecution, Message: err.Error(), Err: err}
	} else {
		cp := *re
		re = &cp
	}
	if re.Stage == "" {
		re.Stage = stage
	}
	merged := make(map[string]string, len(re.Details)+len(details))
	for k, v := range re.Details {
		merged[k] = v
	}
	for k, v := range details {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	re.Details = merged
	return re
}

// AsRuntimeError returns err as a *RuntimeError, wrapping unknown errors
// as internal EXECUTION_FAILED.
func AsRuntimeError(err error) *RuntimeError {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re
	}
	return &RuntimeError{Code: ErrCodeExecution, Message: err.Error(), Err: err}
}

// DetailKeys returns the detail keys in sorted order.
func (e *RuntimeError) DetailKeys() []string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
