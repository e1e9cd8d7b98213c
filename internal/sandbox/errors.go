package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

// maxStackLines bounds the stack excerpt kept on a ScriptError.
const maxStackLines = 12

// SyntaxError reports code that does not parse or has no entry point.
type SyntaxError struct {
	Name    string
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("definition %q: %s", e.Name, e.Message)
}

// ScriptError reports an exception thrown by definition code.
type ScriptError struct {
	Name    string
	Message string
	Stack   string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("definition %q raised: %s", e.Name, e.Message)
}

// InterruptedError reports a run stopped by context cancellation.
type InterruptedError struct {
	Name  string
	Cause error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("definition %q interrupted: %v", e.Name, e.Cause)
}

func (e *InterruptedError) Unwrap() error {
	return e.Cause
}

// IsSyntaxError reports whether err wraps a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

func truncateStack(stack string) string {
	lines := strings.Split(strings.TrimSpace(stack), "\n")
	if len(lines) > maxStackLines {
		lines = append(lines[:maxStackLines], fmt.Sprintf("... %d more", len(lines)-maxStackLines))
	}
	return strings.Join(lines, "\n")
}
