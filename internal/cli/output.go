package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // dispatch failed, workspace invalid, scenarios failed
	ExitCommandError = 2 // bad arguments, unreadable input, database unavailable
)

// Codes carried in error envelopes.
const (
	ErrCodeNotFound  = "E005" // no content or path matched
	ErrCodeInvalid   = "E010" // workspace or scenario file rejected
	ErrCodeDispatch  = "E020" // the engine returned a runtime error
	ErrCodeAmbiguous = "E021" // prefix matched several addresses
)

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as JSON envelopes or as text.
// Text errors and verbose notes go to ErrWriter when it is set.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command in --format json.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error member of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. Text output lists flat maps as sorted
// "key: value" lines and prints anything else with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if fields, ok := textFields(data); ok {
		writeFields(f.Writer, "", fields)
		return nil
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a coded error. In text mode details are shown only with
// --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if !f.Verbose || details == nil {
		return nil
	}
	fmt.Fprintln(w, "Details:")
	if fields, ok := textFields(details); ok {
		writeFields(w, "  ", fields)
		return nil
	}
	if items, ok := details.([]string); ok {
		for _, item := range items {
			fmt.Fprintf(w, "  %s\n", item)
		}
		return nil
	}
	fmt.Fprintf(w, "  %v\n", details)
	return nil
}

// VerboseLog writes a note to ErrWriter under --verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns ErrWriter, falling back to Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func textFields(data any) (map[string]string, bool) {
	switch m := data.(type) {
	case map[string]string:
		return m, true
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, v := range m {
			out[k] = fmt.Sprint(v)
		}
		return out, true
	}
	return nil, false
}

func writeFields(w io.Writer, indent string, fields map[string]string) {
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(w, "%s%s: %s\n", indent, k, fields[k])
	}
}
