package router

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports a rule that cannot be evaluated or whose target
// references variables that do not exist.
type ConfigError struct {
	Rule    string
	Message string

	// Missing lists unresolved placeholder names, sorted.
	Missing []string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("alias %q: %s: %s", e.Rule, e.Message, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("alias %q: %s", e.Rule, e.Message)
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
