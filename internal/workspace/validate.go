package workspace

import (
	"fmt"
	"strings"

	"github.com/roach88/waypath/internal/gateway"
	"github.com/roach88/waypath/internal/router"
	"github.com/roach88/waypath/internal/sandbox"
)

// Validation error codes (E200-E299)
const (
	// Definition errors (E201-E209)
	ErrDuplicateDefinition = "E201" // definition name used twice
	ErrInvalidName         = "E202" // name empty or contains / ? #
	ErrMissingCode         = "E203" // neither code nor file, or both
	ErrCodeUnreadable      = "E204" // file reference cannot be read
	ErrCodeInvalid         = "E205" // code does not parse or has no entry point

	// Alias errors (E211-E219)
	ErrDuplicateAlias   = "E211" // alias name used twice
	ErrUnknownMatchType = "E212" // match type not recognised
	ErrInvalidPattern   = "E213" // pattern does not compile
	ErrMissingTarget    = "E214" // target empty

	// Gateway errors (E221-E229)
	ErrInvalidGateway = "E221" // gateway configuration rejected
	ErrReservedName   = "E222" // variable name reserved for gateway config
)

// ValidationError is one problem found in a workspace.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the whole workspace and returns every error found.
func Validate(ws *Workspace) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	seen := make(map[string]bool, len(ws.Definitions))
	for i, d := range ws.Definitions {
		field := fmt.Sprintf("definitions[%d]", i)
		if !validName(d.Name) {
			add(field+".name", ErrInvalidName, "invalid definition name %q", d.Name)
			continue
		}
		field = "definitions." + d.Name
		if seen[d.Name] {
			add(field, ErrDuplicateDefinition, "definition %q is declared more than once", d.Name)
			continue
		}
		seen[d.Name] = true

		if (d.Code == "") == (d.File == "") {
			add(field, ErrMissingCode, "exactly one of code or file is required")
			continue
		}
		code, err := d.Source(ws.Dir)
		if err != nil {
			add(field+".file", ErrCodeUnreadable, "%v", err)
			continue
		}
		if _, err := sandbox.Compile(d.Name, code); err != nil {
			add(field+".code", ErrCodeInvalid, "%v", err)
		}
	}

	aliases := make(map[string]bool, len(ws.Aliases))
	for i, a := range ws.Aliases {
		field := fmt.Sprintf("aliases[%d]", i)
		if !validName(a.Name) {
			add(field+".name", ErrInvalidName, "invalid alias name %q", a.Name)
			continue
		}
		field = "aliases." + a.Name
		if aliases[a.Name] {
			add(field, ErrDuplicateAlias, "alias %q is declared more than once", a.Name)
			continue
		}
		aliases[a.Name] = true

		if strings.TrimSpace(a.Target) == "" {
			add(field+".target", ErrMissingTarget, "target is required")
		}
		rule, err := a.Rule(ws.Owner, i)
		if err != nil {
			add(field+".match", ErrUnknownMatchType, "%v", err)
			continue
		}
		if err := router.Validate(rule); err != nil {
			add(field+".pattern", ErrInvalidPattern, "%v", err)
		}
	}

	if _, ok := ws.Variables[gateway.ConfigVariable]; ok && len(ws.Gateways) > 0 {
		add("variables."+gateway.ConfigVariable, ErrReservedName,
			"variable %q conflicts with the gateways section", gateway.ConfigVariable)
	}
	if raw, err := ws.GatewayJSON(); err != nil {
		add("gateways", ErrInvalidGateway, "%v", err)
	} else if raw != nil {
		if _, err := gateway.ParseConfig(raw); err != nil {
			add("gateways", ErrInvalidGateway, "%v", err)
		}
	}
	return errs
}

func validName(name string) bool {
	return strings.TrimSpace(name) != "" && !strings.ContainsAny(name, "/?#")
}
