package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MatchType selects how an alias rule's pattern is interpreted.
type MatchType string

const (
	// MatchLiteral matches the whole path exactly.
	MatchLiteral MatchType = "literal"

	// MatchGlob matches shell-style wildcards; * spans any run of characters.
	MatchGlob MatchType = "glob"

	// MatchRegex requires a full match of the compiled pattern.
	MatchRegex MatchType = "regex"

	// MatchRoute matches path-parameter templates such as /user/<id>.
	MatchRoute MatchType = "route"
)

// ParseMatchType accepts the canonical names plus the "prefix" and
// "templated-route" spellings used by older workspaces.
func ParseMatchType(s string) (MatchType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "literal":
		return MatchLiteral, nil
	case "glob", "prefix":
		return MatchGlob, nil
	case "regex":
		return MatchRegex, nil
	case "route", "templated-route":
		return MatchRoute, nil
	default:
		return "", fmt.Errorf("unknown match type %q", s)
	}
}

// AliasRule is a named pattern that rewrites a matching path to Target.
type AliasRule struct {
	Name       string    `json:"name" yaml:"name"`
	Owner      string    `json:"owner,omitempty" yaml:"owner,omitempty"`
	MatchType  MatchType `json:"match_type" yaml:"match_type"`
	Pattern    string    `json:"pattern" yaml:"pattern"`
	Target     string    `json:"target" yaml:"target"`
	IgnoreCase bool      `json:"ignore_case,omitempty" yaml:"ignore_case,omitempty"`
	Enabled    bool      `json:"enabled" yaml:"enabled"`

	// Position orders rules for evaluation; ties break on Name.
	Position int `json:"position" yaml:"position"`
}

// SortAliasRules orders rules by Position, then Name (bytewise).
func SortAliasRules(rules []AliasRule) {
	slices.SortStableFunc(rules, func(a, b AliasRule) int {
		if a.Position != b.Position {
			if a.Position < b.Position {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// Definition is a named executable handler.
type Definition struct {
	Name    string `json:"name" yaml:"name"`
	Owner   string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Code    string `json:"code" yaml:"code"`
	Enabled bool   `json:"enabled" yaml:"enabled"`

	// DefinitionAddress points at the CAS snapshot of Code.
	DefinitionAddress string `json:"definition_address,omitempty" yaml:"definition_address,omitempty"`
}

// ContentObject is an immutable blob keyed by its content address.
type ContentObject struct {
	Address     string
	Data        []byte
	ContentType string
	CreatedAt   time.Time
}

// InvocationRecord is the append-only audit entry written once per execution.
type InvocationRecord struct {
	ID                    string    `json:"id"`
	Owner                 string    `json:"owner"`
	DefinitionName        string    `json:"definition_name"`
	ResultAddress         string    `json:"result_address"`
	RequestDetailsAddress string    `json:"request_details_address"`
	DefinitionAddress     string    `json:"definition_address,omitempty"`
	InvokedAt             time.Time `json:"invoked_at"`
}
