package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/roach88/waypath/internal/model"
)

// matchTimeout bounds backtracking in user-supplied regexes.
const matchTimeout = 250 * time.Millisecond

// matcher tests one path and returns captured parameters on success.
type matcher interface {
	match(path string) (map[string]string, bool, error)
}

// Compile validates rule and returns its matcher.
func compile(rule model.AliasRule) (matcher, error) {
	switch rule.MatchType {
	case model.MatchLiteral, "":
		return literalMatcher{pattern: rule.Pattern, fold: rule.IgnoreCase}, nil
	case model.MatchGlob:
		return compileRegex(globToRegex(rule.Pattern), rule.IgnoreCase)
	case model.MatchRegex:
		return compileRegex(rule.Pattern, rule.IgnoreCase)
	case model.MatchRoute:
		expr, err := routeToRegex(rule.Pattern)
		if err != nil {
			return nil, err
		}
		return compileRegex(expr, rule.IgnoreCase)
	default:
		return nil, fmt.Errorf("unknown match type %q", rule.MatchType)
	}
}

// Validate reports whether rule compiles.
func Validate(rule model.AliasRule) error {
	_, err := compile(rule)
	return err
}

type literalMatcher struct {
	pattern string
	fold    bool
}

func (m literalMatcher) match(path string) (map[string]string, bool, error) {
	if m.fold {
		return nil, strings.EqualFold(path, m.pattern), nil
	}
	return nil, path == m.pattern, nil
}

type regexMatcher struct {
	re *regexp2.Regexp
}

func compileRegex(expr string, fold bool) (matcher, error) {
	opts := regexp2.None
	if fold {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(`\A(?:`+expr+`)\z`, opts)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	re.MatchTimeout = matchTimeout
	return regexMatcher{re: re}, nil
}

func (m regexMatcher) match(path string) (map[string]string, bool, error) {
	found, err := m.re.FindStringMatch(path)
	if err != nil {
		return nil, false, err
	}
	if found == nil {
		return nil, false, nil
	}
	params := map[string]string{}
	for _, g := range found.Groups()[1:] {
		if len(g.Captures) == 0 {
			continue
		}
		params[g.Name] = g.String()
	}
	return params, true, nil
}

// globToRegex translates * and ? and escapes everything else.
func globToRegex(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp2.Escape(string(r)))
		}
	}
	return b.String()
}

// routeToRegex turns /user/<id>/files/<path:rest> into a regex with named
// groups. Converters: string (default, one segment), int (digits), path
// (one or more characters including slashes).
func routeToRegex(route string) (string, error) {
	var b strings.Builder
	seen := map[string]bool{}
	rest := route
	for {
		open := strings.IndexByte(rest, '<')
		if open < 0 {
			b.WriteString(regexp2.Escape(rest))
			return b.String(), nil
		}
		closeIdx := strings.IndexByte(rest[open:], '>')
		if closeIdx < 0 {
			return "", fmt.Errorf("unterminated parameter in route %q", route)
		}
		b.WriteString(regexp2.Escape(rest[:open]))

		spec := rest[open+1 : open+closeIdx]
		converter, name := "string", spec
		if i := strings.IndexByte(spec, ':'); i >= 0 {
			converter, name = spec[:i], spec[i+1:]
		}
		if !validParamName(name) {
			return "", fmt.Errorf("invalid parameter name %q in route %q", name, route)
		}
		if seen[name] {
			return "", fmt.Errorf("duplicate parameter %q in route %q", name, route)
		}
		seen[name] = true

		switch converter {
		case "string":
			fmt.Fprintf(&b, "(?<%s>[^/]+)", name)
		case "int":
			fmt.Fprintf(&b, `(?<%s>\d+)`, name)
		case "path":
			fmt.Fprintf(&b, "(?<%s>.+)", name)
		default:
			return "", fmt.Errorf("unknown converter %q in route %q", converter, route)
		}
		rest = rest[open+closeIdx+1:]
	}
}

func validParamName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
