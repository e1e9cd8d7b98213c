package router

import (
	"maps"
	"slices"
	"strings"

	"github.com/roach88/waypath/internal/model"
)

// Result is the outcome of one resolution hop.
type Result struct {
	Matched    bool
	Rule       string
	RedirectTo string
	Params     map[string]string
}

type compiledRule struct {
	rule model.AliasRule
	m    matcher
	err  error
}

// Router resolves paths against a fixed snapshot of rules and variables.
// A Router is immutable and safe for concurrent use.
type Router struct {
	rules  []compiledRule
	byName map[string]int
	vars   map[string]string
}

// New builds a router from owner's rules and variables. Disabled rules
// are kept for name lookup but never match. Rules that fail to compile
// surface a ConfigError when evaluation reaches them.
func New(rules []model.AliasRule, vars map[string]string) *Router {
	sorted := slices.Clone(rules)
	model.SortAliasRules(sorted)

	r := &Router{
		rules:  make([]compiledRule, 0, len(sorted)),
		byName: make(map[string]int, len(sorted)),
		vars:   vars,
	}
	for _, rule := range sorted {
		m, err := compile(rule)
		r.byName[rule.Name] = len(r.rules)
		r.rules = append(r.rules, compiledRule{rule: rule, m: m, err: err})
	}
	return r
}

// Resolve tests path against every enabled rule in order. The first match
// wins.
func (r *Router) Resolve(path string) (Result, error) {
	for _, cr := range r.rules {
		if !cr.rule.Enabled {
			continue
		}
		if cr.err != nil {
			return Result{}, &ConfigError{Rule: cr.rule.Name, Message: cr.err.Error()}
		}
		params, ok, err := cr.m.match(path)
		if err != nil {
			return Result{}, &ConfigError{Rule: cr.rule.Name, Message: "match failed: " + err.Error()}
		}
		if !ok {
			continue
		}
		target, err := r.expandTarget(cr.rule, params)
		if err != nil {
			return Result{}, err
		}
		return Result{Matched: true, Rule: cr.rule.Name, RedirectTo: target, Params: params}, nil
	}
	return Result{}, nil
}

// Lookup returns the enabled rule named name.
func (r *Router) Lookup(name string) (model.AliasRule, bool) {
	i, ok := r.byName[name]
	if !ok || !r.rules[i].rule.Enabled {
		return model.AliasRule{}, false
	}
	return r.rules[i].rule, true
}

// ResolveName follows the enabled rule named name without matching a path.
// Only variables are substituted; a target that still needs route
// parameters is a ConfigError.
func (r *Router) ResolveName(name string) (Result, bool, error) {
	rule, ok := r.Lookup(name)
	if !ok {
		return Result{}, false, nil
	}
	target, err := r.expandTarget(rule, nil)
	if err != nil {
		return Result{}, true, err
	}
	if rule.MatchType == model.MatchRoute {
		if missing := routePlaceholders(target); len(missing) > 0 {
			return Result{}, true, &ConfigError{Rule: rule.Name, Message: "target needs route parameters", Missing: missing}
		}
	}
	return Result{Matched: true, Rule: rule.Name, RedirectTo: target}, true, nil
}

// Rules returns the ordered rule snapshot.
func (r *Router) Rules() []model.AliasRule {
	out := make([]model.AliasRule, len(r.rules))
	for i, cr := range r.rules {
		out[i] = cr.rule
	}
	return out
}

// expandTarget resolves variables in the rule's own target, then inserts
// route captures in a single pass. Captured text is never expanded.
func (r *Router) expandTarget(rule model.AliasRule, params map[string]string) (string, error) {
	target, missing := SubstituteVariables(rule.Target, r.vars)
	if len(missing) > 0 {
		return "", &ConfigError{Rule: rule.Name, Message: "unresolved variables in target", Missing: missing}
	}
	if len(params) == 0 {
		return target, nil
	}
	pairs := make([]string, 0, 2*len(params))
	for _, name := range slices.Sorted(maps.Keys(params)) {
		pairs = append(pairs, "<"+name+">", params[name])
	}
	return strings.NewReplacer(pairs...).Replace(target), nil
}

// SubstituteVariables replaces {name} placeholders with values from vars
// and returns the sorted names it could not resolve. "{{" and "}}" are
// literal braces.
func SubstituteVariables(s string, vars map[string]string) (string, []string) {
	if !strings.ContainsAny(s, "{}") {
		return s, nil
	}
	var (
		b       strings.Builder
		missing []string
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '{' && i+1 < len(s) && s[i+1] == '{' {
			b.WriteByte('{')
			i++
			continue
		}
		if c == '}' && i+1 < len(s) && s[i+1] == '}' {
			b.WriteByte('}')
			i++
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(s[i+1:], '}')
		if end < 0 {
			b.WriteString(s[i:])
			break
		}
		name := strings.TrimSpace(s[i+1 : i+1+end])
		if value, ok := vars[name]; ok {
			b.WriteString(value)
		} else if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		i += end + 1
	}
	slices.Sort(missing)
	return b.String(), missing
}

func routePlaceholders(s string) []string {
	var names []string
	for {
		open := strings.IndexByte(s, '<')
		if open < 0 {
			break
		}
		end := strings.IndexByte(s[open:], '>')
		if end < 0 {
			break
		}
		if name := s[open+1 : open+end]; validParamName(name) {
			names = append(names, name)
		}
		s = s[open+end+1:]
	}
	slices.Sort(names)
	return names
}
