package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/roach88/waypath/internal/model"
	"github.com/roach88/waypath/internal/router"
)

// session is the per-dispatch snapshot of an owner's configuration plus
// the hop counter shared by every nested execution.
type session struct {
	e     *Engine
	owner string

	router      *router.Router
	definitions map[string]model.Definition
	variables   map[string]string
	secrets     map[string]string
	servers     map[string]string

	depth int
}

func (e *Engine) newSession(ctx context.Context, cfg RequestConfig) (*session, error) {
	rules, err := e.entities.AliasRules(ctx, cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("load alias rules: %w", err)
	}
	defs, err := e.entities.Definitions(ctx, cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	vars, err := e.entities.Variables(ctx, cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("load variables: %w", err)
	}
	secrets, err := e.entities.Secrets(ctx, cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	s := &session{
		e:           e,
		owner:       cfg.Owner,
		router:      router.New(rules, vars),
		definitions: make(map[string]model.Definition, len(defs)),
		variables:   maps.Clone(vars),
		secrets:     maps.Clone(secrets),
		servers:     make(map[string]string, len(defs)),
	}
	if s.variables == nil {
		s.variables = map[string]string{}
	}
	if s.secrets == nil {
		s.secrets = map[string]string{}
	}
	for _, d := range defs {
		s.definitions[d.Name] = d
		if d.Enabled {
			s.servers[d.Name] = d.DefinitionAddress
		}
	}
	return s, nil
}

// enter increments the hop counter. Callers must call leave when enter
// succeeds.
func (s *session) enter() error {
	if s.depth >= s.e.maxDepth {
		return NewTooDeepError("nested execution depth", s.e.maxDepth)
	}
	s.depth++
	return nil
}

func (s *session) leave() {
	s.depth--
}

// definition returns the enabled definition named name.
func (s *session) definition(name string) (model.Definition, bool) {
	d, ok := s.definitions[name]
	if !ok || !d.Enabled {
		return model.Definition{}, false
	}
	return d, true
}

// configError converts a router failure into a runtime error.
func configError(err error) error {
	var ce *router.ConfigError
	if !errors.As(err, &ce) {
		return err
	}
	details := map[string]string{"rule": ce.Rule}
	if len(ce.Missing) > 0 {
		details["missing"] = strings.Join(ce.Missing, ",")
	}
	return &RuntimeError{
		Code:    ErrCodeConfig,
		Message: ce.Error(),
		Details: details,
		Err:     err,
	}
}

func joinPath(name string, segments []string) string {
	return "/" + strings.Join(append([]string{name}, segments...), "/")
}
