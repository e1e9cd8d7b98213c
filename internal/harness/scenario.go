package harness

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/waypath/internal/engine"
	"github.com/roach88/waypath/internal/workspace"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Owner dispatches every request. Defaults to DefaultOwner.
	Owner string `yaml:"owner,omitempty"`

	// Content is stored before the workspace is applied.
	Content []Seed `yaml:"content,omitempty"`

	// Workspace is applied to the fresh store.
	Workspace workspace.Workspace `yaml:"workspace"`

	// Requests run in order against the HTTP surface.
	Requests []RequestStep `yaml:"requests"`
}

// Seed is a content object stored ahead of the requests.
type Seed struct {
	ContentType string `yaml:"content_type"`
	Data        string `yaml:"data"`

	// Address, when set, must equal the computed address.
	Address string `yaml:"address,omitempty"`
}

// RequestStep is one HTTP exchange.
type RequestStep struct {
	Method  string            `yaml:"method,omitempty"`
	Path    string            `yaml:"path"`
	Query   map[string]string `yaml:"query,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`

	// Follow fetches an internal redirect location once.
	Follow bool `yaml:"follow,omitempty"`

	// Expect is checked against the last exchange of the step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists the properties a response must have. Zero fields are not
// checked.
type Expect struct {
	Status         int    `yaml:"status,omitempty"`
	Body           string `yaml:"body,omitempty"`
	BodyContains   string `yaml:"body_contains,omitempty"`
	LocationPrefix string `yaml:"location_prefix,omitempty"`
	ContentType    string `yaml:"content_type,omitempty"`
	Code           string `yaml:"code,omitempty"`
}

// DefaultOwner is used when a scenario names none.
const DefaultOwner = "scenario"

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected. Definition file references resolve against the scenario's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.Workspace.Dir = filepath.Dir(path)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks required fields.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Requests) == 0 {
		return fmt.Errorf("requests list is required and must be non-empty")
	}
	for i, r := range s.Requests {
		if !engine.IsInternalPath(r.Path) {
			return fmt.Errorf("requests[%d]: path %q must start with a single /", i, r.Path)
		}
		if r.Method != "" && !validMethod(r.Method) {
			return fmt.Errorf("requests[%d]: unknown method %q", i, r.Method)
		}
	}
	for i, c := range s.Content {
		if c.ContentType == "" {
			return fmt.Errorf("content[%d]: content_type is required", i)
		}
	}
	return nil
}

func validMethod(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}
