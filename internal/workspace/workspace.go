package workspace

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/waypath/internal/model"
)

// Workspace is the declarative description of one owner's entities.
type Workspace struct {
	Owner       string                 `json:"owner,omitempty" yaml:"owner,omitempty"`
	Definitions []DefinitionSpec       `json:"definitions,omitempty" yaml:"definitions,omitempty"`
	Aliases     []AliasSpec            `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Variables   map[string]string      `json:"variables,omitempty" yaml:"variables,omitempty"`
	Secrets     map[string]string      `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	Gateways    map[string]GatewaySpec `json:"gateways,omitempty" yaml:"gateways,omitempty"`

	// Dir resolves relative file references. Set by LoadFile.
	Dir string `json:"-" yaml:"-"`
}

// DefinitionSpec declares a definition. Exactly one of Code or File is set.
type DefinitionSpec struct {
	Name     string `json:"name" yaml:"name"`
	Code     string `json:"code,omitempty" yaml:"code,omitempty"`
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// AliasSpec declares an alias rule. Position is its index in the list.
type AliasSpec struct {
	Name       string `json:"name" yaml:"name"`
	Match      string `json:"match,omitempty" yaml:"match,omitempty"`
	Pattern    string `json:"pattern" yaml:"pattern"`
	Target     string `json:"target" yaml:"target"`
	IgnoreCase bool   `json:"ignore_case,omitempty" yaml:"ignore_case,omitempty"`
	Disabled   bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// GatewaySpec declares one gateway target.
type GatewaySpec struct {
	Target    string            `json:"target,omitempty" yaml:"target,omitempty"`
	Request   string            `json:"request,omitempty" yaml:"request,omitempty"`
	Response  string            `json:"response,omitempty" yaml:"response,omitempty"`
	Templates map[string]string `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// Source returns the definition code, reading File relative to dir.
func (d DefinitionSpec) Source(dir string) (string, error) {
	if d.File == "" {
		return d.Code, nil
	}
	path := d.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("definition %q: %w", d.Name, err)
	}
	return string(data), nil
}

// Rule converts the entry into an alias rule at position.
func (a AliasSpec) Rule(owner string, position int) (model.AliasRule, error) {
	mt, err := model.ParseMatchType(a.Match)
	if err != nil {
		return model.AliasRule{}, err
	}
	return model.AliasRule{
		Name:       a.Name,
		Owner:      owner,
		MatchType:  mt,
		Pattern:    a.Pattern,
		Target:     a.Target,
		IgnoreCase: a.IgnoreCase,
		Enabled:    !a.Disabled,
		Position:   position,
	}, nil
}

// GatewayJSON renders the gateway targets in the form the gateway reads
// from its configuration variable. It returns nil when none are declared.
func (w *Workspace) GatewayJSON() ([]byte, error) {
	if len(w.Gateways) == 0 {
		return nil, nil
	}
	return json.Marshal(w.Gateways)
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
