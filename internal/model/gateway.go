package model

import (
	"slices"
	"strings"
)

// GatewayTarget is the configuration for one named gateway target.
type GatewayTarget struct {
	Name string `json:"-"`

	// Target is the internal path invoked for this gateway. Defaults to
	// "/<name>" when empty.
	Target string `json:"target,omitempty"`

	RequestTransform  string            `json:"request,omitempty"`
	ResponseTransform string            `json:"response,omitempty"`
	Templates         map[string]string `json:"templates,omitempty"`
}

// Path returns the internal path the gateway invokes.
func (t GatewayTarget) Path() string {
	if t.Target != "" {
		return t.Target
	}
	return "/" + t.Name
}

// TemplateNames returns the configured template names in sorted order.
func (t GatewayTarget) TemplateNames() []string {
	names := make([]string, 0, len(t.Templates))
	for name := range t.Templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GatewayConfig maps target names to their configuration.
type GatewayConfig map[string]GatewayTarget

// Names returns the configured target names in sorted order.
func (c GatewayConfig) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	slices.SortFunc(names, strings.Compare)
	return names
}

// Lookup returns the target configuration with Name populated.
func (c GatewayConfig) Lookup(name string) (GatewayTarget, bool) {
	t, ok := c[name]
	if !ok {
		return GatewayTarget{}, false
	}
	t.Name = name
	return t, true
}
