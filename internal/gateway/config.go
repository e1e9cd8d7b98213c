package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/engine"
	"github.com/roach88/waypath/internal/model"
)

// ConfigVariable is the variable holding the gateway configuration.
const ConfigVariable = "gateways"

// ParseConfig strips comments and trailing commas from src and decodes the
// target map. Transform and template references must be content
// addresses; explicit targets must be internal paths.
func ParseConfig(src []byte) (model.GatewayConfig, error) {
	if strings.TrimSpace(string(src)) == "" {
		return model.GatewayConfig{}, nil
	}
	var cfg model.GatewayConfig
	if err := json.Unmarshal(jsonc.ToJSON(src), &cfg); err != nil {
		return nil, fmt.Errorf("parsing gateway config: %w", err)
	}
	if cfg == nil {
		cfg = model.GatewayConfig{}
	}

	for _, name := range cfg.Names() {
		t, _ := cfg.Lookup(name)
		if strings.ContainsAny(name, "/?#") || name == "test" {
			return nil, fmt.Errorf("gateway %q: invalid target name", name)
		}
		if t.Target != "" && !engine.IsInternalPath(t.Target) {
			return nil, fmt.Errorf("gateway %q: target %q is not an internal path", name, t.Target)
		}
		for field, ref := range map[string]string{"request": t.RequestTransform, "response": t.ResponseTransform} {
			if ref != "" && !isAddressRef(ref) {
				return nil, fmt.Errorf("gateway %q: %s transform %q is not a content address", name, field, ref)
			}
		}
		for _, tpl := range t.TemplateNames() {
			if !isAddressRef(t.Templates[tpl]) {
				return nil, fmt.Errorf("gateway %q: template %q does not reference a content address", name, tpl)
			}
		}
	}
	return cfg, nil
}

func isAddressRef(ref string) bool {
	addr, _ := cas.SplitExtension(ref)
	return cas.IsAddress(addr)
}

// loadConfig reads and parses the configuration visible to call.
func loadConfig(call *engine.Call) (model.GatewayConfig, error) {
	src, ok := call.Variable(ConfigVariable)
	if !ok {
		return model.GatewayConfig{}, nil
	}
	cfg, err := ParseConfig([]byte(src))
	if err != nil {
		return nil, &engine.RuntimeError{
			Code:    engine.ErrCodeConfig,
			Message: err.Error(),
			Details: map[string]string{"variable": ConfigVariable},
			Err:     err,
		}
	}
	return cfg, nil
}
