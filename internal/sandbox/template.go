package sandbox

import (
	"fmt"
	"strings"
	"text/template"
)

// RenderTemplate executes a template's source as a text/template with data
// as its dot. Missing keys render as empty strings.
func RenderTemplate(tpl Template, data map[string]any) (string, error) {
	t, err := template.New(tpl.Name).Option("missingkey=zero").Parse(tpl.Source)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", tpl.Name, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", tpl.Name, err)
	}
	return strings.ReplaceAll(b.String(), "<no value>", ""), nil
}
