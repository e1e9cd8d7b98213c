package httpapi

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/roach88/waypath/internal/engine"
)

// Diagnostic is the error payload every failed request renders.
type Diagnostic struct {
	Status     int               `json:"status"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	Reason     string            `json:"reason,omitempty"`
	Definition string            `json:"definition,omitempty"`
	Stage      string            `json:"stage,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Exception  string            `json:"exception,omitempty"`
	Stack      string            `json:"stack,omitempty"`
}

// diagnosticFor builds the payload for err. Errors outside the runtime
// taxonomy are reported without their message.
func diagnosticFor(err error) Diagnostic {
	var re *engine.RuntimeError
	if !errors.As(err, &re) {
		return Diagnostic{
			Status:  http.StatusInternalServerError,
			Title:   "Internal error",
			Message: "the request could not be completed",
			Code:    "INTERNAL",
		}
	}
	d := Diagnostic{
		Status:     engine.HTTPStatus(re),
		Title:      engine.Title(re),
		Message:    re.Message,
		Code:       string(re.Code),
		Reason:     re.Reason,
		Definition: re.Definition,
		Stage:      re.Stage,
		Details:    re.Details,
	}
	if re.Code == engine.ErrCodeExecution {
		d.Exception = re.Message
		d.Stack = re.Stack
	}
	return d
}

var diagnosticPage = template.Must(template.New("diagnostic").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Status}} {{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p><code>{{.Code}}{{if .Reason}} / {{.Reason}}{{end}}</code></p>
{{- if .Definition}}
<p>Definition: <code>{{.Definition}}</code></p>
{{- end}}
{{- if .Stage}}
<p>Stage: <code>{{.Stage}}</code></p>
{{- end}}
{{- if .Details}}
<dl>
{{- range $k, $v := .Details}}
<dt>{{$k}}</dt><dd>{{$v}}</dd>
{{- end}}
</dl>
{{- end}}
{{- if .Stack}}
<pre>{{.Stack}}</pre>
{{- end}}
</body>
</html>
`))

// writeDiagnostic renders d as JSON unless the client prefers HTML.
func writeDiagnostic(w http.ResponseWriter, r *http.Request, d Diagnostic) {
	w.Header().Set("Cache-Control", "no-store")
	if prefersHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(d.Status)
		_ = diagnosticPage.Execute(w, d)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}

// prefersHTML reports whether Accept asks for HTML without asking for JSON.
func prefersHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return false
	}
	return strings.Contains(accept, "text/html")
}
