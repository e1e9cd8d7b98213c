package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_AutoMainParams(t *testing.T) {
	p, err := Compile("greet", `function main(name, greeting = "hi", context) { return greeting + " " + name }`)
	require.NoError(t, err)

	assert.Equal(t, KindAutoMain, p.Kind())
	assert.Equal(t, []Param{
		{Name: "name"},
		{Name: "greeting", Optional: true},
		{Name: "context"},
	}, p.Params())
}

func TestCompile_EntryPrecedence(t *testing.T) {
	p, err := Compile("both", `
		function handle(request, context) { return "handle" }
		function main() { return "main" }
	`)
	require.NoError(t, err)
	assert.Equal(t, KindAutoMain, p.Kind())

	p, err = Compile("raw", `function handle(request, context) { return request.path }`)
	require.NoError(t, err)
	assert.Equal(t, KindRawHandler, p.Kind())

	p, err = Compile("tx", `function transform(details, context) { return {} }`)
	require.NoError(t, err)
	assert.Equal(t, KindTransform, p.Kind())
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("broken", `function main( {`)
	assert.True(t, IsSyntaxError(err))

	_, err = Compile("none", `var x = 1;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry point")

	_, err = Compile("destructured", `function main({a}) { return a }`)
	assert.True(t, IsSyntaxError(err))

	_, err = Compile("rest", `function main(...xs) { return xs }`)
	assert.True(t, IsSyntaxError(err))
}

func TestRun_ReturnsExportedValues(t *testing.T) {
	tests := []struct {
		name string
		code string
		want any
	}{
		{"string", `function main() { return "hello" }`, "hello"},
		{"number", `function main() { return 42 }`, int64(42)},
		{"bool", `function main() { return true }`, true},
		{"undefined", `function main() {}`, nil},
		{"object", `function main() { return {output: "x", content_type: "text/plain"} }`,
			map[string]any{"output": "x", "content_type": "text/plain"}},
		{"bytes", `function main() { return new Uint8Array([104, 105]) }`, []byte("hi")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.name, tt.code)
			require.NoError(t, err)
			got, err := p.Run(context.Background(), nil, Capabilities{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_BindsArgsAndDefaults(t *testing.T) {
	p, err := Compile("greet", `function main(name, greeting = "hi") { return greeting + " " + name }`)
	require.NoError(t, err)

	got, err := p.Run(context.Background(), []any{"bob", nil}, Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, "hi bob", got)

	got, err = p.Run(context.Background(), []any{"bob", "yo"}, Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, "yo bob", got)
}

func TestRun_InjectsContext(t *testing.T) {
	p, err := Compile("ctx", `function main(context) {
		return [context.variables.city, context.secrets.key, context.servers.echo, context.query.extra].join(",")
	}`)
	require.NoError(t, err)

	got, err := p.Run(context.Background(), []any{ContextObject{}}, Capabilities{
		Variables: map[string]string{"city": "Oslo"},
		Secrets:   map[string]string{"key": "k1"},
		Servers:   map[string]string{"echo": "addr"},
		Query:     map[string]string{"extra": "q"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Oslo,k1,addr,q", got)
}

func TestRun_GlobalContextAndRequest(t *testing.T) {
	p, err := Compile("raw", `function handle(request, ctx) { return request.method + " " + context.request.path }`)
	require.NoError(t, err)

	got, err := p.Run(context.Background(), []any{RequestObject{}, ContextObject{}}, Capabilities{
		Request: map[string]any{"method": "GET", "path": "/raw"},
	})
	require.NoError(t, err)
	assert.Equal(t, "GET /raw", got)
}

func TestRun_ContextIsSnapshot(t *testing.T) {
	vars := map[string]string{"a": "1"}
	p, err := Compile("mut", `function main() { context.variables.a = "changed"; return context.variables.a }`)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), nil, Capabilities{Variables: vars})
	require.NoError(t, err)
	assert.Equal(t, "1", vars["a"])
}

func TestRun_InputsAreFrozen(t *testing.T) {
	req := map[string]any{
		"path":     "/orig",
		"headers":  map[string]string{"Accept": "text/html"},
		"segments": []any{"a"},
	}
	servers := map[string]string{"echo": "addr"}
	p, err := Compile("forge", `function handle(request) {
		"use strict";
		var failures = 0;
		var attempts = [
			function () { request.path = "/forged"; },
			function () { context.request.headers.Accept = "x"; },
			function () { request.segments.push("b"); },
			function () { context.servers.echo = "other"; },
			function () { context.secrets.added = "1"; },
		];
		for (var i = 0; i < attempts.length; i++) {
			try { attempts[i](); } catch (e) { failures++; }
		}
		return failures + " " + request.path + " " + context.request.segments.length;
	}`)
	require.NoError(t, err)

	got, err := p.Run(context.Background(), []any{RequestObject{}}, Capabilities{Request: req, Servers: servers})
	require.NoError(t, err)
	assert.Equal(t, "5 /orig 1", got)
	assert.Equal(t, "/orig", req["path"])
	assert.Equal(t, map[string]string{"Accept": "text/html"}, req["headers"])
	assert.Equal(t, []any{"a"}, req["segments"])
	assert.Equal(t, "addr", servers["echo"])
}

func TestRun_ScriptErrorCarriesStack(t *testing.T) {
	p, err := Compile("boom", `function helper() { throw new Error("kaput") }
function main() { helper() }`)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), nil, Capabilities{})
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "kaput")
	assert.Contains(t, se.Stack, "helper")
	assert.Equal(t, "boom", se.Name)
}

func TestRun_InterruptedByContext(t *testing.T) {
	p, err := Compile("spin", `function main() { while (true) {} }`)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Run(ctx, nil, Capabilities{})

	var ie *InterruptedError
	require.ErrorAs(t, err, &ie)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRun_RenderMarkdown(t *testing.T) {
	p, err := Compile("md", `function main(text) { return render_markdown(text) }`)
	require.NoError(t, err)

	got, err := p.Run(context.Background(), []any{"# Title\n\n~~gone~~"}, Capabilities{})
	require.NoError(t, err)
	assert.Contains(t, got, "<h1>Title</h1>")
	assert.Contains(t, got, "<del>gone</del>")
}

func TestRun_ResolveTemplate(t *testing.T) {
	p, err := Compile("tx", `function transform(details, context) {
		var t = resolve_template("page")
		return {output: t.render({title: details.title}), content_type: "text/html"}
	}`)
	require.NoError(t, err)

	caps := Capabilities{
		ResolveTemplate: func(_ context.Context, name string) (Template, error) {
			return Template{Name: name, Address: "addr", Source: "<h1>{{.title}}</h1>"}, nil
		},
	}
	got, err := p.Run(context.Background(), []any{map[string]any{"title": "Hi"}, ContextObject{}}, caps)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"output": "<h1>Hi</h1>", "content_type": "text/html"}, got)
}

// TestRun_CapabilityErrorPreserved verifies an uncaught capability failure
// returns the original Go error.
func TestRun_CapabilityErrorPreserved(t *testing.T) {
	sentinel := errors.New("unknown template")
	p, err := Compile("tx", `function transform(details) { return resolve_template("nope") }`)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), []any{map[string]any{}}, Capabilities{
		ResolveTemplate: func(context.Context, string) (Template, error) { return Template{}, sentinel },
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestRun_CaughtCapabilityErrorIsScriptState(t *testing.T) {
	p, err := Compile("tx", `function transform() {
		try { resolve_template("nope") } catch (e) { return "recovered" }
	}`)
	require.NoError(t, err)

	got, err := p.Run(context.Background(), nil, Capabilities{
		ResolveTemplate: func(context.Context, string) (Template, error) { return Template{}, errors.New("x") },
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
}

func TestRun_NoResolveTemplateOutsideGateway(t *testing.T) {
	p, err := Compile("m", `function main() { return typeof resolve_template }`)
	require.NoError(t, err)
	got, err := p.Run(context.Background(), nil, Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, "undefined", got)
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate(Template{Name: "t", Source: "{{.a}}-{{.missing}}"}, map[string]any{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x-", out)

	_, err = RenderTemplate(Template{Name: "bad", Source: "{{.a"}, nil)
	assert.Error(t, err)
}
