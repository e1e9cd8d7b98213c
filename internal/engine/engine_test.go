package engine_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/engine"
	"github.com/roach88/waypath/internal/model"
	"github.com/roach88/waypath/internal/testutil"
)

type fixture struct {
	engine   *engine.Engine
	entities *testutil.MemoryEntities
	backend  *cas.Memory
	content  *cas.Store
}

func newFixture(t *testing.T, opts ...engine.EngineOption) *fixture {
	t.Helper()
	ents := testutil.NewMemoryEntities()
	backend := cas.NewMemory()
	content := cas.NewStore(backend)
	base := []engine.EngineOption{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDGenerator(testutil.NewSequenceGenerator("")),
		engine.WithClock(testutil.NewDeterministicClock()),
	}
	return &fixture{
		engine:   engine.New(ents, content, ents, append(base, opts...)...),
		entities: ents,
		backend:  backend,
		content:  content,
	}
}

func (f *fixture) dispatch(t *testing.T, path string) (engine.Response, error) {
	t.Helper()
	p, q := engine.ParseTarget(path)
	return f.engine.Dispatch(context.Background(), engine.RequestConfig{}, engine.Request{Method: http.MethodGet, Path: p, Query: q})
}

// follow dispatches path, expects a redirect, and fetches the location.
func (f *fixture) follow(t *testing.T, path string) engine.Response {
	t.Helper()
	resp, err := f.dispatch(t, path)
	require.NoError(t, err)
	require.Equal(t, engine.KindRedirect, resp.Kind, "expected redirect for %s", path)
	content, err := f.dispatch(t, resp.Location)
	require.NoError(t, err)
	require.Equal(t, engine.KindContent, content.Kind)
	return content
}

func TestDispatch_ThreeDefinitionChain(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("outer", `function main(a) { return a + "-outer"; }`)
	f.entities.AddDefinition("middle", `function main(a) { return a + "-middle"; }`)
	f.entities.AddDefinition("inner", `function main() { return "inner"; }`)

	resp, err := f.dispatch(t, "/outer/middle/inner")
	require.NoError(t, err)
	require.Equal(t, engine.KindRedirect, resp.Kind)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/"+cas.ComputeAddress([]byte("inner-middle-outer"))+".html", resp.Location)

	content, err := f.dispatch(t, resp.Location)
	require.NoError(t, err)
	assert.Equal(t, "inner-middle-outer", string(content.Body))
	assert.Equal(t, "text/html", content.ContentType)

	records := f.entities.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "inner", records[0].DefinitionName)
	assert.Equal(t, "middle", records[1].DefinitionName)
	assert.Equal(t, "outer", records[2].DefinitionName)
	assert.Equal(t, "test-inv-0001", records[0].ID)
	assert.Equal(t, testutil.Epoch, records[0].InvokedAt)
}

func TestDispatch_AutoMainBinding(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("def", `function main(a, b, c) { return [a, b, c].join(","); }`)

	content := f.follow(t, "/def/x/y?c=z")
	assert.Equal(t, "x,y,z", string(content.Body))
}

func TestDispatch_PathBeatsQuery(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("def", `function main(a) { return a; }`)

	assert.Equal(t, "x", string(f.follow(t, "/def/x?a=tampered").Body))
	assert.Equal(t, "q", string(f.follow(t, "/def?a=q").Body))
}

func TestDispatch_UnmatchedQueryInContext(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("def", `function main(a) { return a + ":" + context.query.extra + ":" + (context.query.a === undefined); }`)

	assert.Equal(t, "x:1:true", string(f.follow(t, "/def/x?extra=1").Body))
}

func TestDispatch_OptionalParameter(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("def", `function main(a, b = "dflt") { return a + "-" + b; }`)

	assert.Equal(t, "x-dflt", string(f.follow(t, "/def/x").Body))
	assert.Equal(t, "x-y", string(f.follow(t, "/def/x/y").Body))
}

func TestDispatch_RedirectFetchIsByteIdentical(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("greet", `function main(name) { return "<p>hello " + name + "</p>"; }`)

	res, err := f.engine.Execute(context.Background(), engine.RequestConfig{}, "greet", []string{"ada"}, nil)
	require.NoError(t, err)

	content := f.follow(t, "/greet/ada")
	assert.Equal(t, res.Body, content.Body)
	assert.Equal(t, res.Address, content.Address)
	assert.Equal(t, res.Path(), "/"+res.Address+".html")
}

func TestDispatch_NoMemoization(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("def", `function main() { return "same"; }`)

	f.follow(t, "/def")
	stored := f.backend.Len()
	f.follow(t, "/def")

	assert.Len(t, f.entities.Records(), 2, "each dispatch executes")
	assert.Equal(t, stored, f.backend.Len(), "identical outputs collapse to one object")
}

func TestDispatch_ContextInjection(t *testing.T) {
	f := newFixture(t)
	f.entities.SetVariable("greeting", "hi")
	f.entities.SetSecret("token", "s3cret")
	f.entities.AddDefinition("def", `function main(context) { return context.variables.greeting + " " + context.secrets.token + " " + ("def" in context.servers); }`)

	assert.Equal(t, "hi s3cret true", string(f.follow(t, "/def").Body))
}

func TestDispatch_ResultNormalization(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		body        string
		contentType string
	}{
		{"string", `function main() { return "s"; }`, "s", "text/html"},
		{"object", `function main() { return {b: 2, a: 1}; }`, `{"a":1,"b":2}`, "application/json"},
		{"number", `function main() { return 42; }`, "42", "application/json"},
		{"output", `function main() { return {output: "a,b", content_type: "text/csv"}; }`, "a,b", "text/csv"},
		{"bytes", `function main() { return new Uint8Array([104, 105]); }`, "hi", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.entities.AddDefinition("def", tt.code)

			content := f.follow(t, "/def")
			assert.Equal(t, tt.body, string(content.Body))
			assert.Equal(t, tt.contentType, content.ContentType)
		})
	}
}

func TestDispatch_InvalidResults(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		reason string
	}{
		{"null", `function main() { return null; }`, "EMPTY_RESULT"},
		{"undefined", `function main() {}`, "EMPTY_RESULT"},
		{"bad output", `function main() { return {output: 5}; }`, "INVALID_OUTPUT"},
		{"bad content type", `function main() { return {output: "x", content_type: 1}; }`, "INVALID_CONTENT_TYPE"},
		{"bad status", `function main() { return {output: "x", status_code: 42}; }`, "INVALID_STATUS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.entities.AddDefinition("def", tt.code)

			_, err := f.dispatch(t, "/def")
			require.Error(t, err)
			assert.True(t, engine.IsValidation(err))
			assert.Equal(t, tt.reason, engine.AsRuntimeError(err).Reason)
			assert.Equal(t, 0, f.backend.Len())
		})
	}
}

func TestDispatch_MissingArgument(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("def", `function main(a, b) { return a + b; }`)

	_, err := f.dispatch(t, "/def/x")
	require.Error(t, err)
	re := engine.AsRuntimeError(err)
	assert.Equal(t, engine.ErrCodeValidation, re.Code)
	assert.Equal(t, "MISSING_ARGUMENT", re.Reason)
	assert.Equal(t, "b", re.Details["missing"])
	assert.Equal(t, "def", re.Definition)
	assert.Equal(t, http.StatusBadRequest, engine.HTTPStatus(err))
}

func TestDispatch_UnexpectedArgument(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("def", `function main(a) { return a; }`)

	_, err := f.dispatch(t, "/def/x/y")
	require.Error(t, err)
	assert.Equal(t, "UNEXPECTED_ARGUMENT", engine.AsRuntimeError(err).Reason)
}

func TestDispatch_ScriptErrorWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("ok", `function main() { return "fine"; }`)
	f.entities.AddDefinition("boom", `function main(a) { throw new Error("boom: " + a); }`)

	_, err := f.dispatch(t, "/boom/ok")
	require.Error(t, err)
	re := engine.AsRuntimeError(err)
	assert.Equal(t, engine.ErrCodeExecution, re.Code)
	assert.Equal(t, "SCRIPT_ERROR", re.Reason)
	assert.Contains(t, re.Message, "boom: fine")
	assert.Equal(t, "boom", re.Definition)
	assert.Equal(t, http.StatusInternalServerError, engine.HTTPStatus(err))

	// The nested "ok" run succeeded and was stored; the failed run was not.
	_, err = f.content.Get(context.Background(), cas.ComputeAddress([]byte("fine")))
	assert.NoError(t, err)
	records := f.entities.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "ok", records[0].DefinitionName)
}

func TestDispatch_SyntaxError(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("bad", `function main( { return`)

	_, err := f.dispatch(t, "/bad")
	require.Error(t, err)
	assert.True(t, engine.IsExecution(err))
	assert.Equal(t, "SYNTAX_ERROR", engine.AsRuntimeError(err).Reason)
}

func TestDispatch_ScriptTimeout(t *testing.T) {
	f := newFixture(t, engine.WithScriptTimeout(50*time.Millisecond))
	f.entities.AddDefinition("spin", `function main() { while (true) {} }`)

	_, err := f.dispatch(t, "/spin")
	require.Error(t, err)
	assert.True(t, engine.IsExecution(err))
	assert.Equal(t, "INTERRUPTED", engine.AsRuntimeError(err).Reason)
}

func TestDispatch_TooDeep(t *testing.T) {
	f := newFixture(t, engine.WithMaxDepth(5))
	f.entities.AddDefinition("loop", `function main(x) { return "never"; }`)
	f.entities.AddAlias("again", model.MatchLiteral, "/again", "/loop/again")

	_, err := f.dispatch(t, "/loop/again")
	require.Error(t, err)
	assert.True(t, engine.IsTooDeep(err))
	assert.Equal(t, http.StatusLoopDetected, engine.HTTPStatus(err))
	assert.Equal(t, 0, f.backend.Len())
	assert.Empty(t, f.entities.Records())
}

func TestDispatch_DepthCountsNestedExecutions(t *testing.T) {
	f := newFixture(t, engine.WithMaxDepth(2))
	f.entities.AddDefinition("outer", `function main(a) { return a + "-outer"; }`)
	f.entities.AddDefinition("middle", `function main(a) { return a + "-middle"; }`)
	f.entities.AddDefinition("inner", `function main() { return "inner"; }`)

	_, err := f.dispatch(t, "/middle/inner")
	require.NoError(t, err)

	_, err = f.dispatch(t, "/outer/middle/inner")
	require.Error(t, err)
	assert.True(t, engine.IsTooDeep(err))
}

func TestDispatch_SegmentResolutionOrder(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("echo", `function main(a) { return "got " + a; }`)
	f.entities.AddDefinition("x", `function main() { return "from-definition"; }`)
	f.entities.AddDefinition("hello", `function main() { return "hi"; }`)
	f.entities.PutDefinition(model.Definition{Name: "off", Code: `function main() { return "disabled"; }`})
	f.entities.AddAlias("x", model.MatchLiteral, "/never", "/hello")
	f.entities.AddAlias("greeting", model.MatchLiteral, "/never-either", "/hello")

	addr, err := f.content.Put(context.Background(), []byte("stored"), "text/plain")
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{"/echo/x", "got from-definition"},
		{"/echo/greeting", "got hi"},
		{"/echo/" + addr, "got stored"},
		{"/echo/" + addr + ".txt", "got stored"},
		{"/echo/plain", "got plain"},
		{"/echo/off", "got off"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, string(f.follow(t, tt.path).Body))
		})
	}
}

func TestDispatch_AliasArgumentWithParameters(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("wrap", `function main(a) { return "[" + a + "]"; }`)
	f.entities.AddDefinition("join", `function main(a, b) { return a + "+" + b; }`)
	f.entities.AddAlias("pair", model.MatchLiteral, "/unused", "/join/left")

	assert.Equal(t, "[left+right]", string(f.follow(t, "/wrap/pair/right").Body))
}

func TestDispatch_TopLevelAlias(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("echo", `function main(a) { return a; }`)
	f.entities.AddAlias("home", model.MatchLiteral, "/home", "/echo/home-page")
	f.entities.AddAlias("user", model.MatchRoute, "/user/<id>", "/echo/<id>")
	f.entities.AddAlias("docs", model.MatchLiteral, "/docs", "https://example.com/docs")

	assert.Equal(t, "home-page", string(f.follow(t, "/home").Body))
	assert.Equal(t, "42", string(f.follow(t, "/user/42").Body))

	resp, err := f.dispatch(t, "/docs")
	require.NoError(t, err)
	assert.Equal(t, engine.KindRedirect, resp.Kind)
	assert.Equal(t, "https://example.com/docs", resp.Location)
}

func TestDispatch_AliasVariables(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("echo", `function main(a) { return a; }`)
	f.entities.SetVariable("page", "landing")
	f.entities.AddAlias("home", model.MatchLiteral, "/", "/echo/{page}")
	f.entities.AddAlias("broken", model.MatchLiteral, "/broken", "/echo/{nope}")

	assert.Equal(t, "landing", string(f.follow(t, "/").Body))

	_, err := f.dispatch(t, "/broken")
	require.Error(t, err)
	assert.True(t, engine.IsConfig(err))
	assert.Equal(t, "nope", engine.AsRuntimeError(err).Details["missing"])
}

func TestDispatch_AliasCycle(t *testing.T) {
	f := newFixture(t)
	f.entities.AddAlias("a", model.MatchLiteral, "/a", "/b")
	f.entities.AddAlias("b", model.MatchLiteral, "/b", "/a")

	_, err := f.dispatch(t, "/a")
	require.Error(t, err)
	assert.True(t, engine.IsTooDeep(err))
}

func TestDispatch_ServesContent(t *testing.T) {
	f := newFixture(t)
	addr, err := f.content.Put(context.Background(), []byte(`{"k":1}`), "text/plain")
	require.NoError(t, err)

	resp, err := f.dispatch(t, "/"+addr)
	require.NoError(t, err)
	assert.Equal(t, engine.KindContent, resp.Kind)
	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, addr, resp.Address)

	resp, err = f.dispatch(t, "/"+addr+".json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.ContentType)

	_, err = f.dispatch(t, "/"+cas.ComputeAddress([]byte("absent")))
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

func TestDispatch_UniquePrefix(t *testing.T) {
	f := newFixture(t)
	addr, err := f.content.Put(context.Background(), []byte("hello"), "text/plain")
	require.NoError(t, err)

	resp, err := f.dispatch(t, "/"+addr[:10])
	require.NoError(t, err)
	assert.Equal(t, engine.KindRedirect, resp.Kind)
	assert.Equal(t, "/"+addr+".txt", resp.Location)
}

func TestDispatch_NotFound(t *testing.T) {
	f := newFixture(t)
	f.entities.PutDefinition(model.Definition{Name: "off", Code: `function main() { return 1; }`})

	for _, path := range []string{"/nothing-here", "/off", "/"} {
		_, err := f.dispatch(t, path)
		require.Error(t, err, path)
		assert.True(t, engine.IsNotFound(err), path)
		assert.Equal(t, http.StatusNotFound, engine.HTTPStatus(err))
	}
}

func TestDispatch_RawHandler(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("raw", `function handle(request, context) {
		return {output: "raw " + request.method + " " + request.path + " " + request.segments.join("|"), content_type: "text/plain", status_code: 201};
	}`)

	resp, err := f.engine.Dispatch(context.Background(), engine.RequestConfig{}, engine.Request{
		Method: http.MethodPost,
		Path:   "/raw/a/b",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.KindRaw, resp.Kind)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "raw POST /raw/a/b a|b", string(resp.Body))
	assert.Equal(t, cas.ComputeAddress(resp.Body), resp.Address)
	assert.Len(t, f.entities.Records(), 1)
}

func TestDispatch_HistoryFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.entities.FailHistory = true
	f.entities.AddDefinition("def", `function main() { return "ok"; }`)

	assert.Equal(t, "ok", string(f.follow(t, "/def").Body))
	assert.Empty(t, f.entities.Records())
}

func TestDispatch_RecordsSnapshots(t *testing.T) {
	f := newFixture(t)
	code := `function main(a) { return a; }`
	f.entities.AddDefinition("def", code)

	_, err := f.engine.Dispatch(context.Background(), engine.RequestConfig{}, engine.Request{
		Path:    "/def/v",
		Headers: map[string]string{"authorization": "Bearer x", "X-Trace": "t1"},
	})
	require.NoError(t, err)

	records := f.entities.Records()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, cas.ComputeAddress([]byte(code)), rec.DefinitionAddress)
	assert.Equal(t, cas.ComputeAddress([]byte("v")), rec.ResultAddress)

	details, err := f.content.Get(context.Background(), rec.RequestDetailsAddress)
	require.NoError(t, err)
	assert.Equal(t, "application/json", details.ContentType)
	assert.Contains(t, string(details.Data), `"path":"/def/v"`)
	assert.Contains(t, string(details.Data), `"X-Trace":"t1"`)
	assert.NotContains(t, strings.ToLower(string(details.Data)), "bearer")
}

func TestDispatch_ScriptCannotRewriteRequestDetails(t *testing.T) {
	f := newFixture(t)
	f.entities.AddDefinition("forge", `function main(context) {
		try { context.request.path = "/forged"; } catch (e) {}
		try { context.request.query.x = "forged"; } catch (e) {}
		return "ok";
	}`)

	_, err := f.engine.Dispatch(context.Background(), engine.RequestConfig{}, engine.Request{
		Path:  "/forge",
		Query: map[string]string{"x": "1"},
	})
	require.NoError(t, err)

	records := f.entities.Records()
	require.Len(t, records, 1)
	details, err := f.content.Get(context.Background(), records[0].RequestDetailsAddress)
	require.NoError(t, err)
	assert.Contains(t, string(details.Data), `"path":"/forge"`)
	assert.Contains(t, string(details.Data), `"x":"1"`)
	assert.NotContains(t, string(details.Data), "forged")
}
