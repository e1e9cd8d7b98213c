package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypath/internal/model"
)

func rule(name string, mt model.MatchType, pattern, target string, pos int) model.AliasRule {
	return model.AliasRule{Name: name, MatchType: mt, Pattern: pattern, Target: target, Enabled: true, Position: pos}
}

func TestResolve_Literal(t *testing.T) {
	r := New([]model.AliasRule{rule("home", model.MatchLiteral, "/", "/index", 0)}, nil)

	res, err := r.Resolve("/")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "/index", res.RedirectTo)
	assert.Equal(t, "home", res.Rule)

	res, err = r.Resolve("/x")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestResolve_LiteralIgnoreCase(t *testing.T) {
	ru := rule("docs", model.MatchLiteral, "/Docs", "/readme", 0)
	ru.IgnoreCase = true
	r := New([]model.AliasRule{ru}, nil)

	res, err := r.Resolve("/DOCS")
	require.NoError(t, err)
	assert.True(t, res.Matched)

	strict := New([]model.AliasRule{rule("docs", model.MatchLiteral, "/Docs", "/readme", 0)}, nil)
	res, err = strict.Resolve("/DOCS")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestResolve_GlobAnchored(t *testing.T) {
	r := New([]model.AliasRule{rule("blog", model.MatchGlob, "/blog/*", "/posts", 0)}, nil)

	for path, want := range map[string]bool{
		"/blog/":          true,
		"/blog/2024/post": true,
		"/blog":           false,
		"/x/blog/a":       false,
	} {
		res, err := r.Resolve(path)
		require.NoError(t, err)
		assert.Equal(t, want, res.Matched, path)
	}
}

func TestResolve_GlobEscapesRegexMetacharacters(t *testing.T) {
	r := New([]model.AliasRule{rule("dot", model.MatchGlob, "/a.b?", "/t", 0)}, nil)

	res, err := r.Resolve("/a.bc")
	require.NoError(t, err)
	assert.True(t, res.Matched)

	res, err = r.Resolve("/axbc")
	require.NoError(t, err)
	assert.False(t, res.Matched, ". must be literal")
}

func TestResolve_RegexFullMatch(t *testing.T) {
	ru := rule("api", model.MatchRegex, `/api/v(?<version>\d+)`, "/api-<version>", 0)
	r := New([]model.AliasRule{ru}, nil)

	res, err := r.Resolve("/api/v2")
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, "/api-2", res.RedirectTo)

	res, err = r.Resolve("/api/v2/extra")
	require.NoError(t, err)
	assert.False(t, res.Matched, "search semantics must not apply")
}

func TestResolve_RegexIgnoreCase(t *testing.T) {
	ru := rule("r", model.MatchRegex, "/hello", "/t", 0)
	ru.IgnoreCase = true
	r := New([]model.AliasRule{ru}, nil)

	res, err := r.Resolve("/HeLLo")
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestResolve_RouteSubstitution(t *testing.T) {
	r := New([]model.AliasRule{
		rule("user", model.MatchRoute, "/user/<id>", "/profile/<id>", 0),
		rule("files", model.MatchRoute, "/files/<path:rest>", "/cat/<rest>", 1),
		rule("page", model.MatchRoute, "/page/<int:n>", "/show/<n>", 2),
	}, nil)

	res, err := r.Resolve("/user/42")
	require.NoError(t, err)
	assert.Equal(t, "/profile/42", res.RedirectTo)
	assert.Equal(t, map[string]string{"id": "42"}, res.Params)

	res, err = r.Resolve("/files/a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "/cat/a/b/c.txt", res.RedirectTo)

	res, err = r.Resolve("/user/42/more")
	require.NoError(t, err)
	assert.False(t, res.Matched, "string converter stops at /")

	res, err = r.Resolve("/page/abc")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	res, err = r.Resolve("/page/7")
	require.NoError(t, err)
	assert.Equal(t, "/show/7", res.RedirectTo)
}

func TestResolve_CapturedTextIsNotExpanded(t *testing.T) {
	vars := map[string]string{"api_base": "internal-host-value", "section": "profile"}
	r := New([]model.AliasRule{
		rule("user", model.MatchRoute, "/user/<id>", "/{section}/<id>", 0),
		rule("pair", model.MatchRoute, "/pair/<a>/<b>", "/join/<a>/<b>", 1),
	}, vars)

	res, err := r.Resolve("/user/{api_base}")
	require.NoError(t, err)
	assert.Equal(t, "/profile/{api_base}", res.RedirectTo)

	res, err = r.Resolve("/user/{nope}")
	require.NoError(t, err)
	assert.Equal(t, "/profile/{nope}", res.RedirectTo)

	res, err = r.Resolve("/pair/<b>/x")
	require.NoError(t, err)
	assert.Equal(t, "/join/<b>/x", res.RedirectTo)
}

// TestResolve_FirstMatchWins verifies order is the only tie-break.
func TestResolve_FirstMatchWins(t *testing.T) {
	rules := []model.AliasRule{
		rule("broad", model.MatchGlob, "/*", "/broad", 2),
		rule("exact", model.MatchLiteral, "/a", "/exact", 1),
		rule("b-same-pos", model.MatchGlob, "/a*", "/b", 1),
	}
	r := New(rules, nil)

	res, err := r.Resolve("/a")
	require.NoError(t, err)
	assert.Equal(t, "b-same-pos", res.Rule, "equal positions break on name")

	res, err = r.Resolve("/zzz")
	require.NoError(t, err)
	assert.Equal(t, "broad", res.Rule)
}

func TestResolve_Deterministic(t *testing.T) {
	rules := []model.AliasRule{
		rule("c", model.MatchGlob, "/x*", "/c", 0),
		rule("a", model.MatchGlob, "/x*", "/a", 0),
		rule("b", model.MatchGlob, "/x*", "/b", 0),
	}
	first, err := New(rules, nil).Resolve("/xyz")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		reversed := []model.AliasRule{rules[2], rules[0], rules[1]}
		again, err := New(reversed, nil).Resolve("/xyz")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "a", first.Rule)
}

func TestResolve_DisabledRulesSkipped(t *testing.T) {
	off := rule("off", model.MatchLiteral, "/a", "/off", 0)
	off.Enabled = false
	r := New([]model.AliasRule{off, rule("on", model.MatchLiteral, "/a", "/on", 1)}, nil)

	res, err := r.Resolve("/a")
	require.NoError(t, err)
	assert.Equal(t, "/on", res.RedirectTo)

	_, ok := r.Lookup("off")
	assert.False(t, ok)
}

func TestResolve_VariableSubstitution(t *testing.T) {
	r := New([]model.AliasRule{rule("cdn", model.MatchLiteral, "/logo", "/{logo_address}.png", 0)},
		map[string]string{"logo_address": "abc"})

	res, err := r.Resolve("/logo")
	require.NoError(t, err)
	assert.Equal(t, "/abc.png", res.RedirectTo)
}

// TestResolve_UnresolvedVariableIsConfigError verifies missing variables
// are reported rather than dropped.
func TestResolve_UnresolvedVariableIsConfigError(t *testing.T) {
	r := New([]model.AliasRule{rule("cdn", model.MatchLiteral, "/logo", "/{b}/{a}/{b}", 0)}, nil)

	_, err := r.Resolve("/logo")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"a", "b"}, ce.Missing)
	assert.Equal(t, "cdn", ce.Rule)
}

func TestResolve_InvalidRegexIsConfigError(t *testing.T) {
	r := New([]model.AliasRule{rule("bad", model.MatchRegex, "/(unclosed", "/t", 0)}, nil)
	_, err := r.Resolve("/anything")
	assert.True(t, IsConfigError(err))
}

func TestResolveName(t *testing.T) {
	r := New([]model.AliasRule{
		rule("home", model.MatchLiteral, "/", "/{page}", 0),
		rule("user", model.MatchRoute, "/user/<id>", "/profile/<id>", 1),
	}, map[string]string{"page": "index"})

	res, ok, err := r.ResolveName("home")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/index", res.RedirectTo)

	_, ok, err = r.ResolveName("user")
	assert.True(t, ok)
	assert.True(t, IsConfigError(err))

	_, ok, err = r.ResolveName("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubstituteVariables_EscapedBraces(t *testing.T) {
	out, missing := SubstituteVariables("{{literal}} {x}", map[string]string{"x": "1"})
	assert.Empty(t, missing)
	assert.Equal(t, "{literal} 1", out)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(rule("r", model.MatchRoute, "/a/<id>", "/b", 0)))
	assert.Error(t, Validate(rule("r", model.MatchRoute, "/a/<id", "/b", 0)))
	assert.Error(t, Validate(rule("r", model.MatchRoute, "/a/<id>/<id>", "/b", 0)))
	assert.Error(t, Validate(rule("r", model.MatchRoute, "/a/<uuid:id>", "/b", 0)))
	assert.Error(t, Validate(model.AliasRule{Name: "r", MatchType: "fuzzy"}))
}
