package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/workspace"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "expectations failed: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "nested_chain.yaml"))
	require.NoError(t, err)

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FailedExpectation(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_body",
		Description: "expectation mismatch is reported, not returned as an error",
		Workspace: workspace.Workspace{Definitions: []workspace.DefinitionSpec{
			{Name: "hi", Code: `function main() { return "hi"; }`},
		}},
		Requests: []RequestStep{
			{Path: "/hi", Follow: true, Expect: &Expect{Status: 200, Body: "bye"}},
		},
	}
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected "bye", got "hi"`)
	require.Len(t, result.Trace, 2)
	assert.True(t, result.Trace[1].Followed)
}

func TestRun_ContentSeeds(t *testing.T) {
	data := "seeded"
	addr := cas.ComputeAddress([]byte(data))
	s := &Scenario{
		Name:        "seeds",
		Description: "seeded content is served by address",
		Content:     []Seed{{ContentType: "text/plain", Data: data, Address: addr}},
		Requests: []RequestStep{
			{Path: "/" + addr, Expect: &Expect{Status: 200, Body: data, ContentType: "text/plain"}},
		},
	}
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
}

func TestRun_SeedAddressMismatch(t *testing.T) {
	s := &Scenario{
		Name:        "bad_seed",
		Description: "stale seed address",
		Content:     []Seed{{ContentType: "text/plain", Data: "x", Address: "stale"}},
		Requests:    []RequestStep{{Path: "/"}},
	}
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario expects stale")
}

func TestRun_InvalidWorkspace(t *testing.T) {
	s := &Scenario{
		Name:        "bad_workspace",
		Description: "workspace errors abort the run",
		Workspace: workspace.Workspace{Definitions: []workspace.DefinitionSpec{
			{Name: "broken", Code: "function main( {"},
		}},
		Requests: []RequestStep{{Path: "/broken"}},
	}
	_, err := Run(context.Background(), s)
	require.Error(t, err)
}

func TestRequestTarget(t *testing.T) {
	assert.Equal(t, "/a", requestTarget("/a", nil))
	assert.Equal(t, "/a?x=1&y=two+words", requestTarget("/a", map[string]string{"y": "two words", "x": "1"}))
	assert.Equal(t, "/a?z=0&x=1", requestTarget("/a?z=0", map[string]string{"x": "1"}))
}
