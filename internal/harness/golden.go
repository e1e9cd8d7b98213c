package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/waypath/internal/model"
)

// Snapshot renders a trace as canonical JSON for golden comparison.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		m := map[string]any{
			"step":   e.Step,
			"method": e.Method,
			"target": e.Target,
			"status": e.Status,
		}
		if e.Location != "" {
			m["location"] = e.Location
		}
		if e.ContentType != "" {
			m["content_type"] = e.ContentType
		}
		if e.Body != "" {
			m["body"] = e.Body
		}
		if e.Code != "" {
			m["code"] = e.Code
		}
		if e.Followed {
			m["followed"] = true
		}
		trace[i] = m
	}
	return model.MarshalCanonical(map[string]any{
		"scenario": name,
		"trace":    trace,
	})
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
