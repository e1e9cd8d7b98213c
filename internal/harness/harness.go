package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/engine"
	"github.com/roach88/waypath/internal/gateway"
	"github.com/roach88/waypath/internal/httpapi"
	"github.com/roach88/waypath/internal/store"
	"github.com/roach88/waypath/internal/testutil"
	"github.com/roach88/waypath/internal/workspace"
)

// Harness drives one scenario's requests through the HTTP surface.
type Harness struct {
	handler http.Handler
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Execution flow:
//  1. Store content seeds
//  2. Apply the workspace for the scenario owner
//  3. Send each request, following internal redirects when asked
//  4. Check expect clauses against the last exchange of each step
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	content := cas.NewStore(st, cas.WithNow(clock.Now))

	owner := scenario.Owner
	if owner == "" {
		owner = DefaultOwner
	}

	for i, seed := range scenario.Content {
		addr, err := content.Put(ctx, []byte(seed.Data), seed.ContentType)
		if err != nil {
			return nil, fmt.Errorf("content[%d]: %w", i, err)
		}
		if seed.Address != "" && seed.Address != addr {
			return nil, fmt.Errorf("content[%d]: address is %s, scenario expects %s", i, addr, seed.Address)
		}
	}
	if _, err := workspace.Apply(ctx, &scenario.Workspace, owner, st, content); err != nil {
		return nil, fmt.Errorf("failed to apply workspace: %w", err)
	}

	eng := engine.New(st, content, st,
		engine.WithNative(gateway.New()),
		engine.WithIDGenerator(testutil.NewSequenceGenerator("scenario")),
		engine.WithClock(clock),
		engine.WithLogger(logger),
	)
	h := &Harness{
		handler: httpapi.New(eng,
			httpapi.WithOwner(owner),
			httpapi.WithLogger(logger),
			httpapi.WithHistory(st),
		).Handler(),
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Requests {
		entries, err := h.execute(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
		result.Trace = append(result.Trace, entries...)
		if step.Expect != nil {
			for _, msg := range checkExpect(entries[len(entries)-1], *step.Expect) {
				result.AddError(fmt.Sprintf("request %d (%s %s): %s", i, entries[0].Method, entries[0].Target, msg))
			}
		}
	}
	return result, nil
}

// execute sends one step and, when asked, follows its redirect once.
func (h *Harness) execute(ctx context.Context, i int, step RequestStep) ([]TraceEntry, error) {
	method := strings.ToUpper(step.Method)
	if method == "" {
		method = http.MethodGet
	}
	target := requestTarget(step.Path, step.Query)

	first, err := h.exchange(ctx, method, target, step.Headers, step.Body)
	if err != nil {
		return nil, err
	}
	first.Step = i
	entries := []TraceEntry{first}

	if step.Follow && first.Location != "" && engine.IsInternalPath(first.Location) {
		next, err := h.exchange(ctx, http.MethodGet, first.Location, nil, "")
		if err != nil {
			return nil, err
		}
		next.Step = i
		next.Followed = true
		entries = append(entries, next)
	}
	return entries, nil
}

func (h *Harness) exchange(ctx context.Context, method, target string, headers map[string]string, body string) (TraceEntry, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, strings.NewReader(body))
	if err != nil {
		return TraceEntry{}, err
	}
	req.RemoteAddr = "192.0.2.1:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	h.logger.Debug("scenario exchange", "method", method, "target", target, "status", rec.Code)

	entry := TraceEntry{
		Method:   method,
		Target:   target,
		Status:   rec.Code,
		Location: rec.Header().Get("Location"),
	}
	switch {
	case rec.Code >= http.StatusBadRequest:
		var d httpapi.Diagnostic
		if err := json.Unmarshal(rec.Body.Bytes(), &d); err == nil {
			entry.Code = d.Code
		}
	case rec.Code > http.StatusMultipleChoices:
		// Redirects and 304 carry no body worth tracing.
	default:
		entry.ContentType = rec.Header().Get("Content-Type")
		entry.Body = rec.Body.String()
	}
	return entry, nil
}

// requestTarget appends query to path in sorted key order.
func requestTarget(path string, query map[string]string) string {
	if len(query) == 0 {
		return path
	}
	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + values.Encode()
}
