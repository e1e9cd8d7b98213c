package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/engine"
	"github.com/roach88/waypath/internal/model"
)

// DefaultMaxBodyBytes bounds request bodies read for dispatch and upload.
const DefaultMaxBodyBytes = 8 << 20

// defaultHistoryLimit is used when /_/history is called without limit.
const defaultHistoryLimit = 50

// immutableCache is sent with every CAS response.
const immutableCache = "public, max-age=31536000, immutable"

// Dispatcher is the engine surface the server needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, cfg engine.RequestConfig, req engine.Request) (engine.Response, error)
	Content() *cas.Store
}

// HistoryReader lists invocation records newest first.
type HistoryReader interface {
	Invocations(ctx context.Context, owner, definition string, limit int) ([]model.InvocationRecord, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP front end.
type Server struct {
	dispatcher Dispatcher
	history    HistoryReader
	pinger     Pinger
	owner      string
	logger     *slog.Logger
	metrics    *Metrics
	limiter    *RateLimiter
	maxBody    int64
}

// Option configures a Server.
type Option func(*Server)

// WithOwner sets the owner every request dispatches as.
func WithOwner(owner string) Option {
	return func(s *Server) {
		s.owner = owner
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithHistory enables /_/history.
func WithHistory(h HistoryReader) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithPinger makes /_/healthz check the backing store.
func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.pinger = p
	}
}

// WithMetrics replaces the server's metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRateLimit enables per-client rate limiting. A non-positive rate
// disables it.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(s *Server) {
		if requestsPerSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = NewRateLimiter(requestsPerSecond, burst, s.logger)
	}
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBody = n
	}
}

// New creates a Server.
func New(d Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		logger:     slog.Default(),
		maxBody:    DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(logRequests(s.logger), s.metrics.Instrument)
	if s.limiter != nil {
		r.Use(s.limiter.Handler)
	}

	r.Handle("/_/metrics", s.metrics.Handler()).Methods(http.MethodGet).Name("metrics")
	r.HandleFunc("/_/healthz", s.handleHealth).Methods(http.MethodGet).Name("healthz")
	r.HandleFunc("/_/upload", s.handleUpload).Methods(http.MethodPost).Name("upload")
	r.HandleFunc("/_/history/{definition}", s.handleHistory).Methods(http.MethodGet).Name("history")
	r.PathPrefix("/").HandlerFunc(s.handleDispatch).Name("dispatch")
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeDiagnostic(w, r, Diagnostic{
			Status:  http.StatusRequestEntityTooLarge,
			Title:   "Upload rejected",
			Message: err.Error(),
			Code:    "UPLOAD_FAILED",
		})
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	addr, err := s.dispatcher.Content().Put(r.Context(), data, contentType)
	if err != nil {
		s.fail(w, r, fmt.Errorf("upload: %w", err))
		return
	}
	path := cas.PathFor(addr, contentType)
	w.Header().Set("Location", path)
	writeJSON(w, http.StatusCreated, map[string]string{"address": addr, "path": path})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeDiagnostic(w, r, Diagnostic{
			Status:  http.StatusNotFound,
			Title:   "Not found",
			Message: "invocation history is not enabled",
			Code:    string(engine.ErrCodeNotFound),
		})
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.fail(w, r, engine.NewValidationError("INVALID_LIMIT", fmt.Sprintf("limit must be a positive integer, got %q", raw)))
			return
		}
		limit = n
	}

	records, err := s.history.Invocations(r.Context(), s.owner, mux.Vars(r)["definition"], limit)
	if err != nil {
		s.fail(w, r, fmt.Errorf("history: %w", err))
		return
	}
	if records == nil {
		records = []model.InvocationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeDiagnostic(w, r, Diagnostic{
			Status:  http.StatusRequestEntityTooLarge,
			Title:   "Request rejected",
			Message: err.Error(),
			Code:    "BODY_TOO_LARGE",
		})
		return
	}

	req := engine.Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   firstValues(r.URL.Query()),
		Headers: firstValues(r.Header),
		Body:    body,
	}
	resp, err := s.dispatcher.Dispatch(r.Context(), engine.RequestConfig{Owner: s.owner}, req)
	if err != nil {
		s.metrics.ObserveDispatch(outcomeFor(err))
		s.fail(w, r, err)
		return
	}
	s.metrics.ObserveDispatch(resp.Kind.String())
	s.writeResponse(w, r, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, r *http.Request, resp engine.Response) {
	h := w.Header()
	for k, v := range resp.Headers {
		h.Set(k, v)
	}

	if resp.IsRedirect() {
		status := resp.Status
		if status == 0 || status == http.StatusFound {
			status = http.StatusFound
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				status = http.StatusSeeOther
			}
		}
		h.Set("Location", resp.Location)
		w.WriteHeader(status)
		return
	}

	if resp.ContentType != "" {
		h.Set("Content-Type", resp.ContentType)
	}
	if resp.Kind == engine.KindContent && resp.Address != "" {
		etag := `"` + resp.Address + `"`
		h.Set("ETag", etag)
		h.Set("Cache-Control", immutableCache)
		if matchesETag(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	} else if resp.Address != "" {
		h.Set("X-Content-Address", resp.Address)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

// fail renders err and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	d := diagnosticFor(err)
	if d.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", d.Status, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", d.Status, "error", err)
	}
	writeDiagnostic(w, r, d)
}

func outcomeFor(err error) string {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return strings.ToLower(string(re.Code))
	}
	return "internal"
}

// matchesETag implements the weak comparison If-None-Match uses.
func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
