package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/statuslight/internal/device"
	"github.com/jpalmerr/statuslight/internal/signal"
	"github.com/jpalmerr/statuslight/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	maxRequestBodySize = 64 << 10
)

// Metrics is the subset of the metrics registry the server needs.
type Metrics interface {
	Handler() http.Handler
	ObserveRequest(method, route string, status int)
}

// Server exposes the light's state and settings over HTTP.
//
// Routes:
//   - GET /api/state: current configuration and derived signal state
//   - PUT /api/status: set the presence label
//   - PATCH /api/config: merge device and mapping settings
//   - GET /api/sse: Server-Sent Events stream of configuration changes
//   - GET /healthz: liveness of the process itself
//   - GET /metrics: Prometheus exposition (when metrics are configured)
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	addr       string
	metrics    Metrics
	httpServer *http.Server
	logger     *slog.Logger

	mu       sync.Mutex
	boundTo  net.Addr
	settings sync.Mutex
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding the configuration
//   - addr: TCP listen address, e.g. ":8080" or "127.0.0.1:0"
//   - metrics: metrics registry; nil disables /metrics and request counting
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, addr string, metrics Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   st,
		addr:    addr,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler returns the server's routes wrapped in request accounting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("PUT /api/status", s.handleStatus)
	mux.HandleFunc("PATCH /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	if s.metrics == nil {
		return mux
	}
	return s.countRequests(mux)
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured address.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify address availability synchronously
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.boundTo = ln.Addr()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	s.logger.Info("http api listening", "addr", ln.Addr().String())

	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server is bound to, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundTo
}

// stateResponse is the JSON view of a configuration snapshot.
type stateResponse struct {
	BaseURL         string              `json:"base_url"`
	ProbeTimeout    string              `json:"probe_timeout"`
	WriteTimeout    string              `json:"write_timeout"`
	Channels        map[string]string   `json:"channels"`
	Status          string              `json:"status"`
	StatusUpdatedAt *time.Time          `json:"status_updated_at,omitempty"`
	Mapped          bool                `json:"mapped"`
	Category        string              `json:"category,omitempty"`
	Signal          *signal.State       `json:"signal,omitempty"`
	Mapping         map[string][]string `json:"mapping,omitempty"`
}

func newStateResponse(cfg store.Config) stateResponse {
	ep := cfg.Endpoint.WithDefaults()
	resp := stateResponse{
		BaseURL:      ep.BaseURL,
		ProbeTimeout: ep.ProbeTimeout.String(),
		WriteTimeout: ep.WriteTimeout.String(),
		Channels: map[string]string{
			signal.Red.String():    ep.RedChannel,
			signal.Yellow.String(): ep.YellowChannel,
		},
		Status: cfg.Status,
	}
	if !cfg.StatusUpdatedAt.IsZero() {
		at := cfg.StatusUpdatedAt
		resp.StatusUpdatedAt = &at
	}

	mapper := cfg.Mapper()
	if category, ok := mapper.Category(cfg.Status); ok {
		state := category.State()
		resp.Mapped = true
		resp.Category = string(category)
		resp.Signal = &state
	}

	if len(cfg.Overrides) > 0 {
		resp.Mapping = make(map[string][]string)
		for label, category := range cfg.Overrides {
			resp.Mapping[string(category)] = append(resp.Mapping[string(category)], label)
		}
		for _, labels := range resp.Mapping {
			sort.Strings(labels)
		}
	}
	return resp
}

// handleState returns the current configuration and derived signal.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, newStateResponse(s.store.Get()))
}

type statusRequest struct {
	Status *string `json:"status"`
}

// handleStatus merges a presence label into the store.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Status == nil {
		s.writeError(w, http.StatusBadRequest, `"status" is required`)
		return
	}

	cfg := s.store.Set(store.StatusPatch(strings.TrimSpace(*req.Status)))
	s.logger.Debug("status pushed", "status", cfg.Status)
	s.writeJSON(w, http.StatusOK, newStateResponse(cfg))
}

type configRequest struct {
	BaseURL      *string             `json:"base_url"`
	ProbeTimeout *string             `json:"probe_timeout"`
	WriteTimeout *string             `json:"write_timeout"`
	Channels     *channelsRequest    `json:"channels"`
	Mapping      map[string][]string `json:"mapping"`
}

type channelsRequest struct {
	Red    *string `json:"red"`
	Yellow *string `json:"yellow"`
}

// handleConfig shallow-merges settings into the store. Omitted fields keep
// their current values; "mapping", when present, replaces all overrides.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// validate against the merged endpoint so a bad patch never reaches the
	// scheduler; settings writes are serialized to keep the check honest
	s.settings.Lock()
	defer s.settings.Unlock()

	merged := applyEndpoint(s.store.Get().Endpoint, patch).WithDefaults()
	if err := merged.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := s.store.Set(patch)
	s.logger.Info("settings updated", "device", cfg.Endpoint.BaseURL, "overrides", len(cfg.Overrides))
	s.writeJSON(w, http.StatusOK, newStateResponse(cfg))
}

func (c configRequest) toPatch() (store.Patch, error) {
	var patch store.Patch

	if c.BaseURL != nil {
		u := strings.TrimSpace(*c.BaseURL)
		patch.BaseURL = &u
	}
	for _, field := range []struct {
		name string
		in   *string
		out  **time.Duration
	}{
		{"probe_timeout", c.ProbeTimeout, &patch.ProbeTimeout},
		{"write_timeout", c.WriteTimeout, &patch.WriteTimeout},
	} {
		if field.in == nil {
			continue
		}
		d, err := time.ParseDuration(*field.in)
		if err != nil {
			return store.Patch{}, fmt.Errorf("%s: %w", field.name, err)
		}
		if d <= 0 {
			return store.Patch{}, fmt.Errorf("%s must be positive", field.name)
		}
		*field.out = &d
	}
	if c.Channels != nil {
		patch.RedChannel = c.Channels.Red
		patch.YellowChannel = c.Channels.Yellow
	}
	if c.Mapping != nil {
		groups := make(map[signal.Category][]string, len(c.Mapping))
		for name, labels := range c.Mapping {
			category, err := signal.ParseCategory(name)
			if err != nil {
				return store.Patch{}, fmt.Errorf("mapping: %w", err)
			}
			groups[category] = append(groups[category], labels...)
		}
		patch.Overrides = signal.GroupOverrides(groups)
		if patch.Overrides == nil {
			// an empty mapping clears every override
			patch.Overrides = map[string]signal.Category{}
		}
	}
	return patch, nil
}

func applyEndpoint(ep device.Endpoint, p store.Patch) device.Endpoint {
	if p.BaseURL != nil {
		ep.BaseURL = *p.BaseURL
	}
	if p.ProbeTimeout != nil {
		ep.ProbeTimeout = *p.ProbeTimeout
	}
	if p.WriteTimeout != nil {
		ep.WriteTimeout = *p.WriteTimeout
	}
	if p.RedChannel != nil {
		ep.RedChannel = *p.RedChannel
	}
	if p.YellowChannel != nil {
		ep.YellowChannel = *p.YellowChannel
	}
	return ep
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// handleSSE streams configuration changes via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(cfg store.Config) error {
		data, err := json.Marshal(newStateResponse(cfg))
		if err != nil {
			return err
		}
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the snapshot so no change is lost in between
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	if err := writeAndFlush(s.store.Get()); err != nil {
		return
	}

	for {
		select {
		case cfg, ok := <-ch:
			if !ok {
				return
			}
			if err := writeAndFlush(cfg); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// statusRecorder captures the response code for request accounting.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer for
// flushing and deadlines.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush passes through so SSE keeps working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) countRequests(next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(r.Method, route, rec.status)
	})
}
