// Package server provides the HTTP API over analysis sessions: start, query,
// stream, cancel, refresh and clear.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonathan/ats-analyzer/internal/analysis"
	"github.com/jonathan/ats-analyzer/internal/config"
	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/metrics"
	"github.com/jonathan/ats-analyzer/internal/server/ratelimit"
	"github.com/jonathan/ats-analyzer/internal/types"
	"go.uber.org/zap"
)

// ControllerFactory builds a controller for a new analysis session.
type ControllerFactory func() (*analysis.Controller, error)

// Deps are the collaborators of the server.
type Deps struct {
	NewController ControllerFactory
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	// Ready reports dependency health for /health. Optional.
	Ready func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	cfg         config.ServerConfig
	deps        Deps
	logger      *zap.Logger
	metrics     *metrics.Metrics
	rateLimiter *ratelimit.Limiter

	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

// entry is one registered analysis session.
type entry struct {
	id       string
	ctrl     *analysis.Controller
	lastSeen time.Time
}

// New creates a new server instance
func New(cfg config.ServerConfig, rl ratelimit.Config, deps Deps) (*Server, error) {
	if deps.NewController == nil {
		return nil, fmt.Errorf("server: controller factory is required")
	}
	s := &Server{
		cfg:         cfg,
		deps:        deps,
		logger:      logger.OrNop(deps.Logger),
		metrics:     deps.Metrics,
		rateLimiter: ratelimit.NewLimiter(&rl),
		sessions:    make(map[string]*entry),
		now:         time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyses", s.handleCreate)
	mux.HandleFunc("GET /analyses", s.handleList)
	mux.HandleFunc("GET /analyses/{id}", s.handleGet)
	mux.HandleFunc("GET /analyses/{id}/events", s.handleEvents)
	mux.HandleFunc("POST /analyses/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /analyses/{id}/refresh", s.handleRefresh)
	mux.HandleFunc("DELETE /analyses/{id}", s.handleClear)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout, // zero, event streams stay open
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx ends, then shuts down gracefully and closes every
// session.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	go s.reapLoop(ctx)

	select {
	case err := <-errCh:
		s.closeAll()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Closing the sessions ends open event streams so Shutdown can finish.
	s.closeAll()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) register(ctrl *analysis.Controller, id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{id: id, ctrl: ctrl, lastSeen: s.now()}
	s.sessions[id] = e
	return e
}

func (s *Server) lookup(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	e.lastSeen = s.now()
	return e, nil
}

// Len returns the number of registered sessions.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) reapLoop(ctx context.Context) {
	ttl := s.cfg.SessionTTL
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.reap()
		case <-ctx.Done():
			return
		}
	}
}

// reap closes sessions that are not loading and have not been touched for
// SessionTTL.
func (s *Server) reap() int {
	ttl := s.cfg.SessionTTL
	if ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var stale []*entry
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) && e.ctrl.State() != types.StateLoading {
			stale = append(stale, e)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, e := range stale {
		e.ctrl.Close()
	}
	if len(stale) > 0 {
		s.logger.Debug("reaped idle sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()
	for _, e := range all {
		e.ctrl.Close()
	}
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	origin := s.cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their limit with 429
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.metrics.Limited(s.routeLabel(r))
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// routeLabel names the limit a request hit without the session id.
func (s *Server) routeLabel(r *http.Request) string {
	if ec := ratelimit.MatchEndpoint(r.URL.Path, r.Method, s.rateLimiter.Endpoints()); ec != nil {
		return ec.Method + " " + ec.Path
	}
	return "default"
}

// statusRecorder captures the response status for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// extractClientID identifies the client by remote IP.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.Len()})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
