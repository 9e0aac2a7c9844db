// Package server exposes the chat service over HTTP: the chat endpoint,
// health and readiness probes, Prometheus metrics and CORS handling for the
// browser frontend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erni-gruppe/building-agents/logging"
	"github.com/erni-gruppe/building-agents/orchestrate"
)

const (
	serviceName    = "ERNI Building Agents API"
	serviceVersion = "1.0.0"
)

// TurnHandler processes one chat turn. Satisfied by
// *orchestrate.Orchestrator.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req orchestrate.TurnRequest) (*orchestrate.TurnResponse, error)
}

// ReadinessCheck reports whether a named dependency is available.
type ReadinessCheck func(ctx context.Context) bool

// Options configures a Server.
type Options struct {
	// AllowedOrigins lists the origins granted CORS access. Defaults to
	// the local frontend.
	AllowedOrigins []string

	// ReadinessChecks maps dependency names to probes evaluated by the
	// readiness endpoint.
	ReadinessChecks map[string]ReadinessCheck

	// MetricsRegistry serves /metrics when set.
	MetricsRegistry *prometheus.Registry

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	Logger logging.Logger
}

// Server is the HTTP front of the service.
type Server struct {
	addr    string
	handler TurnHandler
	opts    Options
	httpSrv *http.Server
}

// New builds the HTTP server around the given turn handler.
func New(addr string, handler TurnHandler, optFns ...func(o *Options)) *Server {
	opts := Options{
		AllowedOrigins:  []string{"http://localhost:3000"},
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{addr: addr, handler: handler, opts: opts}
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler returns the fully assembled HTTP handler, exported for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /readiness", s.handleReadiness)
	if s.opts.MetricsRegistry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.MetricsRegistry, promhttp.HandlerOpts{}))
	}
	return s.cors(mux)
}

// ListenAndServe serves until ctx is canceled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server.listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.opts.Logger.Info("server.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req orchestrate.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.handler.HandleTurn(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusGatewayTimeout, "request canceled")
			return
		}
		s.opts.Logger.Error("server.chat_failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "agent execution failed")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"version":     serviceVersion,
		"environment": env,
		"service":     serviceName,
	})
}

// handleReadiness evaluates the configured dependency probes. Any failing
// probe flips the status to 503 so orchestration platforms hold traffic.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]bool, len(s.opts.ReadinessChecks))
	ready := true
	for name, check := range s.opts.ReadinessChecks {
		ok := check(r.Context())
		checks[name] = ok
		ready = ready && ok
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	s.writeJSON(w, status, map[string]any{
		"status":    state,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.opts.Logger.Error("server.write_response", "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
