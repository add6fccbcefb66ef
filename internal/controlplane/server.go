package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Server is the HTTP+JSON endpoint the control plane pushes namespace
// updates to. It follows the teacher's plain net/http server shape
// (Addr + http.Handler, ListenAndServe/Shutdown) rather than a
// generated-stub RPC framework — see SPEC_FULL.md for why.
type Server struct {
	httpServer *http.Server
	source     NamespaceSource
	audit      *auditor
	log        *slog.Logger
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:7070".
	Addr string
	// Source receives every decoded namespace push.
	Source NamespaceSource
	// Logger logs request lines and audit records. Defaults to slog.Default.
	Logger *slog.Logger
}

// New builds a Server. It does not start listening; call ListenAndServe.
func New(cfg Config) (*Server, error) {
	if cfg.Source == nil {
		return nil, errors.New("controlplane: Source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	audit, err := newAuditor(logger)
	if err != nil {
		return nil, err
	}

	s := &Server{source: cfg.Source, audit: audit, log: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/namespaces", s.handleNamespacePush)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: loggingMiddleware(logger, mux),
	}
	return s, nil
}

// ListenAndServe starts the server. It blocks until Shutdown is called or
// the listener fails.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// namespacePushResponse is the JSON body written back to the control
// plane after a push, success or failure.
type namespacePushResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleNamespacePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	var update NamespaceUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		s.writeError(w, http.StatusBadRequest, "decode body: "+err.Error())
		return
	}
	if update.Namespace == "" {
		s.writeError(w, http.StatusBadRequest, "namespace is required")
		return
	}

	if err := s.source.Apply(update); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.audit.record(update.Namespace, body)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(namespacePushResponse{Status: "applied"})
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.log.Warn("namespace push rejected", "status", code, "error", msg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(namespacePushResponse{Status: "rejected", Error: msg})
}

// loggingMiddleware logs every request line and its duration, the same
// two facts the teacher's cluster RPC logging interceptor records around
// each unary call, adapted to plain http.Handler middleware since this
// transport has no RPC framework to hang an interceptor off of.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Info("controlplane request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)

		next.ServeHTTP(w, r)

		logger.Info("controlplane response", "method", r.Method, "path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
